package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gateclock/scoreboard/internal/adapters/feed/replay"
	service "github.com/gateclock/scoreboard/internal/app"
	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/internal/provider/dispatch"
	"github.com/gateclock/scoreboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// stubProvider is a hand-driven feed source for exercising the service
// pipeline without a transport.
type stubProvider struct {
	*dispatch.Hub
	status provider.Status
}

func newStubProvider() *stubProvider {
	return &stubProvider{Hub: dispatch.NewHub(), status: provider.StatusDisconnected}
}

func (s *stubProvider) Connect(_ context.Context) error {
	s.status = provider.StatusConnected
	s.PublishStatus(s.status)
	return nil
}

func (s *stubProvider) Disconnect() {
	s.status = provider.StatusDisconnected
}

func (s *stubProvider) Status() provider.Status { return s.status }
func (s *stubProvider) Connected() bool         { return s.status == provider.StatusConnected }

func onCourseEnvelope(ts int64, bib string) model.Envelope {
	start := ts - 100
	return model.Envelope{
		TimestampMillis: ts,
		Kind:            model.KindOnCourseList,
		OnCourse: &model.OnCourseUpdate{
			Snapshot:    true,
			Competitors: []model.Competitor{{Bib: bib, RaceID: "R1", StartTS: &start}},
		},
	}
}

func sessionRecording() string {
	lines := []string{
		`{"ts":0,"src":"sim","type":"oncourse","data":{"msg":"oncourse","data":{"list":[{"bib":"4","race":"R1","dtStart":100}]}}}`,
		`{"ts":20,"src":"sim","type":"top","data":{"msg":"top","data":{"race":"R1","list":[{"rank":1,"bib":"4"}]}}}`,
		`{"ts":40,"src":"sim","type":"daytime","data":{"msg":"daytime","data":{"daytime":"10:00:00"}}}`,
	}
	return strings.Join(lines, "\n") + "\n"
}

func eventually(check func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return check()
}

func TestServiceWithReplaySource(t *testing.T) {
	Convey("Given a service over a recorded session", t, func() {
		prov := replay.New("unused", replay.WithReader(strings.NewReader(sessionRecording())))
		svc := service.New(
			service.WithProvider(prov),
			service.WithQueueSize(64),
		)

		Convey("When started", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			defer svc.Stop()

			Convey("Then the snapshot converges on the recording", func() {
				ok := eventually(func() bool {
					snap := svc.Snapshot()
					return snap.LastEventMillis == 40
				})
				So(ok, ShouldBeTrue)

				snap := svc.Snapshot()
				So(snap.OnCourse, ShouldHaveLength, 1)
				So(snap.OnCourse[0].Bib, ShouldEqual, "4")
				So(snap.Results.RaceID, ShouldEqual, "R1")
				So(snap.EventInfo.DayTime, ShouldEqual, "10:00:00")
			})

			Convey("Then playback control is available", func() {
				pb, err := svc.Playback()
				So(err, ShouldBeNil)
				So(pb.Duration(), ShouldEqual, 40)
			})

			Convey("Then stats describe the pipeline", func() {
				So(eventually(func() bool {
					return svc.GetStats()["lastEventMillis"] == int64(40)
				}), ShouldBeTrue)

				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["onCourseCount"], ShouldEqual, 1)
				So(stats["resultRows"], ShouldEqual, 1)
			})

			Convey("And starting again is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
			})
		})

		Convey("When stopped after a run", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()

			Convey("Then stopping again is safe", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldBeFalse)
			})
		})
	})
}

func TestServiceWithStubProvider(t *testing.T) {
	Convey("Given a service over a hand-driven provider", t, func() {
		prov := newStubProvider()
		svc := service.New(
			service.WithProvider(prov),
			service.WithErrorHistorySize(3),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When provider errors accumulate past the cap", func() {
			for i := 0; i < 5; i++ {
				prov.PublishError(provider.NewParseError(fmt.Sprintf("bad line %d", i), nil))
			}

			Convey("Then only the newest records are retained", func() {
				So(eventually(func() bool { return len(svc.Errors()) == 3 }), ShouldBeTrue)

				records := svc.Errors()
				So(records[0].Message, ShouldContainSubstring, "bad line 2")
				So(records[2].Message, ShouldContainSubstring, "bad line 4")
				So(records[0].Code, ShouldEqual, string(provider.CodeParse))
			})

			Convey("And clearing empties the history", func() {
				svc.ClearErrors()
				So(svc.Errors(), ShouldBeEmpty)
			})
		})

		Convey("When a reconnect begins after state was built", func() {
			prov.PublishEnvelope(onCourseEnvelope(1000, "4"))
			So(eventually(func() bool { return len(svc.Snapshot().OnCourse) == 1 }), ShouldBeTrue)

			prov.PublishStatus(provider.StatusReconnecting)

			Convey("Then the race state resets", func() {
				So(eventually(func() bool { return len(svc.Snapshot().OnCourse) == 0 }), ShouldBeTrue)
			})
		})

		Convey("When playback control is requested on a live source", func() {
			_, err := svc.Playback()

			Convey("Then it is refused", func() {
				So(err, ShouldEqual, service.ErrNotReplay)
			})
		})

		Convey("Then the provider status is surfaced", func() {
			So(svc.ProviderStatus(), ShouldEqual, provider.StatusConnected)
		})
	})
}
