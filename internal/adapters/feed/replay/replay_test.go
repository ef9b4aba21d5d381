package replay_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gateclock/scoreboard/internal/adapters/feed/replay"
	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/pkg/clock"
	"github.com/gateclock/scoreboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// recordingAt renders one recording line carrying a daytime marker so
// tests can identify dispatched messages.
func recordingAt(ts int64, marker string) string {
	return fmt.Sprintf(
		`{"ts":%d,"src":"sim","type":"daytime","data":{"msg":"daytime","data":{"daytime":"%s"}}}`,
		ts, marker,
	)
}

func recording(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// newReplay builds a connected provider on a manual clock and collects
// dispatched markers.
func newReplay(clk *clock.Manual, rec string, markers *[]string, opts ...replay.Option) *replay.Provider {
	opts = append([]replay.Option{
		replay.WithReader(strings.NewReader(rec)),
		replay.WithClock(clk),
	}, opts...)
	p := replay.New("unused", opts...)
	p.OnEnvelope(func(env model.Envelope) {
		if env.EventInfo != nil {
			*markers = append(*markers, env.EventInfo.DayTime)
		}
	})
	return p
}

func TestReplayLoadAndOrdering(t *testing.T) {
	Convey("Given a recording with out-of-order and duplicate timestamps", t, func() {
		rec := recording(
			`{"_meta":{"generator":"test"}}`,
			recordingAt(200, "late"),
			recordingAt(100, "first"),
			recordingAt(100, "second"),
			recordingAt(0, "start"),
		)
		clk := clock.NewManual(time.Unix(0, 0))
		var markers []string
		p := newReplay(clk, rec, &markers)

		Convey("When connected and played to the end", func() {
			So(p.Connect(context.Background()), ShouldBeNil)
			clk.Advance(time.Second)

			Convey("Then messages arrive time-sorted, equal stamps in file order", func() {
				So(markers, ShouldResemble, []string{"start", "first", "second", "late"})
				So(p.State(), ShouldEqual, replay.StateFinished)
				So(p.Duration(), ShouldEqual, 200)
			})
		})

		Convey("When a parse failure is in the recording", func() {
			bad := recording(
				recordingAt(0, "ok"),
				`not json at all`,
				recordingAt(100, "also-ok"),
			)
			var got []string
			var errs []*provider.Error
			p2 := newReplay(clk, bad, &got)
			p2.OnError(func(e *provider.Error) { errs = append(errs, e) })

			So(p2.Connect(context.Background()), ShouldBeNil)
			clk.Advance(time.Second)

			Convey("Then the bad line is reported and the rest plays", func() {
				So(errs, ShouldHaveLength, 1)
				So(errs[0].Code, ShouldEqual, provider.CodeParse)
				So(got, ShouldResemble, []string{"ok", "also-ok"})
			})
		})
	})
}

func TestReplayPlaybackControls(t *testing.T) {
	rec := recording(
		recordingAt(0, "m0"),
		recordingAt(100, "m100"),
		recordingAt(200, "m200"),
		recordingAt(300, "m300"),
	)

	Convey("Given a connected replay provider", t, func() {
		clk := clock.NewManual(time.Unix(0, 0))
		var markers []string
		p := newReplay(clk, rec, &markers, replay.WithAutoPlay(false))
		So(p.Connect(context.Background()), ShouldBeNil)

		Convey("When not yet playing", func() {
			clk.Advance(time.Second)

			Convey("Then nothing is dispatched", func() {
				So(markers, ShouldBeEmpty)
				So(p.State(), ShouldEqual, replay.StateIdle)
			})
		})

		Convey("When played at normal speed", func() {
			So(p.Play(), ShouldBeNil)
			clk.Advance(150 * time.Millisecond)

			Convey("Then only messages whose virtual time passed are out", func() {
				So(markers, ShouldResemble, []string{"m0", "m100"})
				So(p.Position(), ShouldEqual, 150)
			})

			Convey("And pausing freezes the virtual clock", func() {
				So(p.Pause(), ShouldBeNil)
				pos := p.Position()
				clk.Advance(time.Minute)
				So(markers, ShouldResemble, []string{"m0", "m100"})
				So(p.Position(), ShouldEqual, pos)

				Convey("And resuming continues from the same position", func() {
					So(p.Play(), ShouldBeNil)
					clk.Advance(50 * time.Millisecond)
					So(markers, ShouldResemble, []string{"m0", "m100", "m200"})
				})
			})
		})

		Convey("When played at double speed", func() {
			So(p.SetSpeed(2.0), ShouldBeNil)
			So(p.Play(), ShouldBeNil)
			clk.Advance(50 * time.Millisecond)

			Convey("Then virtual time runs twice as fast", func() {
				So(markers, ShouldResemble, []string{"m0", "m100"})
				So(p.Position(), ShouldEqual, 100)
			})
		})

		Convey("When speed changes mid-flight", func() {
			So(p.Play(), ShouldBeNil)
			clk.Advance(50 * time.Millisecond)
			So(p.SetSpeed(10.0), ShouldBeNil)
			clk.Advance(25 * time.Millisecond)

			Convey("Then the new rate applies from the change point", func() {
				// 50ms at 1x + 25ms at 10x = virtual 300.
				So(markers, ShouldResemble, []string{"m0", "m100", "m200", "m300"})
				So(p.State(), ShouldEqual, replay.StateFinished)
			})
		})

		Convey("When speed is not positive", func() {
			So(p.SetSpeed(0), ShouldNotBeNil)
			So(p.SetSpeed(-1), ShouldNotBeNil)
		})

		Convey("When seeking forward", func() {
			So(p.Seek(150), ShouldBeNil)
			So(p.Play(), ShouldBeNil)
			clk.Advance(time.Second)

			Convey("Then messages at or before the target never arrive", func() {
				So(markers, ShouldResemble, []string{"m200", "m300"})
			})
		})

		Convey("When seeking backward after playing through", func() {
			So(p.Play(), ShouldBeNil)
			clk.Advance(time.Second)
			So(p.State(), ShouldEqual, replay.StateFinished)
			markers = markers[:0]

			So(p.Seek(50), ShouldBeNil)
			So(p.State(), ShouldEqual, replay.StatePaused)
			So(p.Play(), ShouldBeNil)
			clk.Advance(time.Second)

			Convey("Then later messages are delivered exactly once more", func() {
				So(markers, ShouldResemble, []string{"m100", "m200", "m300"})
			})
		})

		Convey("When seek targets are out of range", func() {
			So(p.Seek(-50), ShouldBeNil)
			So(p.Position(), ShouldEqual, 0)
			So(p.Seek(99999), ShouldBeNil)
			So(p.Position(), ShouldEqual, 300)
		})

		Convey("When playing an already finished session without loop", func() {
			So(p.Play(), ShouldBeNil)
			clk.Advance(time.Second)

			Convey("Then Play reports the terminal state", func() {
				So(p.Play(), ShouldEqual, provider.ErrFinished)
			})
		})
	})
}

func TestReplayBulkFanOut(t *testing.T) {
	const messages = 1000
	const subscribers = 100

	Convey("Given a long recording and many subscribers", t, func() {
		var b strings.Builder
		for i := 0; i < messages; i++ {
			fmt.Fprintf(&b,
				`{"ts":%d,"src":"sim","type":"oncourse","data":{"msg":"oncourse","data":{"list":[{"bib":"1"}]}}}`+"\n",
				i*10)
		}

		clk := clock.NewManual(time.Unix(0, 0))
		p := replay.New("unused",
			replay.WithReader(strings.NewReader(b.String())),
			replay.WithClock(clk),
			replay.WithSpeed(10000),
		)

		counts := make([]int, subscribers)
		for i := 0; i < subscribers; i++ {
			i := i
			p.OnOnCourse(func(model.OnCourseUpdate) { counts[i]++ })
		}
		var envelopes int
		p.OnEnvelope(func(model.Envelope) { envelopes++ })

		Convey("When the session plays through at high speed", func() {
			So(p.Connect(context.Background()), ShouldBeNil)
			clk.Advance(2 * time.Second)

			Convey("Then every subscriber saw every message exactly once", func() {
				So(p.State(), ShouldEqual, replay.StateFinished)
				So(envelopes, ShouldEqual, messages)
				for _, n := range counts {
					So(n, ShouldEqual, messages)
				}
			})
		})
	})
}

func TestReplayDisconnect(t *testing.T) {
	rec := recording(
		recordingAt(0, "m0"),
		recordingAt(100, "m100"),
	)

	Convey("Given a playing replay provider", t, func() {
		clk := clock.NewManual(time.Unix(0, 0))
		var markers []string
		p := newReplay(clk, rec, &markers)
		So(p.Connect(context.Background()), ShouldBeNil)
		clk.Advance(10 * time.Millisecond)
		So(markers, ShouldResemble, []string{"m0"})

		Convey("When disconnected", func() {
			p.Disconnect()
			clk.Advance(time.Minute)

			Convey("Then no message is delivered while disconnected", func() {
				So(markers, ShouldResemble, []string{"m0"})
				So(p.Status(), ShouldEqual, provider.StatusDisconnected)
			})

			Convey("And playback controls refuse", func() {
				So(p.Play(), ShouldEqual, provider.ErrNotConnected)
			})

			Convey("And reconnecting resumes from the frozen position", func() {
				So(p.Connect(context.Background()), ShouldBeNil)
				clk.Advance(90 * time.Millisecond)
				So(markers, ShouldResemble, []string{"m0", "m100"})
			})
		})
	})

	Convey("Given playback state before connecting", t, func() {
		clk := clock.NewManual(time.Unix(0, 0))
		var markers []string
		p := newReplay(clk, rec, &markers, replay.WithAutoPlay(false))

		Convey("When Play is called before Connect", func() {
			So(p.Play(), ShouldEqual, provider.ErrNotConnected)
		})
	})
}

func TestReplayLoopAndPauseAfter(t *testing.T) {
	rec := recording(
		recordingAt(0, "m0"),
		recordingAt(100, "m100"),
	)

	Convey("Given a looping replay provider", t, func() {
		clk := clock.NewManual(time.Unix(0, 0))
		var markers []string
		p := newReplay(clk, rec, &markers, replay.WithLoop(true))
		So(p.Connect(context.Background()), ShouldBeNil)

		Convey("When playback passes the end", func() {
			// The restart is immediate: the wrap instant replays the
			// first message.
			clk.Advance(150 * time.Millisecond)

			Convey("Then the session restarts from the first message", func() {
				So(p.State(), ShouldEqual, replay.StatePlaying)
				So(markers, ShouldResemble, []string{"m0", "m100", "m0"})
			})
		})
	})

	Convey("Given a pause-after bound", t, func() {
		clk := clock.NewManual(time.Unix(0, 0))
		var markers []string
		p := newReplay(clk, rec, &markers, replay.WithPauseAfter(1))
		So(p.Connect(context.Background()), ShouldBeNil)

		Convey("When playback starts", func() {
			clk.Advance(time.Second)

			Convey("Then exactly that many messages are dispatched", func() {
				So(markers, ShouldResemble, []string{"m0"})
				So(p.State(), ShouldEqual, replay.StatePaused)
			})

			Convey("And resuming plays the remainder", func() {
				So(p.Play(), ShouldBeNil)
				clk.Advance(time.Second)
				So(markers, ShouldResemble, []string{"m0", "m100"})
			})
		})
	})
}
