package dispatch_test

import (
	"fmt"
	"testing"

	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/internal/provider/dispatch"
	"github.com/gateclock/scoreboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func resultsEnvelope(race string) model.Envelope {
	return model.Envelope{
		TimestampMillis: 1000,
		Kind:            model.KindResults,
		Results:         &model.ResultsSnapshot{RaceID: race},
	}
}

func TestHubFanOut(t *testing.T) {
	Convey("Given a dispatch hub", t, func() {
		h := dispatch.NewHub()

		Convey("When an envelope is published to many subscribers", func() {
			const n = 100
			got := make([]int, 0, n)
			for i := 0; i < n; i++ {
				i := i
				h.OnResults(func(model.ResultsSnapshot) { got = append(got, i) })
			}

			h.PublishEnvelope(resultsEnvelope("R1"))

			Convey("Then every subscriber receives it in registration order", func() {
				So(got, ShouldHaveLength, n)
				for i, v := range got {
					So(v, ShouldEqual, i)
				}
			})
		})

		Convey("When a results envelope is published", func() {
			var envKinds []model.Kind
			var races []string
			h.OnEnvelope(func(e model.Envelope) { envKinds = append(envKinds, e.Kind) })
			h.OnResults(func(r model.ResultsSnapshot) { races = append(races, r.RaceID) })
			var onCourseCalls int
			h.OnOnCourse(func(model.OnCourseUpdate) { onCourseCalls++ })

			h.PublishEnvelope(resultsEnvelope("R1"))

			Convey("Then it reaches the envelope and results lists only", func() {
				So(envKinds, ShouldResemble, []model.Kind{model.KindResults})
				So(races, ShouldResemble, []string{"R1"})
				So(onCourseCalls, ShouldEqual, 0)
			})
		})

		Convey("When competitor partials and snapshots are published", func() {
			var updates []model.OnCourseUpdate
			h.OnOnCourse(func(u model.OnCourseUpdate) { updates = append(updates, u) })

			h.PublishEnvelope(model.Envelope{
				Kind:     model.KindCompetitor,
				OnCourse: &model.OnCourseUpdate{Competitors: []model.Competitor{{Bib: "4"}}},
			})
			h.PublishEnvelope(model.Envelope{
				Kind:     model.KindOnCourseList,
				OnCourse: &model.OnCourseUpdate{Snapshot: true},
			})

			Convey("Then both kinds route to the on-course list", func() {
				So(updates, ShouldHaveLength, 2)
				So(updates[0].Snapshot, ShouldBeFalse)
				So(updates[1].Snapshot, ShouldBeTrue)
			})
		})
	})
}

func TestHubIsolation(t *testing.T) {
	Convey("Given a hub with a panicking subscriber", t, func() {
		h := dispatch.NewHub()

		var before, after int
		h.OnResults(func(model.ResultsSnapshot) { before++ })
		h.OnResults(func(model.ResultsSnapshot) { panic("boom") })
		h.OnResults(func(model.ResultsSnapshot) { after++ })

		Convey("When an envelope is published", func() {
			h.PublishEnvelope(resultsEnvelope("R1"))

			Convey("Then subscribers after the failure still run", func() {
				So(before, ShouldEqual, 1)
				So(after, ShouldEqual, 1)
			})

			Convey("And publishing again still reaches everyone", func() {
				h.PublishEnvelope(resultsEnvelope("R1"))
				So(before, ShouldEqual, 2)
				So(after, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a strict hub", t, func() {
		h := dispatch.NewHub(dispatch.WithStrict())

		var reported []*provider.Error
		h.OnError(func(e *provider.Error) { reported = append(reported, e) })
		h.OnResults(func(model.ResultsSnapshot) { panic("boom") })

		Convey("When a subscriber panics", func() {
			h.PublishEnvelope(resultsEnvelope("R1"))

			Convey("Then the failure surfaces as a SUBSCRIBER_ERROR", func() {
				So(reported, ShouldHaveLength, 1)
				So(reported[0].Code, ShouldEqual, provider.CodeSubscriber)
			})
		})

		Convey("When an error subscriber itself panics", func() {
			h.OnError(func(*provider.Error) { panic("again") })

			// Must not recurse into infinite error reporting.
			h.PublishEnvelope(resultsEnvelope("R1"))

			Convey("Then exactly one error was delivered", func() {
				So(reported, ShouldHaveLength, 1)
			})
		})
	})
}

func TestHubUnsubscribe(t *testing.T) {
	Convey("Given a hub with subscribers", t, func() {
		h := dispatch.NewHub()

		var a, b int
		unsubA := h.OnResults(func(model.ResultsSnapshot) { a++ })
		h.OnResults(func(model.ResultsSnapshot) { b++ })

		Convey("When one unsubscribes", func() {
			unsubA()
			h.PublishEnvelope(resultsEnvelope("R1"))

			Convey("Then only the remaining subscriber is invoked", func() {
				So(a, ShouldEqual, 0)
				So(b, ShouldEqual, 1)
			})
		})

		Convey("When unsubscribe is called repeatedly", func() {
			unsubA()
			unsubA()
			unsubA()

			Convey("Then the other registration is unaffected", func() {
				h.PublishEnvelope(resultsEnvelope("R1"))
				So(b, ShouldEqual, 1)
				So(h.SubscriberCount(), ShouldEqual, 1)
			})
		})

		Convey("When the same function is registered twice", func() {
			calls := 0
			fn := func(model.ResultsSnapshot) { calls++ }
			unsub1 := h.OnResults(fn)
			h.OnResults(fn)

			unsub1()
			h.PublishEnvelope(resultsEnvelope("R1"))

			Convey("Then only the matching registration was removed", func() {
				So(calls, ShouldEqual, 1)
			})
		})
	})
}

func TestHubStatusAndErrors(t *testing.T) {
	Convey("Given a hub", t, func() {
		h := dispatch.NewHub()

		Convey("When status changes are published", func() {
			var got []provider.Status
			h.OnConnectionChange(func(s provider.Status) { got = append(got, s) })

			h.PublishStatus(provider.StatusConnecting)
			h.PublishStatus(provider.StatusConnected)

			Convey("Then subscribers see them in order", func() {
				So(got, ShouldResemble, []provider.Status{
					provider.StatusConnecting,
					provider.StatusConnected,
				})
			})
		})

		Convey("When errors are published", func() {
			var got []*provider.Error
			h.OnError(func(e *provider.Error) { got = append(got, e) })

			for i := 0; i < 3; i++ {
				h.PublishError(provider.NewParseError(fmt.Sprintf("line %d", i), nil))
			}

			Convey("Then each carries its taxonomy code", func() {
				So(got, ShouldHaveLength, 3)
				for _, e := range got {
					So(e.Code, ShouldEqual, provider.CodeParse)
				}
			})
		})
	})
}
