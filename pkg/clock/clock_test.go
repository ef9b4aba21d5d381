package clock_test

import (
	"testing"
	"time"

	"github.com/gateclock/scoreboard/pkg/clock"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManualClock(t *testing.T) {
	Convey("Given a manual clock", t, func() {
		start := time.Date(2026, 6, 14, 10, 0, 0, 0, time.UTC)
		clk := clock.NewManual(start)

		Convey("When no timers are scheduled", func() {
			Convey("Then advancing only moves time", func() {
				clk.Advance(5 * time.Second)
				So(clk.Now(), ShouldEqual, start.Add(5*time.Second))
				So(clk.PendingTimers(), ShouldEqual, 0)
			})
		})

		Convey("When a timer is scheduled", func() {
			fired := 0
			clk.AfterFunc(time.Second, func() { fired++ })

			Convey("Then it does not fire before its deadline", func() {
				clk.Advance(999 * time.Millisecond)
				So(fired, ShouldEqual, 0)
				So(clk.PendingTimers(), ShouldEqual, 1)
			})

			Convey("Then it fires exactly once at the deadline", func() {
				clk.Advance(time.Second)
				So(fired, ShouldEqual, 1)
				So(clk.PendingTimers(), ShouldEqual, 0)

				clk.Advance(10 * time.Second)
				So(fired, ShouldEqual, 1)
			})

			Convey("Then NextDeadline reports it", func() {
				So(clk.NextDeadline(), ShouldEqual, start.Add(time.Second))
			})
		})

		Convey("When a timer is stopped", func() {
			fired := 0
			timer := clk.AfterFunc(time.Second, func() { fired++ })

			Convey("Then Stop before the deadline prevents the callback", func() {
				So(timer.Stop(), ShouldBeTrue)
				clk.Advance(5 * time.Second)
				So(fired, ShouldEqual, 0)
			})

			Convey("Then Stop after firing reports false", func() {
				clk.Advance(time.Second)
				So(fired, ShouldEqual, 1)
				So(timer.Stop(), ShouldBeFalse)
			})
		})

		Convey("When multiple timers are due within one advance", func() {
			var order []string
			clk.AfterFunc(2*time.Second, func() { order = append(order, "b") })
			clk.AfterFunc(time.Second, func() { order = append(order, "a") })
			clk.AfterFunc(3*time.Second, func() { order = append(order, "c") })

			clk.Advance(3 * time.Second)

			Convey("Then they fire in deadline order", func() {
				So(order, ShouldResemble, []string{"a", "b", "c"})
			})
		})

		Convey("When a callback schedules a follow-up timer", func() {
			fired := 0
			clk.AfterFunc(time.Second, func() {
				clk.AfterFunc(time.Second, func() { fired++ })
			})

			Convey("Then the follow-up is honored within the same advance", func() {
				clk.Advance(2 * time.Second)
				So(fired, ShouldEqual, 1)
			})

			Convey("Then the follow-up waits when the advance is too short", func() {
				clk.Advance(1500 * time.Millisecond)
				So(fired, ShouldEqual, 0)
				So(clk.PendingTimers(), ShouldEqual, 1)
			})
		})

		Convey("When the clock observes time inside a callback", func() {
			var seen time.Time
			clk.AfterFunc(time.Second, func() { seen = clk.Now() })

			clk.Advance(time.Minute)

			Convey("Then it is positioned at the deadline, not the target", func() {
				So(seen, ShouldEqual, start.Add(time.Second))
				So(clk.Now(), ShouldEqual, start.Add(time.Minute))
			})
		})
	})
}
