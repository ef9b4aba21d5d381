package scoreboard_test

import (
	"testing"
	"time"

	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/domain/scoreboard"
	"github.com/gateclock/scoreboard/internal/provider"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCorrelator(t *testing.T) {
	Convey("Given a correlator", t, func() {
		var changes []scoreboard.State
		c := scoreboard.NewCorrelator(
			scoreboard.WithOnChange(func(s scoreboard.State) { changes = append(changes, s) }),
		)

		Convey("When envelopes are applied", func() {
			c.Apply(onCourseEnv(1000, true, runner("1", 500)))
			c.Apply(resultsEnv(2000, "R1", "1"))

			Convey("Then the snapshot reflects the folds", func() {
				snap := c.Snapshot()
				So(snap.OnCourse, ShouldHaveLength, 1)
				So(snap.Results.Rows, ShouldHaveLength, 1)
				So(snap.LastEventMillis, ShouldEqual, 2000)
			})

			Convey("Then each fold notifies the change callback", func() {
				So(changes, ShouldHaveLength, 2)
				So(changes[1].Results.RaceID, ShouldEqual, "R1")
			})
		})

		Convey("When the provider starts reconnecting", func() {
			c.Apply(onCourseEnv(1000, true, finisher("1", 500, 900)))
			c.Apply(model.Envelope{
				TimestampMillis: 1500,
				Kind:            model.KindEventInfo,
				EventInfo:       &model.EventInfo{Title: "Finals"},
			})
			c.OnStatus(provider.StatusReconnecting)

			Convey("Then race-derived state is cleared", func() {
				snap := c.Snapshot()
				So(snap.OnCourse, ShouldBeEmpty)
				So(snap.Current, ShouldBeNil)
				So(snap.Pending, ShouldBeNil)
				So(snap.ActiveRaceID, ShouldBeEmpty)
			})

			Convey("Then venue-level state survives", func() {
				snap := c.Snapshot()
				So(snap.EventInfo.Title, ShouldEqual, "Finals")
				So(snap.Visibility.Results, ShouldBeTrue)
				So(snap.LastEventMillis, ShouldEqual, 1500)
			})
		})

		Convey("When other statuses are reported", func() {
			c.Apply(onCourseEnv(1000, true, runner("1", 500)))
			c.OnStatus(provider.StatusConnected)
			c.OnStatus(provider.StatusDisconnected)

			Convey("Then the state is untouched", func() {
				So(c.Snapshot().OnCourse, ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given custom correlation windows", t, func() {
		c := scoreboard.NewCorrelator(scoreboard.WithConfig(scoreboard.Config{
			HighlightFor: 2 * time.Second,
		}))

		Convey("Then unset windows fall back to defaults", func() {
			cfg := c.Config()
			So(cfg.HighlightFor, ShouldEqual, 2*time.Second)
			So(cfg.FinishGrace, ShouldEqual, scoreboard.DefaultFinishGrace)
			So(cfg.PendingWindow, ShouldEqual, scoreboard.DefaultPendingWindow)
		})
	})
}
