package xmlfeed_test

import (
	"errors"
	"testing"

	"github.com/gateclock/scoreboard/internal/adapters/feed/xmlfeed"
	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseDocument(t *testing.T) {
	Convey("Given the XML document parser", t, func() {
		Convey("When a document carries several children", func() {
			raw := []byte(`<Scoreboard>
				<TimeOfDay Time="10:15:00"/>
				<Results Race="R1" Name="Heat 1" Status="running">
					<Row Rank="2" Bib="5" Name="B" Total="1:40.20" Pen="2" Behind="+1.10"/>
					<Row Rank="1" Bib="3" Name="A" Total="1:39.10" Pen="0"/>
				</Results>
				<OnCourse>
					<Competitor Bib="4" Name="C" Race="R1" dtStart="12000"/>
					<Competitor Bib="" Name="ignored"/>
				</OnCourse>
				<RaceConfig Race="R1" Name="Heat 1" Gates="22"/>
			</Scoreboard>`)

			envs, err := xmlfeed.ParseDocument(raw, 9000, "ws", 10)

			Convey("Then envelopes come out in fixed order with sequential seq", func() {
				So(err, ShouldBeNil)
				So(envs, ShouldHaveLength, 4)
				So(envs[0].Kind, ShouldEqual, model.KindConfig)
				So(envs[1].Kind, ShouldEqual, model.KindOnCourseList)
				So(envs[2].Kind, ShouldEqual, model.KindResults)
				So(envs[3].Kind, ShouldEqual, model.KindEventInfo)
				for i, env := range envs {
					So(env.TimestampMillis, ShouldEqual, 9000)
					So(env.SourceTag, ShouldEqual, "ws")
					So(env.Seq, ShouldEqual, 10+i)
				}
			})

			Convey("Then attribute values are converted", func() {
				So(err, ShouldBeNil)
				So(envs[0].Config.GateCount, ShouldEqual, 22)

				So(envs[1].OnCourse.Snapshot, ShouldBeTrue)
				So(envs[1].OnCourse.Competitors, ShouldHaveLength, 1)
				So(*envs[1].OnCourse.Competitors[0].StartTS, ShouldEqual, 12000)
				So(envs[1].OnCourse.Competitors[0].FinishTS, ShouldBeNil)

				So(envs[2].Results.Rows[0].Bib, ShouldEqual, "3")
				So(envs[2].Results.Rows[1].Penalty, ShouldEqual, 2)

				So(envs[3].EventInfo.DayTime, ShouldEqual, "10:15:00")
			})
		})

		Convey("When numeric attributes are malformed", func() {
			raw := []byte(`<S><OnCourse><Competitor Bib="4" dtStart="abc" Pen="x" Rank="?"/></OnCourse></S>`)

			envs, err := xmlfeed.ParseDocument(raw, 0, "ws", 1)

			Convey("Then they degrade to unset instead of failing the document", func() {
				So(err, ShouldBeNil)
				c := envs[0].OnCourse.Competitors[0]
				So(c.StartTS, ShouldBeNil)
				So(c.Penalty, ShouldEqual, 0)
				So(c.Rank, ShouldEqual, 0)
			})
		})

		Convey("When the document has no recognized children", func() {
			_, err := xmlfeed.ParseDocument([]byte(`<Unknown><Other/></Unknown>`), 0, "ws", 1)

			Convey("Then it is a VALIDATION_ERROR", func() {
				So(err, ShouldNotBeNil)
				var perr *provider.Error
				So(errors.As(err, &perr), ShouldBeTrue)
				So(perr.Code, ShouldEqual, provider.CodeValidation)
			})
		})

		Convey("When the document is not XML", func() {
			_, err := xmlfeed.ParseDocument([]byte(`{"not":"xml"}`), 0, "ws", 1)

			Convey("Then it is a PARSE_ERROR", func() {
				var perr *provider.Error
				So(errors.As(err, &perr), ShouldBeTrue)
				So(perr.Code, ShouldEqual, provider.CodeParse)
			})
		})
	})
}
