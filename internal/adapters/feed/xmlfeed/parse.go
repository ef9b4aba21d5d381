// Package xmlfeed implements the feed provider for the XML transport:
// WebSocket-delivered XML documents with OnCourse, Results, TimeOfDay,
// and RaceConfig children.
package xmlfeed

import (
	"encoding/xml"
	"sort"
	"strconv"

	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
)

// xmlDocument matches any root element; the children carry the payloads.
type xmlDocument struct {
	XMLName    xml.Name
	OnCourse   *xmlOnCourse   `xml:"OnCourse"`
	Results    *xmlResults    `xml:"Results"`
	TimeOfDay  *xmlTimeOfDay  `xml:"TimeOfDay"`
	RaceConfig *xmlRaceConfig `xml:"RaceConfig"`
}

type xmlOnCourse struct {
	Competitors []xmlCompetitor `xml:"Competitor"`
}

type xmlCompetitor struct {
	Bib      string `xml:"Bib,attr"`
	Name     string `xml:"Name,attr"`
	Club     string `xml:"Club,attr"`
	Nat      string `xml:"Nat,attr"`
	Race     string `xml:"Race,attr"`
	Time     string `xml:"Time,attr"`
	Total    string `xml:"Total,attr"`
	Pen      string `xml:"Pen,attr"`
	Gates    string `xml:"Gates,attr"`
	DtStart  string `xml:"dtStart,attr"`
	DtFinish string `xml:"dtFinish,attr"`
	Rank     string `xml:"Rank,attr"`
}

type xmlResults struct {
	Race   string   `xml:"Race,attr"`
	Name   string   `xml:"Name,attr"`
	Status string   `xml:"Status,attr"`
	Rows   []xmlRow `xml:"Row"`
}

type xmlRow struct {
	Rank   string `xml:"Rank,attr"`
	Bib    string `xml:"Bib,attr"`
	Name   string `xml:"Name,attr"`
	Club   string `xml:"Club,attr"`
	Nat    string `xml:"Nat,attr"`
	Total  string `xml:"Total,attr"`
	Pen    string `xml:"Pen,attr"`
	Behind string `xml:"Behind,attr"`
}

type xmlTimeOfDay struct {
	Time string `xml:"Time,attr"`
}

type xmlRaceConfig struct {
	Race  string `xml:"Race,attr"`
	Name  string `xml:"Name,attr"`
	Gates string `xml:"Gates,attr"`
}

// atoiOrZero parses a numeric attribute, defaulting to 0 on failure.
// Rank, penalty, and gate counts are display fields; a bad value must not
// poison the document.
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// millisOrNil parses a millisecond timestamp attribute; empty or invalid
// values mean the signal has not been observed.
func millisOrNil(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// ParseDocument decodes one XML document into envelopes, one per child
// present, in a fixed order: config, on-course, results, time of day.
// A document without any known child is a VALIDATION_ERROR.
func ParseDocument(raw []byte, tsMillis int64, sourceTag string, seq int) ([]model.Envelope, error) {
	var doc xmlDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, provider.NewParseError("malformed xml document", err)
	}
	if doc.OnCourse == nil && doc.Results == nil && doc.TimeOfDay == nil && doc.RaceConfig == nil {
		return nil, provider.NewValidationError("xml document has no recognized children", nil)
	}

	var envs []model.Envelope
	next := func() model.Envelope {
		e := model.Envelope{TimestampMillis: tsMillis, SourceTag: sourceTag, Seq: seq}
		seq++
		return e
	}

	if doc.RaceConfig != nil {
		env := next()
		env.Kind = model.KindConfig
		env.Config = &model.RaceConfig{
			RaceID:    doc.RaceConfig.Race,
			RaceName:  doc.RaceConfig.Name,
			GateCount: atoiOrZero(doc.RaceConfig.Gates),
		}
		envs = append(envs, env)
	}

	if doc.OnCourse != nil {
		comps := make([]model.Competitor, 0, len(doc.OnCourse.Competitors))
		for _, c := range doc.OnCourse.Competitors {
			if c.Bib == "" {
				continue
			}
			comps = append(comps, model.Competitor{
				Bib:         c.Bib,
				Name:        c.Name,
				Club:        c.Club,
				Nat:         c.Nat,
				RaceID:      c.Race,
				CurrentTime: c.Time,
				TotalTime:   c.Total,
				Penalty:     atoiOrZero(c.Pen),
				Gates:       c.Gates,
				StartTS:     millisOrNil(c.DtStart),
				FinishTS:    millisOrNil(c.DtFinish),
				Rank:        atoiOrZero(c.Rank),
			})
		}
		env := next()
		env.Kind = model.KindOnCourseList
		env.OnCourse = &model.OnCourseUpdate{Snapshot: true, Competitors: comps}
		envs = append(envs, env)
	}

	if doc.Results != nil {
		rows := make([]model.ResultRow, 0, len(doc.Results.Rows))
		for _, r := range doc.Results.Rows {
			rows = append(rows, model.ResultRow{
				Rank:    atoiOrZero(r.Rank),
				Bib:     r.Bib,
				Name:    r.Name,
				Club:    r.Club,
				Nat:     r.Nat,
				Total:   r.Total,
				Penalty: atoiOrZero(r.Pen),
				Behind:  r.Behind,
			})
		}
		// Upstream order is not trusted.
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
		env := next()
		env.Kind = model.KindResults
		env.Results = &model.ResultsSnapshot{
			RaceID:     doc.Results.Race,
			RaceName:   doc.Results.Name,
			RaceStatus: doc.Results.Status,
			Rows:       rows,
		}
		envs = append(envs, env)
	}

	if doc.TimeOfDay != nil {
		env := next()
		env.Kind = model.KindEventInfo
		env.EventInfo = &model.EventInfo{DayTime: doc.TimeOfDay.Time}
		envs = append(envs, env)
	}

	return envs, nil
}
