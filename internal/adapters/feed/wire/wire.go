// Package wire parses the line-oriented JSON feed protocol and the
// recording format built on top of it into normalized envelopes.
//
// Every line is one JSON object with a msg discriminator: top (results
// snapshot), comp (single competitor update), oncourse (full on-course
// snapshot), control (visibility flags), daytime/title (event info), and
// config (course setup). Malformed input yields a PARSE_ERROR; a
// well-formed message whose required fields are all absent still yields
// an envelope with empty content, because downstream correlation depends
// on receiving a message to detect transitions.
package wire

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
)

// Message discriminator values.
const (
	MsgResults  = "top"
	MsgComp     = "comp"
	MsgOnCourse = "oncourse"
	MsgControl  = "control"
	MsgDayTime  = "daytime"
	MsgTitle    = "title"
	MsgConfig   = "config"
)

// Message is one line-protocol unit before payload decoding.
type Message struct {
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type wireCompetitor struct {
	Bib      string `json:"bib"`
	Name     string `json:"name"`
	Club     string `json:"club"`
	Nat      string `json:"nat"`
	Race     string `json:"race"`
	Time     string `json:"time"`
	Total    string `json:"total"`
	Pen      int    `json:"pen"`
	Gates    string `json:"gates"`
	DtStart  *int64 `json:"dtStart"`
	DtFinish *int64 `json:"dtFinish"`
	Rank     int    `json:"rank"`
}

func (w wireCompetitor) toModel() model.Competitor {
	return model.Competitor{
		Bib:         w.Bib,
		Name:        w.Name,
		Club:        w.Club,
		Nat:         w.Nat,
		RaceID:      w.Race,
		CurrentTime: w.Time,
		TotalTime:   w.Total,
		Penalty:     w.Pen,
		Gates:       w.Gates,
		StartTS:     w.DtStart,
		FinishTS:    w.DtFinish,
		Rank:        w.Rank,
	}
}

type wireResultRow struct {
	Rank   int    `json:"rank"`
	Bib    string `json:"bib"`
	Name   string `json:"name"`
	Club   string `json:"club"`
	Nat    string `json:"nat"`
	Total  string `json:"total"`
	Pen    int    `json:"pen"`
	Behind string `json:"behind"`
}

type wireResults struct {
	Race     string          `json:"race"`
	RaceName string          `json:"racename"`
	Status   string          `json:"status"`
	List     []wireResultRow `json:"list"`
}

type wireOnCourse struct {
	List []wireCompetitor `json:"list"`
}

type wireControl struct {
	TopBar   bool `json:"topbar"`
	Title    bool `json:"title"`
	Footer   bool `json:"footer"`
	Current  bool `json:"current"`
	Results  bool `json:"results"`
	OnCourse bool `json:"oncourse"`
	DayTime  bool `json:"daytime"`
}

type wireEventInfo struct {
	Title   string `json:"title"`
	Info    string `json:"info"`
	DayTime string `json:"daytime"`
}

type wireConfig struct {
	Race     string `json:"race"`
	RaceName string `json:"racename"`
	Gates    int    `json:"gates"`
}

// ParseMessage decodes one line-protocol message into an envelope stamped
// with the given receive time, source tag, and sequence position.
func ParseMessage(raw []byte, tsMillis int64, sourceTag string, seq int) (model.Envelope, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.Envelope{}, provider.NewParseError("malformed feed line", err)
	}
	if msg.Msg == "" {
		return model.Envelope{}, provider.NewParseError("feed line missing msg discriminator", nil)
	}

	env := model.Envelope{
		TimestampMillis: tsMillis,
		SourceTag:       sourceTag,
		Seq:             seq,
	}

	switch msg.Msg {
	case MsgResults:
		var body wireResults
		if err := decodePayload(msg.Data, &body); err != nil {
			return model.Envelope{}, err
		}
		rows := make([]model.ResultRow, 0, len(body.List))
		for _, r := range body.List {
			rows = append(rows, model.ResultRow{
				Rank:    r.Rank,
				Bib:     r.Bib,
				Name:    r.Name,
				Club:    r.Club,
				Nat:     r.Nat,
				Total:   r.Total,
				Penalty: r.Pen,
				Behind:  r.Behind,
			})
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
		env.Kind = model.KindResults
		env.Results = &model.ResultsSnapshot{
			RaceID:     body.Race,
			RaceName:   body.RaceName,
			RaceStatus: body.Status,
			Rows:       rows,
		}

	case MsgComp:
		var body wireCompetitor
		if err := decodePayload(msg.Data, &body); err != nil {
			return model.Envelope{}, err
		}
		update := &model.OnCourseUpdate{Snapshot: false}
		// A comp without a bib stays a no-op update rather than being
		// dropped: the correlator needs the message itself.
		if body.Bib != "" {
			update.Competitors = []model.Competitor{body.toModel()}
		}
		env.Kind = model.KindCompetitor
		env.OnCourse = update

	case MsgOnCourse:
		var body wireOnCourse
		if err := decodePayload(msg.Data, &body); err != nil {
			return model.Envelope{}, err
		}
		comps := make([]model.Competitor, 0, len(body.List))
		for _, c := range body.List {
			if c.Bib == "" {
				continue
			}
			comps = append(comps, c.toModel())
		}
		env.Kind = model.KindOnCourseList
		env.OnCourse = &model.OnCourseUpdate{Snapshot: true, Competitors: comps}

	case MsgControl:
		var body wireControl
		if err := decodePayload(msg.Data, &body); err != nil {
			return model.Envelope{}, err
		}
		env.Kind = model.KindVisibility
		env.Visibility = &model.Visibility{
			TopBar:   body.TopBar,
			Title:    body.Title,
			Footer:   body.Footer,
			Current:  body.Current,
			Results:  body.Results,
			OnCourse: body.OnCourse,
			DayTime:  body.DayTime,
		}

	case MsgDayTime, MsgTitle:
		var body wireEventInfo
		if err := decodePayload(msg.Data, &body); err != nil {
			return model.Envelope{}, err
		}
		env.Kind = model.KindEventInfo
		env.EventInfo = &model.EventInfo{
			Title:   body.Title,
			Info:    body.Info,
			DayTime: body.DayTime,
		}

	case MsgConfig:
		var body wireConfig
		if err := decodePayload(msg.Data, &body); err != nil {
			return model.Envelope{}, err
		}
		env.Kind = model.KindConfig
		env.Config = &model.RaceConfig{
			RaceID:    body.Race,
			RaceName:  body.RaceName,
			GateCount: body.Gates,
		}

	default:
		return model.Envelope{}, provider.NewParseError("unknown msg discriminator "+msg.Msg, nil)
	}

	return env, nil
}

// decodePayload unmarshals a payload body, tolerating an absent data
// object (nil or JSON null) so field-less messages stay no-ops.
func decodePayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return provider.NewParseError("malformed feed payload", err)
	}
	return nil
}
