// Package model contains domain models passed between layers.
package model

// Kind discriminates the payload carried by an Envelope.
type Kind string

// Envelope kinds emitted by the feed adapters.
const (
	KindResults      Kind = "results"
	KindCompetitor   Kind = "competitor"
	KindOnCourseList Kind = "onCourseList"
	KindVisibility   Kind = "visibility"
	KindEventInfo    Kind = "eventInfo"
	KindConfig       Kind = "config"
)

// Envelope is the normalized event every feed adapter produces. Exactly one
// payload pointer is non-nil, selected by Kind (KindCompetitor reuses the
// OnCourse payload with Snapshot=false). TimestampMillis is the ordering
// key; Seq is the original stream position and breaks timestamp ties.
type Envelope struct {
	TimestampMillis int64
	SourceTag       string
	Kind            Kind
	Seq             int

	Results    *ResultsSnapshot
	OnCourse   *OnCourseUpdate
	Visibility *Visibility
	EventInfo  *EventInfo
	Config     *RaceConfig
}

// Competitor is an on-course entity keyed by bib. Start/finish timestamps
// are nil until the corresponding signal has been seen; their transition
// from nil to set is the primary finish signal.
type Competitor struct {
	Bib         string `json:"bib"`
	Name        string `json:"name"`
	Club        string `json:"club"`
	Nat         string `json:"nat"`
	RaceID      string `json:"race_id"`
	CurrentTime string `json:"current_time"`
	TotalTime   string `json:"total_time"`
	Penalty     int    `json:"penalty"`
	Gates       string `json:"gates"`
	StartTS     *int64 `json:"start_ts"`
	FinishTS    *int64 `json:"finish_ts"`
	Rank        int    `json:"rank"`
}

// Started reports whether a start timestamp has been observed.
func (c Competitor) Started() bool { return c.StartTS != nil }

// Finished reports whether a finish timestamp has been observed.
func (c Competitor) Finished() bool { return c.FinishTS != nil }

// MergeTiming folds a partial update into c, overwriting only the fields
// the update carries. Start and finish timestamps absent from the update
// are preserved; identity fields are taken from the update when non-empty.
func (c Competitor) MergeTiming(update Competitor) Competitor {
	merged := c
	if update.Name != "" {
		merged.Name = update.Name
	}
	if update.Club != "" {
		merged.Club = update.Club
	}
	if update.Nat != "" {
		merged.Nat = update.Nat
	}
	if update.RaceID != "" {
		merged.RaceID = update.RaceID
	}
	if update.CurrentTime != "" {
		merged.CurrentTime = update.CurrentTime
	}
	if update.TotalTime != "" {
		merged.TotalTime = update.TotalTime
	}
	if update.Gates != "" {
		merged.Gates = update.Gates
	}
	if update.Penalty != 0 {
		merged.Penalty = update.Penalty
	}
	if update.Rank != 0 {
		merged.Rank = update.Rank
	}
	if update.StartTS != nil {
		merged.StartTS = update.StartTS
	}
	if update.FinishTS != nil {
		merged.FinishTS = update.FinishTS
	}
	return merged
}

// ResultRow is one ranked line of a results snapshot.
type ResultRow struct {
	Rank    int    `json:"rank"`
	Bib     string `json:"bib"`
	Name    string `json:"name"`
	Club    string `json:"club"`
	Nat     string `json:"nat"`
	Total   string `json:"total"`
	Penalty int    `json:"penalty"`
	Behind  string `json:"behind"`
}

// ResultsSnapshot replaces the current results list wholesale. Rows are
// ordered ascending by rank.
type ResultsSnapshot struct {
	RaceID     string      `json:"race_id"`
	RaceName   string      `json:"race_name"`
	RaceStatus string      `json:"race_status"`
	Rows       []ResultRow `json:"rows"`
}

// OnCourseUpdate carries the competitors currently on course. Snapshot=true
// replaces the whole set; Snapshot=false merges the carried competitors
// into the existing set by bib.
type OnCourseUpdate struct {
	Snapshot    bool         `json:"snapshot"`
	Competitors []Competitor `json:"competitors"`
}

// Visibility carries upstream panel visibility instructions. Core panels
// are forced visible by the correlator; only auxiliary flags (day time)
// are honored as sent.
type Visibility struct {
	TopBar   bool `json:"top_bar"`
	Title    bool `json:"title"`
	Footer   bool `json:"footer"`
	Current  bool `json:"current"`
	Results  bool `json:"results"`
	OnCourse bool `json:"on_course"`
	DayTime  bool `json:"day_time"`
}

// EventInfo carries venue-level text. Empty fields mean "no update", never
// "clear"; some transports send partial updates.
type EventInfo struct {
	Title   string `json:"title"`
	Info    string `json:"info"`
	DayTime string `json:"day_time"`
}

// RaceConfig describes the course setup announced by the XML transport.
type RaceConfig struct {
	RaceID    string `json:"race_id"`
	RaceName  string `json:"race_name"`
	GateCount int    `json:"gate_count"`
}
