// Package scoreboard derives the on-screen state from the normalized
// event stream: current results, who is on course, who is current, who
// is departing, and who deserves a highlight.
//
// The core is a pure transition function (Reduce) over an immutable
// State snapshot; nothing outside Reduce mutates race-derived fields.
package scoreboard

import (
	"strconv"
	"time"

	"github.com/gateclock/scoreboard/internal/domain/model"
)

// Correlation timing defaults.
const (
	DefaultFinishGrace   = 5 * time.Second
	DefaultDepartingFor  = 3 * time.Second
	DefaultPendingWindow = 10 * time.Second
	DefaultHighlightFor  = 10 * time.Second
)

// Config holds the correlation windows. All zero-value fields fall back
// to the defaults.
type Config struct {
	// FinishGrace keeps a finished competitor visible on course before
	// removal.
	FinishGrace time.Duration

	// DepartingFor bounds how long a competitor stays "departing" after
	// losing the current slot without a confirmed finish.
	DepartingFor time.Duration

	// PendingWindow bounds how long an observed finish waits for results
	// confirmation before the highlight is dropped.
	PendingWindow time.Duration

	// HighlightFor bounds how long an activated highlight stays on.
	HighlightFor time.Duration
}

// DefaultConfig returns the stock correlation windows.
func DefaultConfig() Config {
	return Config{
		FinishGrace:   DefaultFinishGrace,
		DepartingFor:  DefaultDepartingFor,
		PendingWindow: DefaultPendingWindow,
		HighlightFor:  DefaultHighlightFor,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FinishGrace <= 0 {
		c.FinishGrace = d.FinishGrace
	}
	if c.DepartingFor <= 0 {
		c.DepartingFor = d.DepartingFor
	}
	if c.PendingWindow <= 0 {
		c.PendingWindow = d.PendingWindow
	}
	if c.HighlightFor <= 0 {
		c.HighlightFor = d.HighlightFor
	}
	return c
}

// Mark ties a bib to the event time a transient state was entered.
type Mark struct {
	Bib      string `json:"bib"`
	AtMillis int64  `json:"at_millis"`
}

// Entry is one tracked on-course competitor. FinishSeenMillis records
// when this process observed the finish signal; zero while unfinished.
// It drives grace-period removal and distinguishes an observed finish
// transition from a competitor that arrived already finished.
type Entry struct {
	model.Competitor
	FinishSeenMillis int64 `json:"finish_seen_millis"`
}

// State is the aggregate scoreboard snapshot owned by the correlator.
// All times are event-stream milliseconds, which track wall time on live
// transports and virtual time under replay.
type State struct {
	Results    model.ResultsSnapshot `json:"results"`
	RaceConfig model.RaceConfig      `json:"race_config"`

	OnCourse     []Entry           `json:"on_course"`
	Current      *model.Competitor `json:"current"`
	ActiveRaceID string            `json:"active_race_id"`

	Departing *Mark `json:"departing"`
	Highlight *Mark `json:"highlight"`
	Pending   *Mark `json:"pending"`

	// Graced records finishers whose grace period has lapsed, keyed by
	// bib. Upstream snapshots may keep listing a finisher long after the
	// finish; without this the next snapshot would re-add the entry with
	// a fresh removal clock. A bib leaves the set when it reappears
	// unfinished (a new run) or on ResetRace.
	Graced map[string]int64 `json:"-"`

	Visibility model.Visibility `json:"visibility"`
	EventInfo  model.EventInfo  `json:"event_info"`

	LastEventMillis int64 `json:"last_event_millis"`
}

// NewState returns the initial snapshot. Core panels start visible; the
// correlator keeps forcing them visible regardless of upstream control
// messages.
func NewState() State {
	return State{Visibility: forcedVisibility(model.Visibility{})}
}

// ResetRace clears all race-derived state while preserving visibility
// and event info, which are venue-level and must not flicker on
// reconnect.
func (s State) ResetRace() State {
	return State{
		Visibility:      s.Visibility,
		EventInfo:       s.EventInfo,
		LastEventMillis: s.LastEventMillis,
	}
}

// HighlightBib returns the active highlight at the given time, if any.
func (s State) HighlightBib(nowMillis int64, cfg Config) (string, bool) {
	cfg = cfg.withDefaults()
	if s.Highlight == nil || nowMillis-s.Highlight.AtMillis >= cfg.HighlightFor.Milliseconds() {
		return "", false
	}
	return s.Highlight.Bib, true
}

// DepartingBib returns the active departing competitor at the given
// time, if any.
func (s State) DepartingBib(nowMillis int64, cfg Config) (string, bool) {
	cfg = cfg.withDefaults()
	if s.Departing == nil || nowMillis-s.Departing.AtMillis >= cfg.DepartingFor.Milliseconds() {
		return "", false
	}
	return s.Departing.Bib, true
}

// Competitors returns the on-course set including competitors inside
// their finish grace period.
func (s State) Competitors() []model.Competitor {
	out := make([]model.Competitor, 0, len(s.OnCourse))
	for _, e := range s.OnCourse {
		out = append(out, e.Competitor)
	}
	return out
}

// forcedVisibility applies the panels that are always shown. Upstream
// visibility control is advisory for auxiliary flags only.
func forcedVisibility(v model.Visibility) model.Visibility {
	v.TopBar = true
	v.Title = true
	v.Footer = true
	v.Current = true
	v.Results = true
	v.OnCourse = true
	return v
}

// lessBib orders bibs numerically when both parse, lexicographically
// otherwise. Used as the deterministic tiebreak for current selection.
func lessBib(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
