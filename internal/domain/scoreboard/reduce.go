package scoreboard

import (
	"time"

	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/pkg/metrics"
)

// Reduce folds one envelope into the state and returns the next
// snapshot. It is pure with respect to its inputs: the given state is
// never mutated, so a half-applied transition is never observable.
func Reduce(cfg Config, s State, env model.Envelope) State {
	cfg = cfg.withDefaults()
	start := time.Now()
	defer func() {
		metrics.RecordFoldLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	now := env.TimestampMillis
	if now > s.LastEventMillis {
		s.LastEventMillis = now
	}
	s = expire(cfg, s, now)

	switch env.Kind {
	case model.KindResults:
		if env.Results != nil {
			s = applyResults(cfg, s, *env.Results, now)
		}
	case model.KindOnCourseList, model.KindCompetitor:
		if env.OnCourse != nil {
			s = applyOnCourse(cfg, s, *env.OnCourse, now)
		}
	case model.KindVisibility:
		if env.Visibility != nil {
			s.Visibility = forcedVisibility(*env.Visibility)
		}
	case model.KindEventInfo:
		if env.EventInfo != nil {
			s.EventInfo = mergeEventInfo(s.EventInfo, *env.EventInfo)
		}
	case model.KindConfig:
		if env.Config != nil {
			s.RaceConfig = *env.Config
		}
	}

	metrics.UpdateOnCourseSize(len(s.OnCourse))
	return s
}

// expire drops transient markers and graced-out finishers whose windows
// have elapsed by the given event time. Consumers recompute activity on
// demand as well, so a late expiry here never shows stale emphasis.
func expire(cfg Config, s State, now int64) State {
	if s.Departing != nil && now-s.Departing.AtMillis >= cfg.DepartingFor.Milliseconds() {
		s.Departing = nil
	}
	if s.Highlight != nil && now-s.Highlight.AtMillis >= cfg.HighlightFor.Milliseconds() {
		s.Highlight = nil
	}
	if s.Pending != nil && now-s.Pending.AtMillis > cfg.PendingWindow.Milliseconds() {
		s.Pending = nil
	}

	grace := cfg.FinishGrace.Milliseconds()
	kept := make([]Entry, 0, len(s.OnCourse))
	var gracedOut []string
	for _, e := range s.OnCourse {
		if e.FinishSeenMillis > 0 && now-e.FinishSeenMillis >= grace {
			gracedOut = append(gracedOut, e.Bib)
			continue
		}
		kept = append(kept, e)
	}
	s.OnCourse = kept

	if len(gracedOut) > 0 {
		g := copyGraced(s.Graced, len(gracedOut))
		for _, bib := range gracedOut {
			g[bib] = now
		}
		s.Graced = g
	}
	return s
}

// copyGraced clones the graced-out set so Reduce never mutates a map
// shared with an earlier snapshot.
func copyGraced(g map[string]int64, extra int) map[string]int64 {
	out := make(map[string]int64, len(g)+extra)
	for k, v := range g {
		out[k] = v
	}
	return out
}

// deleteGraced returns a clone of the graced-out set without the bib.
func deleteGraced(g map[string]int64, bib string) map[string]int64 {
	out := make(map[string]int64, len(g))
	for k, v := range g {
		if k != bib {
			out[k] = v
		}
	}
	return out
}

// applyResults replaces the results list and, when a fresh pending
// highlight finds its bib confirmed in the new rows, activates the
// highlight.
func applyResults(cfg Config, s State, rs model.ResultsSnapshot, now int64) State {
	// Results for a race other than the active one are cleared rather
	// than shown: some transports rotate through categories.
	if rs.RaceID != "" && s.ActiveRaceID != "" && rs.RaceID != s.ActiveRaceID {
		s.Results = model.ResultsSnapshot{
			RaceID:     rs.RaceID,
			RaceName:   rs.RaceName,
			RaceStatus: rs.RaceStatus,
		}
	} else {
		s.Results = rs
	}

	if s.Pending == nil {
		return s
	}
	if now-s.Pending.AtMillis > cfg.PendingWindow.Milliseconds() {
		// Confirmation arrived too late; drop without activating.
		s.Pending = nil
		return s
	}
	for _, row := range s.Results.Rows {
		if row.Bib != s.Pending.Bib {
			continue
		}
		s.Highlight = &Mark{Bib: s.Pending.Bib, AtMillis: now}
		if s.Departing != nil && s.Departing.Bib == s.Pending.Bib {
			s.Departing = nil
		}
		s.Pending = nil
		metrics.RecordHighlightActivation()
		break
	}
	return s
}

// applyOnCourse reconciles an on-course snapshot or partial update into
// the tracked set, detects finish transitions, reselects the current
// competitor, and maintains the departing marker.
func applyOnCourse(cfg Config, s State, update model.OnCourseUpdate, now int64) State {
	prevByBib := make(map[string]Entry, len(s.OnCourse))
	for _, e := range s.OnCourse {
		prevByBib[e.Bib] = e
	}

	var entries []Entry
	if update.Snapshot {
		listed := make(map[string]bool, len(update.Competitors))
		entries = make([]Entry, 0, len(update.Competitors))
		for _, c := range update.Competitors {
			listed[c.Bib] = true
			if _, out := s.Graced[c.Bib]; out {
				if c.Finished() {
					// Upstream still lists a finisher whose grace
					// already lapsed here; re-adding would restart the
					// removal clock.
					continue
				}
				s.Graced = deleteGraced(s.Graced, c.Bib)
			}
			e := Entry{Competitor: c}
			if old, ok := prevByBib[c.Bib]; ok {
				// Snapshots replace wholesale but must not forget
				// signals they omit.
				e.Competitor = old.Competitor.MergeTiming(c)
				e.FinishSeenMillis = old.FinishSeenMillis
			}
			entries = append(entries, e)
		}
		// Finishers inside their grace stay visible even when upstream
		// has already dropped them from the snapshot.
		for _, e := range s.OnCourse {
			if e.FinishSeenMillis > 0 && !listed[e.Bib] {
				entries = append(entries, e)
			}
		}
	} else {
		entries = make([]Entry, len(s.OnCourse))
		copy(entries, s.OnCourse)
		for _, c := range update.Competitors {
			merged := false
			for i := range entries {
				if entries[i].Bib == c.Bib {
					entries[i].Competitor = entries[i].Competitor.MergeTiming(c)
					merged = true
					break
				}
			}
			if merged {
				continue
			}
			if _, out := s.Graced[c.Bib]; out {
				if c.Finished() {
					continue
				}
				s.Graced = deleteGraced(s.Graced, c.Bib)
			}
			entries = append(entries, Entry{Competitor: c})
		}
	}

	// Finish transitions: only a finish this process watched appear
	// counts, and only the first one found in a single event. A
	// competitor arriving already finished (fresh after reconnect) is
	// tracked for grace removal but triggers nothing.
	transitionBib := ""
	for i := range entries {
		if !entries[i].Finished() {
			continue
		}
		if entries[i].FinishSeenMillis == 0 {
			entries[i].FinishSeenMillis = now
			old, known := prevByBib[entries[i].Bib]
			if transitionBib == "" && known && !old.Finished() {
				transitionBib = entries[i].Bib
			}
		}
	}
	s.OnCourse = entries

	// One pending at a time: a second finish inside the window waits
	// its turn and is dropped by the first-wins policy.
	if transitionBib != "" && s.Pending == nil {
		s.Pending = &Mark{Bib: transitionBib, AtMillis: now}
		metrics.RecordFinishTransition()
	}

	prevCurrent := s.Current
	s.Current = selectCurrent(entries)

	if prevCurrent != nil && (s.Current == nil || s.Current.Bib != prevCurrent.Bib) {
		s.Departing = &Mark{Bib: prevCurrent.Bib, AtMillis: now}
		metrics.RecordDepartingTransition()
	}
	if s.Pending != nil && s.Departing != nil && s.Departing.Bib == s.Pending.Bib {
		// The finish signal explains the departure; no need for both.
		s.Departing = nil
	}

	s.ActiveRaceID = deriveActiveRace(s)
	return s
}

// selectCurrent picks the competitor to feature: none when nobody
// unfinished is on course, the single one when there is exactly one,
// and under concurrent starts the earliest starter, with unstarted
// competitors last and the bib as the deterministic tiebreak.
func selectCurrent(entries []Entry) *model.Competitor {
	var best *Entry
	for i := range entries {
		e := &entries[i]
		if e.Finished() {
			continue
		}
		if best == nil || currentBefore(*e, *best) {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	c := best.Competitor
	return &c
}

func currentBefore(a, b Entry) bool {
	switch {
	case a.Started() && !b.Started():
		return true
	case !a.Started() && b.Started():
		return false
	case a.Started() && b.Started():
		if *a.StartTS != *b.StartTS {
			return *a.StartTS < *b.StartTS
		}
	}
	return lessBib(a.Bib, b.Bib)
}

// deriveActiveRace keeps the last known race id through transient
// "nobody on course" states so the results filter does not get wiped.
func deriveActiveRace(s State) string {
	if s.Current != nil && s.Current.RaceID != "" {
		return s.Current.RaceID
	}
	for _, e := range s.OnCourse {
		if e.RaceID != "" {
			return e.RaceID
		}
	}
	return s.ActiveRaceID
}

// mergeEventInfo applies only non-empty incoming fields. Empty means "no
// update", never "clear".
func mergeEventInfo(cur, in model.EventInfo) model.EventInfo {
	if in.Title != "" {
		cur.Title = in.Title
	}
	if in.Info != "" {
		cur.Info = in.Info
	}
	if in.DayTime != "" {
		cur.DayTime = in.DayTime
	}
	return cur
}
