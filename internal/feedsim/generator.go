// Package feedsim generates synthetic timing sessions and serves them
// over the same transports the service consumes: a recording file, a
// TCP line-JSON feed, or a WebSocket XML feed.
package feedsim

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// Tick is one simulated feed message at a virtual offset from session
// start.
type Tick struct {
	AtMillis int64
	Msg      string
	Payload  any
}

// Payload shapes mirror the line protocol bodies.
type simCompetitor struct {
	Bib      string `json:"bib"`
	Name     string `json:"name,omitempty"`
	Club     string `json:"club,omitempty"`
	Nat      string `json:"nat,omitempty"`
	Race     string `json:"race,omitempty"`
	Time     string `json:"time,omitempty"`
	Total    string `json:"total,omitempty"`
	Pen      int    `json:"pen,omitempty"`
	Gates    string `json:"gates,omitempty"`
	DtStart  *int64 `json:"dtStart,omitempty"`
	DtFinish *int64 `json:"dtFinish,omitempty"`
	Rank     int    `json:"rank,omitempty"`
}

type simResultRow struct {
	Rank   int    `json:"rank"`
	Bib    string `json:"bib"`
	Name   string `json:"name"`
	Club   string `json:"club"`
	Nat    string `json:"nat"`
	Total  string `json:"total"`
	Pen    int    `json:"pen"`
	Behind string `json:"behind"`
}

type simResults struct {
	Race     string         `json:"race"`
	RaceName string         `json:"racename"`
	Status   string         `json:"status"`
	List     []simResultRow `json:"list"`
}

type simOnCourse struct {
	List []simCompetitor `json:"list"`
}

type simControl struct {
	TopBar   bool `json:"topbar"`
	Title    bool `json:"title"`
	Footer   bool `json:"footer"`
	Current  bool `json:"current"`
	Results  bool `json:"results"`
	OnCourse bool `json:"oncourse"`
	DayTime  bool `json:"daytime"`
}

type simEventInfo struct {
	Title   string `json:"title,omitempty"`
	Info    string `json:"info,omitempty"`
	DayTime string `json:"daytime,omitempty"`
}

type simRaceConfig struct {
	Race     string `json:"race"`
	RaceName string `json:"racename"`
	Gates    int    `json:"gates"`
}

var firstNames = []string{"Jana", "Peter", "Lucia", "Marco", "Eva", "Tomas", "Nina", "Felix", "Ida", "Ondrej"}
var lastNames = []string{"Novak", "Fischer", "Kralova", "Bianchi", "Horvath", "Svoboda", "Keller", "Moreau", "Lund", "Gajdos"}
var nations = []string{"SVK", "GER", "CZE", "ITA", "HUN", "FRA", "AUT", "SUI"}

type racer struct {
	bib      string
	name     string
	club     string
	nat      string
	startMs  int64
	finishMs int64
	penalty  int
	totalCs  int64 // run time in centiseconds, penalties included
}

// Generate builds the full session timeline, sorted by virtual time.
func Generate(cfg *Config) []Tick {
	rng := rand.New(rand.NewSource(cfg.Seed))

	racers := make([]racer, cfg.Racers)
	for i := range racers {
		runMs := cfg.RunTime.Milliseconds() + rng.Int63n(cfg.RunTime.Milliseconds()/4)
		pen := 0
		if rng.Intn(3) == 0 {
			pen = 2 * (1 + rng.Intn(2))
		}
		start := int64(i)*cfg.StartGap.Milliseconds() + 5000
		racers[i] = racer{
			bib:      fmt.Sprintf("%d", i+1),
			name:     firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))],
			club:     "KC " + lastNames[rng.Intn(len(lastNames))],
			nat:      nations[rng.Intn(len(nations))],
			startMs:  start,
			finishMs: start + runMs,
			penalty:  pen,
			totalCs:  runMs/10 + int64(pen)*200,
		}
	}

	var ticks []Tick
	emit := func(at int64, msg string, payload any) {
		ticks = append(ticks, Tick{AtMillis: at, Msg: msg, Payload: payload})
	}

	emit(0, "title", simEventInfo{Title: cfg.RaceName, Info: "Canoe Slalom"})
	emit(50, "config", simRaceConfig{Race: cfg.RaceID, RaceName: cfg.RaceName, Gates: cfg.Gates})
	emit(100, "control", simControl{
		TopBar: true, Title: true, Footer: true,
		Current: true, Results: true, OnCourse: true, DayTime: true,
	})

	for i := range racers {
		r := &racers[i]

		// Start: competitor appears with a start timestamp, the full
		// on-course set follows as a snapshot.
		emit(r.startMs, "comp", simCompetitor{
			Bib: r.bib, Name: r.name, Club: r.club, Nat: r.nat,
			Race: cfg.RaceID, DtStart: int64p(r.startMs),
		})
		emit(r.startMs+200, "oncourse", onCourseAt(cfg, racers, r.startMs+200))

		// Intermediate times.
		for at := r.startMs + cfg.SplitEvery.Milliseconds(); at < r.finishMs; at += cfg.SplitEvery.Milliseconds() {
			emit(at, "comp", simCompetitor{
				Bib:  r.bib,
				Race: cfg.RaceID,
				Time: formatCs((at - r.startMs) / 10),
				Pen:  r.penalty,
			})
		}

		// Finish, then the confirming results snapshot shortly after.
		emit(r.finishMs, "comp", simCompetitor{
			Bib:      r.bib,
			Race:     cfg.RaceID,
			Total:    formatCs(r.totalCs),
			Pen:      r.penalty,
			DtStart:  int64p(r.startMs),
			DtFinish: int64p(r.finishMs),
		})
		emit(r.finishMs+200, "oncourse", onCourseAt(cfg, racers, r.finishMs+200))
		emit(r.finishMs+1500, "top", resultsAt(cfg, racers, r.finishMs+1500))
	}

	// Day time updates every virtual minute.
	last := racers[len(racers)-1].finishMs + 3000
	base := time.Date(2026, 6, 14, 10, 0, 0, 0, time.UTC)
	for at := int64(0); at <= last; at += 60000 {
		emit(at+10, "daytime", simEventInfo{
			DayTime: base.Add(time.Duration(at) * time.Millisecond).Format("15:04:05"),
		})
	}

	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].AtMillis < ticks[j].AtMillis })
	return ticks
}

// onCourseAt returns the snapshot at the given virtual time: everyone
// started and not yet past the post-finish display window, with finish
// signals included once crossed.
func onCourseAt(cfg *Config, racers []racer, at int64) simOnCourse {
	const displayAfterFinishMs = 5000

	var oc simOnCourse
	for _, r := range racers {
		if r.startMs > at || r.finishMs+displayAfterFinishMs < at {
			continue
		}
		c := simCompetitor{
			Bib: r.bib, Name: r.name, Club: r.club, Nat: r.nat,
			Race: cfg.RaceID, DtStart: int64p(r.startMs), Pen: r.penalty,
		}
		if r.finishMs <= at {
			c.DtFinish = int64p(r.finishMs)
			c.Total = formatCs(r.totalCs)
		}
		oc.List = append(oc.List, c)
	}
	return oc
}

// resultsAt ranks every competitor finished by the given virtual time.
func resultsAt(cfg *Config, racers []racer, at int64) simResults {
	var done []racer
	for _, r := range racers {
		if r.finishMs+1500 <= at {
			done = append(done, r)
		}
	}
	sort.SliceStable(done, func(i, j int) bool { return done[i].totalCs < done[j].totalCs })

	res := simResults{Race: cfg.RaceID, RaceName: cfg.RaceName, Status: "running"}
	for i, r := range done {
		behind := ""
		if i > 0 {
			behind = "+" + formatCs(r.totalCs-done[0].totalCs)
		}
		res.List = append(res.List, simResultRow{
			Rank: i + 1, Bib: r.bib, Name: r.name, Club: r.club, Nat: r.nat,
			Total: formatCs(r.totalCs), Pen: r.penalty, Behind: behind,
		})
	}
	return res
}

// formatCs renders centiseconds as m:ss.cc.
func formatCs(cs int64) string {
	m := cs / 6000
	s := (cs % 6000) / 100
	c := cs % 100
	return fmt.Sprintf("%d:%02d.%02d", m, s, c)
}

func int64p(v int64) *int64 { return &v }

// LineJSON renders a tick as one line-protocol message.
func (t Tick) LineJSON() ([]byte, error) {
	data, err := json.Marshal(t.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(struct {
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}{Msg: t.Msg, Data: data})
}
