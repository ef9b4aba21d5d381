package feedsim

import "time"

// Modes for the simulator.
const (
	ModeRecord    = "record"
	ModeServeLine = "serve-line"
	ModeServeXML  = "serve-xml"
)

// Config holds configuration for the feed simulator.
type Config struct {
	Mode       string        // record, serve-line, or serve-xml
	Output     string        // Output file for record mode
	Addr       string        // Listen address for serve modes
	Source     string        // Source tag stamped on recorded lines
	Racers     int           // Number of competitors in the session
	RaceID     string        // Race identifier
	RaceName   string        // Race display name
	Gates      int           // Gate count for the course config
	StartGap   time.Duration // Virtual gap between consecutive starts
	RunTime    time.Duration // Virtual time from start to finish per competitor
	SplitEvery time.Duration // Interval between intermediate time updates
	Pace       float64       // Real-time pacing multiplier for serve modes
	Seed       int64         // Deterministic generation seed
}

// DefaultConfig returns the stock simulator configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:       ModeRecord,
		Output:     "session.ndjson",
		Addr:       ":9002",
		Source:     "sim",
		Racers:     8,
		RaceID:     "R1",
		RaceName:   "Heat 1",
		Gates:      22,
		StartGap:   45 * time.Second,
		RunTime:    90 * time.Second,
		SplitEvery: 10 * time.Second,
		Pace:       1.0,
		Seed:       1,
	}
}
