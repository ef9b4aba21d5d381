package feedsim

import (
	"context"
	"fmt"
	"os"

	"github.com/gateclock/scoreboard/pkg/logger"
)

// Run generates the session and executes the configured mode.
func Run(ctx context.Context, cfg *Config) error {
	ticks := Generate(cfg)
	logger.Get().Info(ctx, "session generated",
		logger.String("mode", cfg.Mode),
		logger.Int("racers", cfg.Racers),
		logger.Int("messages", len(ticks)),
	)

	switch cfg.Mode {
	case ModeRecord:
		return WriteRecording(ctx, cfg, ticks)
	case ModeServeLine:
		return ServeLine(ctx, cfg, ticks)
	case ModeServeXML:
		return ServeXML(ctx, cfg, ticks)
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// ShowHelp prints usage information for the feed simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Scoreboard Feed Simulator
=========================

Generates a synthetic timing session and either writes it as a
recording or serves it live over the feed transports.

Usage:
  go run cmd/feed-sim/main.go [options]

Options:
  -mode string
        record, serve-line, or serve-xml (default "record")
  -output string
        Recording output path for record mode (default "session.ndjson")
  -addr string
        Listen address for serve modes (default ":9002")
  -racers int
        Number of competitors in the session (default 8)
  -race string
        Race identifier (default "R1")
  -pace float
        Real-time pacing multiplier for serve modes (default 1.0)
  -seed int
        Deterministic generation seed (default 1)
  -help
        Show this help message

Examples:
  # Write a recording for replay
  go run cmd/feed-sim/main.go -mode record -output session.ndjson

  # Serve the line-JSON feed at 10x speed
  go run cmd/feed-sim/main.go -mode serve-line -addr :9002 -pace 10

  # Serve the WebSocket XML feed
  go run cmd/feed-sim/main.go -mode serve-xml -addr :9003
`)
}
