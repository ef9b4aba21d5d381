package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gateclock/scoreboard/internal/feedsim"
	"github.com/gateclock/scoreboard/pkg/logger"
)

func main() {
	defaults := feedsim.DefaultConfig()
	var (
		mode   = flag.String("mode", defaults.Mode, "record, serve-line, or serve-xml")
		output = flag.String("output", defaults.Output, "Recording output path for record mode")
		addr   = flag.String("addr", defaults.Addr, "Listen address for serve modes")
		racers = flag.Int("racers", defaults.Racers, "Number of competitors in the session")
		race   = flag.String("race", defaults.RaceID, "Race identifier")
		pace   = flag.Float64("pace", defaults.Pace, "Real-time pacing multiplier for serve modes")
		seed   = flag.Int64("seed", defaults.Seed, "Deterministic generation seed")
		help   = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		feedsim.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := defaults
	cfg.Mode = *mode
	cfg.Output = *output
	cfg.Addr = *addr
	cfg.Racers = *racers
	cfg.RaceID = *race
	cfg.Pace = *pace
	cfg.Seed = *seed

	if err := feedsim.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("feed simulator failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
