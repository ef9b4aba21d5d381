package feedsim

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gateclock/scoreboard/pkg/logger"
)

const recordingFilePermission = 0600

// WriteRecording renders the session as a newline-delimited recording
// file, with a metadata header line first.
func WriteRecording(ctx context.Context, cfg *Config, ticks []Tick) error {
	file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, recordingFilePermission)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	defer func() { _ = file.Close() }()

	w := bufio.NewWriter(file)

	meta, err := json.Marshal(map[string]any{
		"_meta": map[string]any{
			"generator": "feedsim",
			"race":      cfg.RaceID,
			"racers":    cfg.Racers,
			"created":   time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if _, err := w.Write(append(meta, '\n')); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	for i, t := range ticks {
		data, err := t.LineJSON()
		if err != nil {
			return fmt.Errorf("render tick %d: %w", i, err)
		}
		line, err := json.Marshal(struct {
			TS   int64           `json:"ts"`
			Src  string          `json:"src"`
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}{TS: t.AtMillis, Src: cfg.Source, Type: t.Msg, Data: data})
		if err != nil {
			return fmt.Errorf("marshal tick %d: %w", i, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write tick %d: %w", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush recording: %w", err)
	}

	logger.Get().Info(ctx, "recording written",
		logger.String("path", cfg.Output),
		logger.Int("messages", len(ticks)),
	)
	return nil
}
