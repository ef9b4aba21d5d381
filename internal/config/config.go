// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"time"
)

// Feed source kinds.
const (
	SourceReplay = "replay"
	SourceLine   = "line"
	SourceXML    = "xml"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Source selects the feed transport: replay, line, or xml.
	Source string `koanf:"source"`

	// LineAddr is the TCP address of the line-JSON feed.
	LineAddr string `koanf:"line_addr"`

	// XMLURL is the WebSocket URL of the XML feed.
	XMLURL string `koanf:"xml_url"`

	// Recording is the path of the recorded session for replay.
	Recording string `koanf:"recording"`

	// Speed is the initial replay speed multiplier.
	Speed float64 `koanf:"speed"`

	// Loop restarts replay from the beginning after the last message.
	Loop bool `koanf:"loop"`

	// AutoReconnect re-establishes live transports after loss.
	AutoReconnect bool `koanf:"auto_reconnect"`

	// InitialReconnectDelayMS and MaxReconnectDelayMS bound the backoff.
	InitialReconnectDelayMS int `koanf:"initial_reconnect_delay_ms"`
	MaxReconnectDelayMS     int `koanf:"max_reconnect_delay_ms"`

	// QueueSize bounds the in-memory envelope queue.
	QueueSize int `koanf:"queue_size"`

	// Correlation windows, in milliseconds. Zero keeps the defaults.
	FinishGraceMS   int `koanf:"finish_grace_ms"`
	DepartingForMS  int `koanf:"departing_for_ms"`
	PendingWindowMS int `koanf:"pending_window_ms"`
	HighlightForMS  int `koanf:"highlight_for_ms"`

	// ErrorHistorySize caps the retained provider error history.
	ErrorHistorySize int `koanf:"error_history_size"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use and
// is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9080",
		Source:                  SourceReplay,
		LineAddr:                "127.0.0.1:9002",
		XMLURL:                  "ws://127.0.0.1:9003/feed",
		Recording:               "session.ndjson",
		Speed:                   1.0,
		AutoReconnect:           true,
		InitialReconnectDelayMS: 1000,
		MaxReconnectDelayMS:     30000,
		QueueSize:               4096,
		ErrorHistorySize:        10,
	}
}

// InitialReconnectDelay returns the configured first backoff delay.
func (c *Config) InitialReconnectDelay() time.Duration {
	return time.Duration(c.InitialReconnectDelayMS) * time.Millisecond
}

// MaxReconnectDelay returns the configured backoff cap.
func (c *Config) MaxReconnectDelay() time.Duration {
	return time.Duration(c.MaxReconnectDelayMS) * time.Millisecond
}
