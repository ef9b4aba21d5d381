package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/gateclock/scoreboard/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := config.New(context.Background())

		Convey("Then it targets the replay source", func() {
			So(cfg.Source, ShouldEqual, config.SourceReplay)
			So(cfg.Recording, ShouldEqual, "session.ndjson")
			So(cfg.Speed, ShouldEqual, 1.0)
		})

		Convey("Then server and feed defaults are sane", func() {
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.LineAddr, ShouldNotBeEmpty)
			So(cfg.XMLURL, ShouldStartWith, "ws://")
			So(cfg.QueueSize, ShouldEqual, 4096)
			So(cfg.ErrorHistorySize, ShouldEqual, 10)
		})

		Convey("Then the reconnect backoff matches the protocol bounds", func() {
			So(cfg.AutoReconnect, ShouldBeTrue)
			So(cfg.InitialReconnectDelay(), ShouldEqual, time.Second)
			So(cfg.MaxReconnectDelay(), ShouldEqual, 30*time.Second)
		})
	})
}
