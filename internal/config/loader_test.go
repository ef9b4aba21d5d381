package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gateclock/scoreboard/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given no overrides", t, func() {
		cfg, err := config.Load(ctx)

		Convey("Then the defaults come back validated", func() {
			So(err, ShouldBeNil)
			So(cfg.Source, ShouldEqual, config.SourceReplay)
			So(cfg.Addr, ShouldEqual, ":9080")
		})
	})

	Convey("Given environment overrides", t, func() {
		t.Setenv("SCOREBOARD_SOURCE", "line")
		t.Setenv("SCOREBOARD_LINE_ADDR", "10.0.0.5:9002")
		t.Setenv("SCOREBOARD_QUEUE_SIZE", "128")
		t.Setenv("SCOREBOARD_LOOP", "true")

		cfg, err := config.Load(ctx)

		Convey("Then they override the defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Source, ShouldEqual, config.SourceLine)
			So(cfg.LineAddr, ShouldEqual, "10.0.0.5:9002")
			So(cfg.QueueSize, ShouldEqual, 128)
			So(cfg.Loop, ShouldBeTrue)
		})

		Convey("Then untouched fields keep their defaults", func() {
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.Speed, ShouldEqual, 1.0)
		})
	})

	Convey("Given a config file", t, func() {
		path := writeConfigFile(t, "source: xml\nxml_url: ws://feed.example:9003/feed\nspeed: 2.5\n")
		t.Setenv("SCOREBOARD_CONFIG", path)

		Convey("When loaded without env overrides", func() {
			cfg, err := config.Load(ctx)

			Convey("Then file values apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Source, ShouldEqual, config.SourceXML)
				So(cfg.XMLURL, ShouldEqual, "ws://feed.example:9003/feed")
				So(cfg.Speed, ShouldEqual, 2.5)
			})
		})

		Convey("When env overrides the file", func() {
			t.Setenv("SCOREBOARD_SPEED", "4")
			cfg, err := config.Load(ctx)

			Convey("Then env wins", func() {
				So(err, ShouldBeNil)
				So(cfg.Speed, ShouldEqual, 4.0)
			})
		})

		Convey("When the file path does not exist", func() {
			t.Setenv("SCOREBOARD_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)

			Convey("Then loading fails with ErrLoadConfig", func() {
				So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
			})
		})
	})

	Convey("Given invalid settings", t, func() {
		cases := map[string]map[string]string{
			"an empty addr":     {"SCOREBOARD_ADDR": ""},
			"an unknown source": {"SCOREBOARD_SOURCE": "udp"},
			"a zero speed":      {"SCOREBOARD_SPEED": "0"},
			"a missing line target": {
				"SCOREBOARD_SOURCE":    "line",
				"SCOREBOARD_LINE_ADDR": "",
			},
			"a missing xml target": {
				"SCOREBOARD_SOURCE":  "xml",
				"SCOREBOARD_XML_URL": "",
			},
			"a missing recording": {
				"SCOREBOARD_SOURCE":    "replay",
				"SCOREBOARD_RECORDING": "",
			},
		}

		for name, envs := range cases {
			Convey("When loading with "+name, func() {
				for key, val := range envs {
					t.Setenv(key, val)
				}
				_, err := config.Load(ctx)

				Convey("Then validation rejects it", func() {
					So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
				})
			})
		}
	})
}
