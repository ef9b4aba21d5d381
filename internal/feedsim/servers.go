package feedsim

import (
	"context"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gateclock/scoreboard/pkg/logger"
)

// ServeLine streams the session to every TCP client as newline-delimited
// line-protocol messages, paced by the virtual timestamps.
func ServeLine(ctx context.Context, cfg *Config, ticks []Tick) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	defer func() { _ = ln.Close() }()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	logger.Get().Info(ctx, "line feed listening", logger.String("addr", cfg.Addr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go streamLines(ctx, cfg, conn, ticks)
	}
}

func streamLines(ctx context.Context, cfg *Config, conn net.Conn, ticks []Tick) {
	defer func() { _ = conn.Close() }()
	logger.Get().Info(ctx, "line client connected", logger.String("remote", conn.RemoteAddr().String()))

	pos := int64(0)
	for _, t := range ticks {
		if !pace(ctx, cfg, t.AtMillis-pos) {
			return
		}
		pos = t.AtMillis

		line, err := t.LineJSON()
		if err != nil {
			continue
		}
		if _, err := conn.Write(append(line, '\n')); err != nil {
			logger.Get().Info(ctx, "line client gone", logger.String("remote", conn.RemoteAddr().String()))
			return
		}
	}
}

// ServeXML streams the session to every WebSocket client as XML
// documents, paced by the virtual timestamps.
func ServeXML(ctx context.Context, cfg *Config, ticks []Tick) error {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go streamXML(ctx, cfg, conn, ticks)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	logger.Get().Info(ctx, "xml feed listening", logger.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve xml: %w", err)
	}
	return nil
}

func streamXML(ctx context.Context, cfg *Config, conn *websocket.Conn, ticks []Tick) {
	defer func() { _ = conn.Close() }()

	pos := int64(0)
	for _, t := range ticks {
		doc, ok := t.xmlDocument()
		if !ok {
			continue
		}
		if !pace(ctx, cfg, t.AtMillis-pos) {
			return
		}
		pos = t.AtMillis

		raw, err := xml.Marshal(doc)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
}

// pace sleeps for the scaled virtual delta, bailing out on cancellation.
func pace(ctx context.Context, cfg *Config, deltaMs int64) bool {
	if deltaMs <= 0 || cfg.Pace <= 0 {
		return ctx.Err() == nil
	}
	d := time.Duration(float64(deltaMs)/cfg.Pace) * time.Millisecond
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// XML document shapes mirroring the XML transport.
type xmlDoc struct {
	XMLName    xml.Name       `xml:"Scoreboard"`
	OnCourse   *xmlOnCourse   `xml:"OnCourse,omitempty"`
	Results    *xmlResults    `xml:"Results,omitempty"`
	TimeOfDay  *xmlTimeOfDay  `xml:"TimeOfDay,omitempty"`
	RaceConfig *xmlRaceConfig `xml:"RaceConfig,omitempty"`
}

type xmlOnCourse struct {
	Competitors []xmlCompetitor `xml:"Competitor"`
}

type xmlCompetitor struct {
	Bib      string `xml:"Bib,attr"`
	Name     string `xml:"Name,attr,omitempty"`
	Club     string `xml:"Club,attr,omitempty"`
	Nat      string `xml:"Nat,attr,omitempty"`
	Race     string `xml:"Race,attr,omitempty"`
	Time     string `xml:"Time,attr,omitempty"`
	Total    string `xml:"Total,attr,omitempty"`
	Pen      string `xml:"Pen,attr,omitempty"`
	DtStart  string `xml:"dtStart,attr,omitempty"`
	DtFinish string `xml:"dtFinish,attr,omitempty"`
}

type xmlResults struct {
	Race   string   `xml:"Race,attr"`
	Name   string   `xml:"Name,attr"`
	Status string   `xml:"Status,attr"`
	Rows   []xmlRow `xml:"Row"`
}

type xmlRow struct {
	Rank   string `xml:"Rank,attr"`
	Bib    string `xml:"Bib,attr"`
	Name   string `xml:"Name,attr"`
	Club   string `xml:"Club,attr"`
	Nat    string `xml:"Nat,attr"`
	Total  string `xml:"Total,attr"`
	Pen    string `xml:"Pen,attr"`
	Behind string `xml:"Behind,attr"`
}

type xmlTimeOfDay struct {
	Time string `xml:"Time,attr"`
}

type xmlRaceConfig struct {
	Race  string `xml:"Race,attr"`
	Name  string `xml:"Name,attr"`
	Gates string `xml:"Gates,attr"`
}

// xmlDocument converts a tick to its XML transport equivalent. Control
// and title messages have no XML counterpart and are skipped.
func (t Tick) xmlDocument() (xmlDoc, bool) {
	var doc xmlDoc
	switch p := t.Payload.(type) {
	case simOnCourse:
		oc := &xmlOnCourse{}
		for _, c := range p.List {
			oc.Competitors = append(oc.Competitors, toXMLCompetitor(c))
		}
		doc.OnCourse = oc
	case simCompetitor:
		// Partials have no XML counterpart; the transport is
		// snapshot-only and the periodic OnCourse documents carry the
		// same information.
		return doc, false
	case simResults:
		res := &xmlResults{Race: p.Race, Name: p.RaceName, Status: p.Status}
		for _, r := range p.List {
			res.Rows = append(res.Rows, xmlRow{
				Rank: fmt.Sprint(r.Rank), Bib: r.Bib, Name: r.Name,
				Club: r.Club, Nat: r.Nat, Total: r.Total,
				Pen: fmt.Sprint(r.Pen), Behind: r.Behind,
			})
		}
		doc.Results = res
	case simEventInfo:
		if p.DayTime == "" {
			return doc, false
		}
		doc.TimeOfDay = &xmlTimeOfDay{Time: p.DayTime}
	case simRaceConfig:
		doc.RaceConfig = &xmlRaceConfig{
			Race: p.Race, Name: p.RaceName, Gates: fmt.Sprint(p.Gates),
		}
	default:
		return doc, false
	}
	return doc, true
}

func toXMLCompetitor(c simCompetitor) xmlCompetitor {
	x := xmlCompetitor{
		Bib: c.Bib, Name: c.Name, Club: c.Club, Nat: c.Nat,
		Race: c.Race, Time: c.Time, Total: c.Total,
	}
	if c.Pen > 0 {
		x.Pen = fmt.Sprint(c.Pen)
	}
	if c.DtStart != nil {
		x.DtStart = fmt.Sprint(*c.DtStart)
	}
	if c.DtFinish != nil {
		x.DtFinish = fmt.Sprint(*c.DtFinish)
	}
	return x
}
