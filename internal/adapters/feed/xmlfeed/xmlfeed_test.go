package xmlfeed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gateclock/scoreboard/internal/adapters/feed/xmlfeed"
	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// wsServer is a one-connection WebSocket fixture the tests push XML
// documents through.
type wsServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket connection accepted")
		return nil
	}
}

func recvEnvelope(ch <-chan model.Envelope) (model.Envelope, bool) {
	select {
	case env := <-ch:
		return env, true
	case <-time.After(2 * time.Second):
		return model.Envelope{}, false
	}
}

func recvError(ch <-chan *provider.Error) (*provider.Error, bool) {
	select {
	case err := <-ch:
		return err, true
	case <-time.After(2 * time.Second):
		return nil, false
	}
}

func TestXMLFeedDelivery(t *testing.T) {
	Convey("Given a running WebSocket feed", t, func() {
		srv := newWSServer(t)
		envs := make(chan model.Envelope, 16)
		errs := make(chan *provider.Error, 16)

		p := xmlfeed.New(srv.url(), xmlfeed.WithAutoReconnect(false))
		p.OnEnvelope(func(env model.Envelope) { envs <- env })
		p.OnError(func(e *provider.Error) { errs <- e })
		defer p.Disconnect()

		Convey("When a document with several children is pushed", func() {
			So(p.Connect(context.Background()), ShouldBeNil)
			So(p.Connected(), ShouldBeTrue)
			conn := srv.accept(t)

			doc := `<Scoreboard>
				<OnCourse><Competitor Bib="4" Race="R1" dtStart="1000"/></OnCourse>
				<TimeOfDay Time="10:00:00"/>
			</Scoreboard>`
			So(conn.WriteMessage(websocket.TextMessage, []byte(doc)), ShouldBeNil)

			Convey("Then it fans out into envelopes", func() {
				first, ok := recvEnvelope(envs)
				So(ok, ShouldBeTrue)
				So(first.Kind, ShouldEqual, model.KindOnCourseList)
				So(first.OnCourse.Snapshot, ShouldBeTrue)

				second, ok := recvEnvelope(envs)
				So(ok, ShouldBeTrue)
				So(second.Kind, ShouldEqual, model.KindEventInfo)
				So(second.Seq, ShouldEqual, first.Seq+1)
			})
		})

		Convey("When a malformed document precedes a valid one", func() {
			So(p.Connect(context.Background()), ShouldBeNil)
			conn := srv.accept(t)

			So(conn.WriteMessage(websocket.TextMessage, []byte("<broken")), ShouldBeNil)
			So(conn.WriteMessage(websocket.TextMessage,
				[]byte(`<S><TimeOfDay Time="10:00:01"/></S>`)), ShouldBeNil)

			Convey("Then the failure is reported and the stream continues", func() {
				perr, ok := recvError(errs)
				So(ok, ShouldBeTrue)
				So(perr.Code, ShouldEqual, provider.CodeParse)

				env, ok := recvEnvelope(envs)
				So(ok, ShouldBeTrue)
				So(env.EventInfo.DayTime, ShouldEqual, "10:00:01")
			})
		})

		Convey("When the server closes the connection", func() {
			So(p.Connect(context.Background()), ShouldBeNil)
			conn := srv.accept(t)
			So(conn.Close(), ShouldBeNil)

			Convey("Then the loss is reported", func() {
				perr, ok := recvError(errs)
				So(ok, ShouldBeTrue)
				So(perr.Code, ShouldEqual, provider.CodeConnection)

				deadline := time.Now().Add(2 * time.Second)
				for p.Status() != provider.StatusDisconnected && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
				}
				So(p.Status(), ShouldEqual, provider.StatusDisconnected)
			})
		})
	})
}

func TestXMLFeedDialFailure(t *testing.T) {
	Convey("Given nothing listening on the target", t, func() {
		errs := make(chan *provider.Error, 16)
		p := xmlfeed.New("ws://127.0.0.1:1/feed",
			xmlfeed.WithAutoReconnect(false),
			xmlfeed.WithDialTimeout(500*time.Millisecond),
		)
		p.OnError(func(e *provider.Error) { errs <- e })

		Convey("When the provider connects", func() {
			err := p.Connect(context.Background())

			Convey("Then the dial failure is returned and published", func() {
				So(err, ShouldNotBeNil)
				perr, ok := recvError(errs)
				So(ok, ShouldBeTrue)
				So(perr.Code, ShouldEqual, provider.CodeConnection)
			})
		})
	})
}
