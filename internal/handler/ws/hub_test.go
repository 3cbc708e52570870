package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CourtArb/internal/domain/models"
	"CourtArb/internal/repository"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	. "github.com/smartystreets/goconvey/convey"
)

func startHub(t *testing.T, opts ...Option) (*Hub, string, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(opts...)
	go hub.Run(ctx)

	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return hub, url, func() {
		cancel()
		srv.Close()
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitClients(h *Hub, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func readMessage(conn *websocket.Conn) (Message, error) {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	_, b, err := conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	err = json.Unmarshal(b, &msg)
	return msg, err
}

func TestHub_Broadcast(t *testing.T) {
	Convey("Given a running hub with one subscriber", t, func() {
		hub, url, stop := startHub(t)
		defer stop()
		conn := dial(t, url)
		defer conn.Close()
		So(waitClients(hub, 1), ShouldBeTrue)

		Convey("When a snapshot is published", func() {
			events := []models.UnifiedEvent{{EventID: "401", HomeTeam: "BOS", AwayTeam: "DET"}}
			So(hub.OnSnapshot(context.Background(), events), ShouldBeNil)
			msg, err := readMessage(conn)

			Convey("Then the subscriber receives it", func() {
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, MessageSnapshot)
				So(len(msg.Events), ShouldEqual, 1)
				So(msg.Events[0].EventID, ShouldEqual, "401")
			})
		})

		Convey("When the subscriber hangs up", func() {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()

			Convey("Then it is unregistered", func() {
				So(waitClients(hub, 0), ShouldBeTrue)
			})
		})
	})
}

func TestHub_GreetsWithCurrentSnapshot(t *testing.T) {
	Convey("Given a hub backed by the event store", t, func() {
		store := repository.NewEventStore()
		So(store.Upsert("401", repository.EventPatch{
			Matchup: &repository.Matchup{HomeTeam: "BOS", AwayTeam: "DET", StartTime: time.Now()},
		}), ShouldBeNil)

		hub, url, stop := startHub(t, WithSnapshotSource(store))
		defer stop()

		Convey("When a client connects it first gets the stored events", func() {
			conn := dial(t, url)
			defer conn.Close()
			msg, err := readMessage(conn)
			So(err, ShouldBeNil)
			So(len(msg.Events), ShouldEqual, 1)
			So(waitClients(hub, 1), ShouldBeTrue)
		})
	})
}

func TestHub_OnSnapshotWithoutRun(t *testing.T) {
	hub := NewHub()
	for i := 0; i < broadcastBuffer; i++ {
		if err := hub.OnSnapshot(context.Background(), nil); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}
	if err := hub.OnSnapshot(context.Background(), nil); err == nil {
		t.Fatal("expected full queue error")
	}
}
