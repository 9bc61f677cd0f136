package notify_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/model"
	"github.com/openvault/fund-engine/internal/notify"
)

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := notify.NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()

	first := dialWS(t, server)
	defer first.Close()
	second := dialWS(t, server)

	// Registration goes through the hub loop; give it a beat.
	time.Sleep(50 * time.Millisecond)

	event := &model.Event{
		ID:        "evt-1",
		Sequence:  1,
		Type:      model.EventWithdrawalRequested,
		Principal: "alice",
		Amount:    decimal.NewFromInt(500),
		Shares:    decimal.NewFromInt(50),
		Timestamp: time.Now().UTC(),
	}
	hub.Broadcast(event)

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.Contains(string(msg), model.EventWithdrawalRequested) {
			t.Errorf("unexpected broadcast payload: %s", msg)
		}
	}

	// A departed client must not break delivery to the rest.
	second.Close()
	time.Sleep(50 * time.Millisecond)
	hub.Broadcast(event)

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err != nil {
		t.Fatalf("surviving client read: %v", err)
	}
}
