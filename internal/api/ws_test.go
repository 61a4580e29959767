package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reelcut/reelcut-agent/internal/session"
)

func TestEventsHandler_StreamsBusEvents(t *testing.T) {
	cfg, backend := testConfig(t)
	seedVideo(t, cfg, backend, "a")
	router := NewRouter(cfg)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	header := http.Header{"Authorization": []string{"Bearer " + testToken}}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	addTestClip(t, router, "a")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event session.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if event.Type != session.EventTimelineChanged && event.Type != session.EventCompositionReady {
		t.Errorf("event type = %s, want a timeline or composition event", event.Type)
	}
}

func TestEventsHandler_RequiresAuth(t *testing.T) {
	cfg, _ := testConfig(t)
	router := NewRouter(cfg)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("unauthenticated websocket dial should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("handshake response = %+v, want 401", resp)
	}
}
