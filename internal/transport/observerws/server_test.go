package observerws

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"swarmforge.ai/internal/engine"
	"swarmforge.ai/internal/hostworld"
)

func TestServer_BootstrapAndSubscribe(t *testing.T) {
	w := hostworld.New(engine.SurfaceID("default"))
	logger := log.New(nopWriter{}, "", 0)

	agents := func() []AgentStateFrame {
		return []AgentStateFrame{{AgentID: 1, Text: "Idle", Severity: 0}}
	}

	srv := NewServer(w, agents, logger)

	httpSrv := httptest.NewServer(srv.WSHandler())
	defer httpSrv.Close()
	bootstrapSrv := httptest.NewServer(srv.BootstrapHandler())
	defer bootstrapSrv.Close()

	resp, err := http.Get(bootstrapSrv.URL)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	var boot BootstrapResponse
	err = json.NewDecoder(resp.Body).Decode(&boot)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode bootstrap: %v", err)
	}
	if boot.ProtocolVersion != Version {
		t.Fatalf("bootstrap protocol version: got %d want %d", boot.ProtocolVersion, Version)
	}

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: Version, IntervalMs: 50}
	subBody, _ := json.Marshal(sub)
	if err := conn.WriteMessage(websocket.TextMessage, subBody); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != "STATE" {
		t.Fatalf("unexpected frame type: %q", frame.Type)
	}
	if len(frame.Agents) != 1 || frame.Agents[0].Text != "Idle" {
		t.Fatalf("unexpected agents in frame: %+v", frame.Agents)
	}
}

func TestServer_WSHandler_RejectsWithoutSubscribe(t *testing.T) {
	w := hostworld.New(engine.SurfaceID("default"))
	logger := log.New(nopWriter{}, "", 0)
	srv := NewServer(w, nil, logger)

	httpSrv := httptest.NewServer(srv.WSHandler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"NOT_SUBSCRIBE"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected connection to be closed for a non-SUBSCRIBE first message")
	}
}

func TestNormalizeSubscribe_ClampsInterval(t *testing.T) {
	low := SubscribeMsg{IntervalMs: 1}
	normalizeSubscribe(&low)
	if low.IntervalMs != 50 {
		t.Fatalf("expected clamp to 50, got %d", low.IntervalMs)
	}

	high := SubscribeMsg{IntervalMs: 100000}
	normalizeSubscribe(&high)
	if high.IntervalMs != 5000 {
		t.Fatalf("expected clamp to 5000, got %d", high.IntervalMs)
	}

	zero := SubscribeMsg{IntervalMs: 0}
	normalizeSubscribe(&zero)
	if zero.IntervalMs != 200 {
		t.Fatalf("expected default 200, got %d", zero.IntervalMs)
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
