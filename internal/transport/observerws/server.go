// Package observerws streams the engine's debug/spectator state — per-agent
// above-head state text and per-entity debug-overlay records (§4.12) — to
// an observer client over a websocket. This is debug/spectator tooling,
// distinct from the out-of-scope player GUI (§1 Non-goals): nothing here
// can submit a job or mutate engine state, it only reads.
//
// A session is a loopback-only bootstrap/upgrade guard followed by a
// SUBSCRIBE handshake before any data frame, then a ticker-driven write
// loop. hostworld.World's render recorder is already safe to poll
// concurrently (internal/hostworld/world.go), so each session just ticks
// its own ticker and reads a fresh snapshot rather than being joined into
// a running world loop.
package observerws

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"swarmforge.ai/internal/hostworld"
)

// Version is this package's wire protocol version, sent in Bootstrap and
// checked against each SUBSCRIBE message.
const Version = 1

// Frame is one pushed update: the current tick, every agent's state text,
// and every live debug-overlay record.
type Frame struct {
	Type  string                  `json:"type"`
	Tick  uint64                  `json:"tick"`
	Agents []AgentStateFrame      `json:"agents,omitempty"`
	Renders []hostworld.RenderRecord `json:"renders,omitempty"`
}

// AgentStateFrame is one agent's above-head state text (§4.12).
type AgentStateFrame struct {
	AgentID  uint64 `json:"agent_id"`
	Text     string `json:"text"`
	Severity int    `json:"severity"`
}

// BootstrapResponse is returned by the one-shot HTTP bootstrap endpoint a
// client fetches before opening the websocket.
type BootstrapResponse struct {
	ProtocolVersion int    `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
}

// SubscribeMsg is the handshake a client must send as its first websocket
// message before any frame is pushed.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion int    `json:"protocol_version"`
	// IntervalMs is how often the client wants frames pushed; clamped to
	// [50, 5000].
	IntervalMs int `json:"interval_ms"`
}

// AgentStateSource supplies the current above-head text for every live
// agent; cmd/swarmforged wires this to a small adapter over engine.Agent
// state (the engine package itself has no network dependency).
type AgentStateSource func() []AgentStateFrame

// Server is the observer websocket endpoint.
type Server struct {
	world  *hostworld.World
	agents AgentStateSource
	log    *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

// NewServer constructs a Server. agents may be nil if the caller has no
// per-agent state text to expose yet; frames are then render-only.
func NewServer(w *hostworld.World, agents AgentStateSource, logger *log.Logger) *Server {
	return &Server{
		world:  w,
		agents: agents,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// BootstrapHandler returns the one-shot HTTP bootstrap endpoint.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := BootstrapResponse{ProtocolVersion: Version, Tick: s.world.CurrentTick()}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// WSHandler returns the websocket upgrade handler.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		normalizeSubscribe(&sub)

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		if s.log != nil {
			s.log.Printf("observerws: session %s subscribed at %dms", sid, sub.IntervalMs)
		}

		ticker := time.NewTicker(time.Duration(sub.IntervalMs) * time.Millisecond)
		defer ticker.Stop()

		// Reader goroutine: discard anything further (no live resubscribe;
		// this stream has no per-session radius/limit to update), just
		// watch for the connection closing.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case <-ticker.C:
				frame := s.buildFrame()
				b, err := json.Marshal(frame)
				if err != nil {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}

func (s *Server) buildFrame() Frame {
	f := Frame{Type: "STATE", Tick: s.world.CurrentTick(), Renders: s.world.Renders()}
	if s.agents != nil {
		f.Agents = s.agents()
	}
	return f
}

func normalizeSubscribe(sub *SubscribeMsg) {
	if sub.IntervalMs <= 0 {
		sub.IntervalMs = 200
	}
	if sub.IntervalMs < 50 {
		sub.IntervalMs = 50
	}
	if sub.IntervalMs > 5000 {
		sub.IntervalMs = 5000
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
