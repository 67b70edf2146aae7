package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"berth/internal/agents"
	"berth/pkg/logging"
)

// Agent message types.
const (
	AgentHeartbeat = "heartbeat"
	AgentShutdown  = "shutdown"
)

// AgentMessage is a message sent by an agent.
type AgentMessage struct {
	Type string `json:"type"`
}

// handleAgent runs one agent session. The sid is bound for the lifetime of
// the connection; losing the connection without a shutdown message is an
// implicit offline.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		writeError(w, http.StatusBadRequest, errors.New("sid query parameter is required"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Server", "Agent upgrade for %s failed: %v", sid, err)
		return
	}

	s.conns.Add(1)
	defer s.conns.Done()
	defer conn.Close()

	session := s.agents.Attach(sid)
	logging.Debug("Server", "Agent session %s bound to %s from %s", session.ID(), sid, r.RemoteAddr)

	conn.SetReadLimit(maxAgentMessage)
	deadline := 2 * s.opts.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		session.Heartbeat()
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	stop := make(chan struct{})
	defer close(stop)
	go s.ping(conn, stop)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			session.Close(closeCause(err, s.done))
			return
		}

		var msg AgentMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Debug("Server", "Ignoring malformed agent message from %s: %v", sid, err)
			continue
		}

		switch msg.Type {
		case AgentHeartbeat:
			session.Heartbeat()
			_ = conn.SetReadDeadline(time.Now().Add(deadline))
		case AgentShutdown:
			session.Shutdown()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(writeWait))
			return
		default:
			logging.Debug("Server", "Ignoring agent message %q from %s", msg.Type, sid)
		}
	}
}

// ping keeps the connection alive until stop is closed. Shutting down the
// server closes the connection, which ends the reader.
func (s *Server) ping(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func closeCause(err error, done <-chan struct{}) string {
	select {
	case <-done:
		return "control plane shutdown"
	default:
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return fmt.Sprintf("connection closed (%d)", closeErr.Code)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "heartbeat timeout"
	}
	return agents.CauseSessionLost + ": " + err.Error()
}
