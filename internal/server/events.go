package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"berth/internal/notify"
	"berth/pkg/logging"
)

// handleEvents streams push messages to a management client. The channel
// is server-to-client only; anything the client sends is discarded.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Server", "Client upgrade failed: %v", err)
		return
	}

	s.conns.Add(1)
	defer s.conns.Done()
	defer conn.Close()

	session := notify.NewQueueSession(s.opts.SessionBuffer)
	s.gateway.Connect(session)
	defer s.gateway.Disconnect(session.ID())
	defer session.Close()

	logging.Debug("Server", "Client session %s connected from %s", session.ID(), r.RemoteAddr)

	go discardIncoming(conn, session, 2*s.opts.PingInterval)

	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-session.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				logging.Debug("Server", "Client session %s write failed: %v", session.ID(), err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-session.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
				time.Now().Add(writeWait))
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(writeWait))
			return
		}
	}
}

// discardIncoming reads until the client goes away so control frames are
// processed, then closes the session.
func discardIncoming(conn *websocket.Conn, session *notify.QueueSession, deadline time.Duration) {
	defer session.Close()

	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
