package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quailyquaily/taskwarden/approval"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Approval UIs run on whatever origin the operator serves them from.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleApprovalsWS streams approval lifecycle events to the client as JSON
// frames. The subscription uses a bounded mailbox, so a client that stops
// reading loses events instead of stalling the registry.
func (s *Server) handleApprovalsWS(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream is not available")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws_upgrade_failed", "error", err.Error())
		return
	}

	sub := s.notifier.Subscribe()
	s.log.Info("ws_client_connected", "remote", r.RemoteAddr)

	go s.wsWritePump(conn, sub)
	s.wsReadPump(conn)

	sub.Close()
	_ = conn.Close()
	s.log.Info("ws_client_disconnected", "remote", r.RemoteAddr)
}

func (s *Server) wsWritePump(conn *websocket.Conn, sub *approval.Subscriber) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// wsReadPump drains incoming frames so pong handling works and returns when
// the peer goes away.
func (s *Server) wsReadPump(conn *websocket.Conn) {
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}
