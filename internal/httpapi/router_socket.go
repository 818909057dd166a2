package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dwizi/intent-arbiter/internal/session"
)

const (
	socketReadLimit    = 16 * 1024
	socketIdleTimeout  = 10 * time.Minute
	socketWriteTimeout = 10 * time.Second
)

type socketError struct {
	Error string `json:"error"`
}

func (r *router) upgrader() websocket.Upgrader {
	allowed := r.deps.Config.WebsocketOrigins()
	upgrader := websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	if len(allowed) > 0 {
		upgrader.CheckOrigin = func(req *http.Request) bool {
			origin := strings.TrimSpace(req.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, candidate := range allowed {
				if strings.EqualFold(candidate, origin) || strings.EqualFold(candidate, parsed.Host) {
					return true
				}
			}
			return false
		}
	}
	return upgrader
}

// handleChatSocket runs turns over a websocket: each text frame is a
// session.Request and each reply frame a session.Reply. The first reply
// fixes the session id for the rest of the connection.
func (r *router) handleChatSocket(w http.ResponseWriter, req *http.Request) {
	upgrader := r.upgrader()
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.deps.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(socketReadLimit)

	sessionID := strings.TrimSpace(req.URL.Query().Get("session_id"))
	for {
		_ = conn.SetReadDeadline(time.Now().Add(socketIdleTimeout))
		var payload session.Request
		if err := conn.ReadJSON(&payload); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				r.deps.Logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		if strings.TrimSpace(payload.SessionID) == "" {
			payload.SessionID = sessionID
		}
		if strings.TrimSpace(payload.Input) == "" {
			if !r.writeSocket(conn, socketError{Error: "input is required"}) {
				return
			}
			continue
		}
		reply, err := r.deps.Sessions.Handle(req.Context(), payload)
		if err != nil {
			r.deps.Logger.Error("chat turn failed", "session_id", payload.SessionID, "error", err)
			if !r.writeSocket(conn, socketError{Error: err.Error()}) {
				return
			}
			continue
		}
		sessionID = reply.SessionID
		if !r.writeSocket(conn, reply) {
			return
		}
	}
}

func (r *router) writeSocket(conn *websocket.Conn, payload any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	if err := conn.WriteJSON(payload); err != nil {
		r.deps.Logger.Warn("websocket write failed", "error", err)
		return false
	}
	return true
}
