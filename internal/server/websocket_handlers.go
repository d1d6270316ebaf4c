package server

import (
	"errors"

	"yatube/internal/middleware"
	"yatube/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// NotificationsHandler streams the signed-in user's events and broadcasts over a websocket.
func (s *Server) NotificationsHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals(middleware.LocalUserID).(uint)
		if !ok || uid == 0 || s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"notifications unavailable"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("notification socket rejected", "user_id", uid, "error", err)
			msg := `{"error":"internal error"}`
			if errors.Is(err, notifications.ErrConnectionLimit) {
				msg = `{"error":"connection limit reached"}`
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
			_ = conn.Close()
			return
		}
		client.Serve()
	})
}
