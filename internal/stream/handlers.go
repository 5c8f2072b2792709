package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes mounts the notification stream. The auth middleware
// runs before the upgrade and leaves user_id in locals; on upgrade
// requests it reads the token from the ?token= query param, since
// browsers cannot set headers there.
func RegisterRoutes(r fiber.Router, hub *Hub, authMiddleware fiber.Handler) {
	r.Get("/ws", authMiddleware, websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"))
			return
		}

		client := hub.Register(userID)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		// closing Send lets the writer drain and exit
		hub.Unregister(client)
		<-done
	}))
}
