package websocket

import (
	"context"

	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the socket with the hub and serves it until it closes.
func ServeWs(ctx context.Context, hub *Hub, turns TurnStreamer, c *websocket.Conn, sessionID string) {
	client := &Client{
		Hub:       hub,
		Conn:      c,
		SessionID: sessionID,
		Send:      make(chan []byte, 256),
		turns:     turns,
		done:      make(chan struct{}),
	}
	select {
	case client.Hub.register <- client:
	case <-ctx.Done():
		c.Close()
		return
	}

	go client.writePump()
	client.readPump(ctx)
}
