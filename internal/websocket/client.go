package websocket

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/service"
	"rag-chat-be/pkg/rag/pipeline"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// TurnStreamer runs one streamed turn for a socket.
type TurnStreamer interface {
	StreamMessage(ctx context.Context, sessionID, message string) iter.Seq2[pipeline.StreamChunk, error]
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	SessionID string

	// Buffered channel of outbound messages.
	Send chan []byte

	turns TurnStreamer

	// closed when writePump exits
	done chan struct{}
}

// readPump reads chat messages from the socket and runs one turn per message.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-ctx.Done():
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"session_id": c.SessionID,
					"error":      err.Error(),
				})
			}
			return
		}

		var msg dto.SocketMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(dto.StreamFrame{Type: dto.FrameError, Error: "Invalid message"})
			continue
		}
		if err := serverutils.ValidateRequest(msg); err != nil {
			_, text := serverutils.StatusFor(err)
			c.enqueue(dto.StreamFrame{Type: dto.FrameError, Error: text})
			continue
		}

		if !c.streamTurn(ctx, msg.Message) {
			return
		}
		// Pongs are not processed while a turn streams.
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// streamTurn reports false once the socket can no longer be written to.
func (c *Client) streamTurn(ctx context.Context, message string) bool {
	for frame := range service.StreamFrames(c.turns.StreamMessage(ctx, c.SessionID, message)) {
		if !c.enqueue(frame) {
			return false
		}
	}
	return true
}

func (c *Client) enqueue(frame dto.StreamFrame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	select {
	case c.Send <- data:
		return true
	case <-c.done:
		return false
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
