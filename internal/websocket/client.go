package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"virtualrag-be/internal/dto"
	"virtualrag-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBuffer  = 256
	inboxBuffer = 16
)

// Client is a middleman between the websocket connection and its session.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	Session *Session

	// Buffered channel of outbound messages. Only the processor sends on it
	// and closes it.
	Send chan []byte

	// Raw inbound frames waiting for the processor.
	inbox chan []byte

	maxMessageSize int64
	logger         logger.ILogger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Emit queues one frame. It blocks while the send buffer is full, so a slow
// client slows its own generation instead of losing frames.
func (c *Client) Emit(ctx context.Context, msg dto.OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case c.Send <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closeAfter shuts the connection down once delay has elapsed.
func (c *Client) closeAfter(delay time.Duration) {
	if delay <= 0 {
		c.close()
		return
	}
	time.AfterFunc(delay, c.close)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.Session.MarkClosed()
		c.cancel()
	})
}

// readPump pumps frames from the websocket connection to the inbox.
func (c *Client) readPump() {
	defer func() {
		close(c.inbox)
		c.close()
	}()
	c.Conn.SetReadLimit(c.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.ctx.Err() == nil {
				c.logger.Warn("Client", "Connection lost", map[string]interface{}{
					"session_id": c.Session.Id,
					"error":      err.Error(),
				})
			}
			return
		}

		select {
		case c.inbox <- message:
		case <-c.ctx.Done():
			return
		}
	}
}

// processPump runs the session over inbound frames, one at a time.
func (c *Client) processPump() {
	defer close(c.Send)

	for {
		select {
		case <-c.ctx.Done():
			return
		case message, ok := <-c.inbox:
			if !ok {
				return
			}
			if err := c.handle(message); err != nil {
				c.logger.Debug("Client", "Session stopped", map[string]interface{}{
					"session_id": c.Session.Id,
					"error":      err.Error(),
				})
				c.close()
				return
			}
		}
	}
}

// handle runs one frame. A panic ends only this session.
func (c *Client) handle(message []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Client", "Session panicked", map[string]interface{}{
				"session_id": c.Session.Id,
				"panic":      fmt.Sprint(r),
				"stack":      string(debug.Stack()),
			})
			err = fmt.Errorf("session panic: %v", r)
		}
	}()
	return c.Session.Handle(c.ctx, message)
}

// writePump pumps messages from Send to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The processor finished; say goodbye properly.
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			// One JSON object per frame; frames are never coalesced.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				c.drain()
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				c.drain()
				return
			}
		}
	}
}

// drain discards queued frames until the processor closes Send.
func (c *Client) drain() {
	for range c.Send {
	}
}
