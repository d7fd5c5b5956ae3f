package channel

import (
	"errors"
	"sync"
	"time"

	"shellpilot/internal/events"
	"shellpilot/internal/execution"
	"shellpilot/internal/logger"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// conn is one client connection. The reader loop runs on the HTTP handler
// goroutine; a single writer goroutine drains send, so frames leave in the
// order Emit was called.
type conn struct {
	id      string
	subject string
	ws      *websocket.Conn
	send    chan events.Event
	done    chan struct{}
	limiter *rate.Limiter
	handler *Handler

	writeWait time.Duration
	closeOnce sync.Once
}

// Emit queues an event for the client. It waits while the queue is full and
// returns immediately once the connection is gone.
func (c *conn) Emit(e events.Event) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- e:
	case <-c.done:
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) closeWithMessage(code int, text string) {
	deadline := time.Now().Add(c.writeWait)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
	c.close()
}

// readLoop expects a pong (or any frame) within pongWait, otherwise the
// connection is considered dead.
func (c *conn) readLoop(pongWait time.Duration) {
	defer c.close()

	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, frame, err := c.ws.ReadMessage()

		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Channel connection %s read failed: %v", c.id, err)
			}
			return
		}

		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.TextMessage {
			c.Emit(events.Error{Message: "only text frames are accepted"})
			continue
		}

		if !c.limiter.Allow() {
			c.Emit(events.Error{Message: ErrRateLimited.Error()})
			continue
		}

		c.dispatch(frame)
	}
}

func (c *conn) dispatch(frame []byte) {
	event, err := events.DecodeInbound(frame)

	if err != nil {
		logger.Warn("Channel connection %s sent a malformed event: %v", c.id, err)
		c.Emit(events.Error{Message: err.Error()})
		return
	}

	orchestrator := c.handler.orchestrator

	switch ev := event.(type) {
	case events.Execute:
		if _, err := orchestrator.Execute(c.id, c, ev); err != nil {
			c.reject("", err)
		}
	case events.Confirm:
		if err := orchestrator.Confirm(c.id, ev.ExecutionID); err != nil {
			c.reject(ev.ExecutionID, err)
		}
	case events.Cancel:
		if err := orchestrator.Cancel(c.id, ev.ExecutionID); err != nil {
			c.reject(ev.ExecutionID, err)
		}
	}
}

func (c *conn) reject(executionID string, err error) {
	var perr *execution.ProtocolError

	if errors.As(err, &perr) {
		logger.Debug("Channel connection %s request rejected: %v", c.id, err)
	} else {
		logger.Error("Channel connection %s request failed: %v", c.id, err)
	}

	c.Emit(events.Error{ExecutionID: executionID, Message: err.Error()})
}

func (c *conn) writeLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case e := <-c.send:
			frame, err := events.Encode(e)

			if err != nil {
				logger.Error("Channel connection %s failed to encode %s event: %v", c.id, e.Kind(), err)
				continue
			}

			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))

			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Warn("Channel connection %s: %v: %v", c.id, ErrFailedToWrite, err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))

			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
