package channel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"shellpilot/internal/events"
	"shellpilot/internal/logger"

	"github.com/gorilla/websocket"
)

const clientEventBuffer = 256

// Client is an explicit connection to the chat channel. Its lifetime is
// bounded by Dial and Close; nothing is shared between clients.
type Client struct {
	ws     *websocket.Conn
	events chan events.Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

type DialOption func(*websocket.Dialer)

// WithTLSConfig sets the TLS configuration used for wss:// URLs.
func WithTLSConfig(config *tls.Config) DialOption {
	return func(d *websocket.Dialer) {
		d.TLSClientConfig = config
	}
}

// Dial opens a channel connection presenting token as a bearer credential.
// A refused handshake returns ErrUnauthorized.
func Dial(ctx context.Context, url string, token string, opts ...DialOption) (*Client, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := *websocket.DefaultDialer

	for _, opt := range opts {
		opt(&dialer)
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)

	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, ErrUnauthorized
		}

		return nil, fmt.Errorf("%w: %v", ErrFailedToDial, err)
	}

	c := &Client{
		ws:     ws,
		events: make(chan events.Event, clientEventBuffer),
		done:   make(chan struct{}),
	}

	go c.readLoop()

	return c, nil
}

// Events delivers server events in arrival order. The channel is closed when
// the connection ends; Err then reports why.
func (c *Client) Events() <-chan events.Event {
	return c.events
}

func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	return c.err
}

func (c *Client) Execute(serverID, prompt string, dryRun bool) error {
	return c.send(events.Execute{ServerID: serverID, Prompt: prompt, DryRun: dryRun})
}

func (c *Client) Confirm(executionID string) error {
	return c.send(events.Confirm{ExecutionID: executionID})
}

func (c *Client) Cancel(executionID string) error {
	return c.send(events.Cancel{ExecutionID: executionID})
}

func (c *Client) send(e events.Event) error {
	frame, err := events.Encode(e)

	if err != nil {
		return err
	}

	return c.writeFrame(frame)
}

func (c *Client) writeFrame(frame []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(defaultWriteWait))

	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWrite, err)
	}

	return nil
}

// Close performs the websocket closing handshake and releases the
// connection. The server cancels executions owned by this connection.
func (c *Client) Close() error {
	var err error

	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(defaultWriteWait))
		c.writeMu.Unlock()

		close(c.done)
		err = c.ws.Close()
	})

	return err
}

func (c *Client) readLoop() {
	defer close(c.events)

	for {
		_, frame, err := c.ws.ReadMessage()

		if err != nil {
			select {
			case <-c.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					c.errMu.Lock()
					c.err = err
					c.errMu.Unlock()
				}
			}
			return
		}

		event, err := events.DecodeOutbound(frame)

		if err != nil {
			logger.Warn("Ignoring undecodable channel event: %v", err)
			continue
		}

		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}
