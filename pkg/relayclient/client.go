// Package relayclient keeps a websocket connection to a relay endpoint open:
// transport failures reconnect after a fixed delay forever, auth failures
// refresh the token a bounded number of times.
package relayclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

var (
	ErrTransport          = errors.New("relay transport error")
	ErrAuthExpired        = errors.New("relay auth expired")
	ErrReconnectExhausted = errors.New("relay reconnect exhausted")
	ErrNotConnected       = errors.New("relay not connected")
)

// Close codes used by the relay endpoints.
const (
	CloseUnauthorized = 4401
	CloseForbidden    = 4403
)

const (
	DefaultBackoff        = 5 * time.Second
	DefaultMaxAuthRetries = 3
)

// TokenFunc returns the token to connect with. refresh is set after the
// relay rejected the previous one.
type TokenFunc func(ctx context.Context, refresh bool) (string, error)

// Handler receives every frame read from the relay.
type Handler func(messageType int, data []byte)

type Config struct {
	URL            string
	Token          TokenFunc
	Backoff        time.Duration
	MaxAuthRetries int
	Dialer         *websocket.Dialer
	Logger         *zap.Logger
}

type Client struct {
	cfg Config

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(cfg Config) *Client {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxAuthRetries <= 0 {
		cfg.MaxAuthRetries = DefaultMaxAuthRetries
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{cfg: cfg}
}

// Run connects and reads until ctx is done, the relay closes normally, or
// the auth retries are used up. A connection only counts as established once
// the relay sent a first frame, which resets the auth retry counter.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	log := c.cfg.Logger
	authFailures := 0
	refresh := false

	for {
		established, err := c.connectOnce(ctx, refresh, handle)
		if established {
			authFailures = 0
		}
		refresh = false

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err == nil:
			return nil
		case errors.Is(err, ErrAuthExpired):
			authFailures++
			if authFailures > c.cfg.MaxAuthRetries {
				log.Error("giving up after auth failures", zap.Int("attempts", authFailures-1))
				return fmt.Errorf("%w: %w", ErrReconnectExhausted, err)
			}
			log.Warn("token rejected, refreshing", zap.Int("attempt", authFailures), zap.Int("max", c.cfg.MaxAuthRetries))
			refresh = true
			continue
		}

		log.Warn("relay connection lost, reconnecting", zap.Error(err), zap.Duration("backoff", c.cfg.Backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.Backoff):
		}
	}
}

func (c *Client) connectOnce(ctx context.Context, refresh bool, handle Handler) (established bool, err error) {
	token, err := c.cfg.Token(ctx, refresh)
	if err != nil {
		return false, fmt.Errorf("%w: token: %w", ErrAuthExpired, err)
	}
	target, err := withToken(c.cfg.URL, token)
	if err != nil {
		return false, err
	}

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, fmt.Errorf("%w: %s", ErrAuthExpired, resp.Status)
		}
		return false, fmt.Errorf("%w: dial: %w", ErrTransport, err)
	}
	c.setConn(conn)
	defer func() {
		c.setConn(nil)
		conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr) && closeErr.Code == CloseUnauthorized:
				return established, fmt.Errorf("%w: %s", ErrAuthExpired, closeErr.Text)
			case websocket.IsCloseError(err, websocket.CloseNormalClosure):
				return established, nil
			}
			return established, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		established = true
		if handle != nil {
			handle(messageType, data)
		}
	}
}

func withToken(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SendJSON writes v as a text frame. Frames sent while disconnected are
// dropped with ErrNotConnected.
func (c *Client) SendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// SendBinary writes data as a binary frame.
func (c *Client) SendBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}
