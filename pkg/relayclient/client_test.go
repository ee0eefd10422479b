package relayclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func relay(t *testing.T, serve func(n int, conn *websocket.Conn, token string)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var count atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		serve(int(count.Add(1)), conn, r.URL.Query().Get("token"))
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

func TestRun_AuthRetriesAreBounded(t *testing.T) {
	srv, count := relay(t, func(_ int, conn *websocket.Conn, _ string) {
		closeWith(conn, CloseUnauthorized, "Unauthorized")
	})

	var mu sync.Mutex
	var refreshes []bool
	client := New(Config{
		URL:     wsURL(srv),
		Backoff: 10 * time.Millisecond,
		Token: func(_ context.Context, refresh bool) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			refreshes = append(refreshes, refresh)
			return "stale", nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.Run(ctx, nil)

	assert.ErrorIs(t, err, ErrReconnectExhausted)
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, int32(1+DefaultMaxAuthRetries), count.Load())
	assert.Equal(t, []bool{false, true, true, true}, refreshes)
}

func TestRun_RefreshedTokenConnects(t *testing.T) {
	srv, _ := relay(t, func(_ int, conn *websocket.Conn, token string) {
		if token != "fresh" {
			closeWith(conn, CloseUnauthorized, "Unauthorized")
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":true}`))
		closeWith(conn, websocket.CloseNormalClosure, "")
	})

	client := New(Config{
		URL:     wsURL(srv) + "/ws/agent",
		Backoff: 10 * time.Millisecond,
		Token: func(_ context.Context, refresh bool) (string, error) {
			if refresh {
				return "fresh", nil
			}
			return "stale", nil
		},
	})

	var got []string
	err := client.Run(context.Background(), func(messageType int, data []byte) {
		assert.Equal(t, websocket.TextMessage, messageType)
		got = append(got, string(data))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"hello":true}`}, got)
	assert.False(t, client.Connected())
}

func TestRun_TransportErrorReconnects(t *testing.T) {
	srv, count := relay(t, func(n int, conn *websocket.Conn, _ string) {
		if n == 1 {
			// drop without a close frame
			conn.UnderlyingConn().Close()
			return
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
		closeWith(conn, websocket.CloseNormalClosure, "")
	})

	client := New(Config{
		URL:     wsURL(srv),
		Backoff: 10 * time.Millisecond,
		Token:   func(context.Context, bool) (string, error) { return "t", nil },
	})

	var frames int
	err := client.Run(context.Background(), func(int, []byte) { frames++ })
	require.NoError(t, err)
	assert.Equal(t, int32(2), count.Load())
	assert.Equal(t, 1, frames)
}

func TestRun_StopsOnCancel(t *testing.T) {
	client := New(Config{
		URL:     "ws://127.0.0.1:1/unreachable",
		Backoff: time.Hour,
		Token:   func(context.Context, bool) (string, error) { return "t", nil },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := client.Run(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSend_NotConnected(t *testing.T) {
	client := New(Config{URL: "ws://localhost", Token: func(context.Context, bool) (string, error) { return "", nil }})
	assert.ErrorIs(t, client.SendJSON(map[string]string{"message": "hi"}), ErrNotConnected)
	assert.ErrorIs(t, client.SendBinary([]byte{1}), ErrNotConnected)
}
