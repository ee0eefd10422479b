package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/internal/config"
	"redline-be/internal/pkg/serverutils"
	"redline-be/internal/session"
	"redline-be/pkg/lexical"
)

const followDoc = `{"root":{"type":"root","children":[{"type":"paragraph","children":[
	{"type":"text","text":"hello world","__key":"10"}
]}]}}`

func TestSyncURL(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Port: "3000"}}
	assert.Equal(t, "ws://localhost:3000/ws/documents/doc-1/sync", syncURL(cfg, "doc-1"))
}

func TestFollow_AppliesRelayedUpdates(t *testing.T) {
	secret := []byte("test-secret")

	peer, err := session.New("doc-1", session.DefaultOptions())
	require.NoError(t, err)
	defer peer.Close()
	state, err := lexical.Decode([]byte(followDoc))
	require.NoError(t, err)
	require.NoError(t, peer.Load(state))
	update, err := peer.Doc().EncodeState()
	require.NoError(t, err)

	tokens := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		tokens <- r.URL.Query().Get("token")
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"state"}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, update)
		// hold the socket until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	local, err := session.New("doc-1", session.DefaultOptions())
	require.NoError(t, err)
	defer local.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- follow(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), secret, "doc-1", local)
	}()

	select {
	case token := <-tokens:
		claims, err := serverutils.VerifySocketToken(secret, token, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "inspect_doc", claims.UserID)
	case <-time.After(5 * time.Second):
		t.Fatal("follow never connected")
	}

	require.Eventually(t, func() bool {
		return local.DocumentText() == peer.DocumentText()
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}
}
