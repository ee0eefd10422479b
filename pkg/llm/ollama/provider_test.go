package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/pkg/llm"
)

func TestChatStream_ReadsNDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"b"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"ignored"},"done":false}`)
	}))
	defer srv.Close()

	var deltas []string
	err := NewOllamaProvider(srv.URL, "llama").ChatStream(context.Background(), []llm.Message{{Role: "model", Content: "x"}}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, deltas)
}

func TestChatStream_StopsOnCallbackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"a"}}`)
		fmt.Fprintln(w, `{"message":{"content":"b"}}`)
	}))
	defer srv.Close()

	stop := errors.New("stop")
	calls := 0
	err := NewOllamaProvider(srv.URL, "llama").ChatStream(context.Background(), nil, func(string) error {
		calls++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
