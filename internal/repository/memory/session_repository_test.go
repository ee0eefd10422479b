package memory

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/internal/session"
)

func opener(t *testing.T, calls *atomic.Int32) Opener {
	return func(id string) (*session.Session, error) {
		calls.Add(1)
		return session.New(id, session.DefaultOptions())
	}
}

func TestGetOrOpen_OpensOnce(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]*session.Session, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := repo.GetOrOpen("doc-1", opener(t, &calls))
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, s := range results {
		assert.Same(t, results[0], s)
	}
	assert.Equal(t, 1, repo.Count())
}

func TestGetOrOpen_Error(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	boom := errors.New("boom")

	_, err := repo.GetOrOpen("doc-1", func(string) (*session.Session, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := repo.Get("doc-1")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	var calls atomic.Int32

	_, err := repo.GetOrOpen("doc-1", opener(t, &calls))
	require.NoError(t, err)
	repo.Delete("doc-1")

	_, ok := repo.Get("doc-1")
	assert.False(t, ok)
	_, err = repo.GetOrOpen("doc-1", opener(t, &calls))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
