package memory

import (
	"sync"
	"time"

	"redline-be/internal/session"

	"github.com/patrickmn/go-cache"
)

// Opener builds the session for a document that is not open yet.
type Opener func(documentID string) (*session.Session, error)

// SessionRepository keeps open document sessions. Sessions that are not
// touched for the TTL are evicted and closed.
type SessionRepository struct {
	cache *cache.Cache
	ttl   time.Duration
	mu    sync.Mutex
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	c := cache.New(ttl, 10*time.Minute)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*session.Session); ok {
			s.Close()
		}
	})
	return &SessionRepository{
		cache: c,
		ttl:   ttl,
	}
}

func (r *SessionRepository) Save(s *session.Session) {
	r.cache.Set(s.ID, s, cache.DefaultExpiration)
}

// Get returns an open session and extends its lifetime.
func (r *SessionRepository) Get(documentID string) (*session.Session, bool) {
	x, found := r.cache.Get(documentID)
	if !found {
		return nil, false
	}
	s := x.(*session.Session)
	r.cache.Set(documentID, s, cache.DefaultExpiration)
	return s, true
}

// GetOrOpen returns the open session or opens it once.
func (r *SessionRepository) GetOrOpen(documentID string, open Opener) (*session.Session, error) {
	if s, ok := r.Get(documentID); ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.Get(documentID); ok {
		return s, nil
	}
	s, err := open(documentID)
	if err != nil {
		return nil, err
	}
	r.Save(s)
	return s, nil
}

// Delete closes and forgets the session.
func (r *SessionRepository) Delete(documentID string) {
	r.cache.Delete(documentID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
