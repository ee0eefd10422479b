// Package thread stores discussion threads in a replicated list, plus a
// private overlay of comments that never leave the local session.
package thread

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"redline-be/pkg/replica"
)

// LayerBase is the shared review layer.
const LayerBase = "base"

const arrayName = "threads"

var (
	ErrThreadNotFound  = errors.New("thread not found")
	ErrCommentNotFound = errors.New("comment not found")
)

type AuthorDetails struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

type Comment struct {
	ID            string        `json:"id"`
	Content       string        `json:"content"`
	AuthorDetails AuthorDetails `json:"authorDetails"`
	Timestamp     int64         `json:"timestamp"`
	Action        string        `json:"action,omitempty"`
	Private       bool          `json:"private,omitempty"`
}

type Thread struct {
	ID       string    `json:"id"`
	Comments []Comment `json:"comments"`
	Resolved bool      `json:"resolved"`
	Layer    string    `json:"layer"`
}

// NewThread returns an empty thread on the given layer ("" means base).
func NewThread(layer string) Thread {
	if layer == "" {
		layer = LayerBase
	}
	return Thread{ID: uuid.NewString(), Comments: []Comment{}, Layer: layer}
}

// NewComment stamps a comment with a fresh id and the current time in unix ms.
func NewComment(content string, author AuthorDetails) Comment {
	return Comment{
		ID:            uuid.NewString(),
		Content:       content,
		AuthorDetails: author,
		Timestamp:     time.Now().UnixMilli(),
	}
}

// Store is the shared thread list of one document.
type Store struct {
	doc *replica.Doc
	arr *replica.Array
}

func NewStore(doc *replica.Doc) *Store {
	return &Store{doc: doc, arr: doc.Array(arrayName)}
}

// Threads returns every thread in list order. Undecodable entries are skipped.
func (s *Store) Threads() []Thread {
	raws := s.arr.ToSlice()
	out := make([]Thread, 0, len(raws))
	for _, raw := range raws {
		var th Thread
		if err := json.Unmarshal(raw, &th); err == nil {
			out = append(out, th)
		}
	}
	return out
}

// Get returns a thread and its list index.
func (s *Store) Get(id string) (Thread, int, bool) {
	for i, th := range s.Threads() {
		if th.ID == id {
			return th, i, true
		}
	}
	return Thread{}, -1, false
}

// Insert places a thread at index. Index 0 is the head of the list.
func (s *Store) Insert(th Thread, index int) error {
	if th.Comments == nil {
		th.Comments = []Comment{}
	}
	if index < 0 || index > s.arr.Len() {
		index = s.arr.Len()
	}
	return s.arr.Insert(index, th)
}

// Delete drops a thread. A missing thread is not an error.
func (s *Store) Delete(id string) error {
	_, i, ok := s.Get(id)
	if !ok {
		return nil
	}
	return s.arr.Delete(i, 1)
}

func (s *Store) replace(id string, mutate func(*Thread) error) error {
	return s.doc.Transact(s, func() error {
		th, i, ok := s.Get(id)
		if !ok {
			return ErrThreadNotFound
		}
		if err := mutate(&th); err != nil {
			return err
		}
		if err := s.arr.Delete(i, 1); err != nil {
			return err
		}
		return s.arr.Insert(i, th)
	})
}

// AppendComment adds a comment to the shared thread.
func (s *Store) AppendComment(threadID string, c Comment) error {
	return s.replace(threadID, func(th *Thread) error {
		th.Comments = append(th.Comments, c)
		return nil
	})
}

// DeleteComment removes one comment from the shared thread.
func (s *Store) DeleteComment(threadID, commentID string) error {
	return s.replace(threadID, func(th *Thread) error {
		for i, c := range th.Comments {
			if c.ID == commentID {
				th.Comments = append(th.Comments[:i:i], th.Comments[i+1:]...)
				return nil
			}
		}
		return ErrCommentNotFound
	})
}

func (s *Store) SetResolved(threadID string, resolved bool) error {
	return s.replace(threadID, func(th *Thread) error {
		th.Resolved = resolved
		return nil
	})
}

// EmptyThreadIDs lists threads without a single comment.
func (s *Store) EmptyThreadIDs() []string {
	var out []string
	for _, th := range s.Threads() {
		if len(th.Comments) == 0 {
			out = append(out, th.ID)
		}
	}
	return out
}

// Observe reports every transaction that changed the list.
func (s *Store) Observe(fn func(replica.Event)) (unobserve func()) {
	return s.arr.ObserveDeep(fn)
}

// LocalComments is the private overlay of one session, keyed by thread id.
type LocalComments struct {
	mu       sync.RWMutex
	byThread map[string][]Comment
}

func NewLocalComments() *LocalComments {
	return &LocalComments{byThread: map[string][]Comment{}}
}

func (l *LocalComments) Add(threadID string, c Comment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.Private = true
	l.byThread[threadID] = append(l.byThread[threadID], c)
}

func (l *LocalComments) Get(threadID string) []Comment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Comment(nil), l.byThread[threadID]...)
}

func (l *LocalComments) DeleteThread(threadID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byThread, threadID)
}

// IsPrivate reports whether a new comment on th goes to the private overlay:
// the thread is on the base layer while the viewer looks at another layer.
func IsPrivate(th Thread, visibleLayer string) bool {
	return th.Layer == LayerBase && visibleLayer != LayerBase
}

// DisplayComments merges shared and private comments by timestamp.
func DisplayComments(th Thread, local *LocalComments) []Comment {
	out := append([]Comment(nil), th.Comments...)
	if local != nil {
		out = append(out, local.Get(th.ID)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// CommentDisabled reports whether a shared base comment is read-only for a
// viewer on another layer.
func CommentDisabled(visibleLayer string, th Thread, c Comment) bool {
	return visibleLayer != LayerBase && th.Layer == LayerBase && !c.Private
}
