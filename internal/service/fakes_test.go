package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"redline-be/internal/entity"
	"redline-be/internal/repository/contract"
	"redline-be/internal/repository/specification"
	"redline-be/internal/repository/unitofwork"
	"redline-be/pkg/events"
	"redline-be/pkg/llm"

	"github.com/google/uuid"
)

// store is an in-memory stand-in for the database behind the unit of work.
type store struct {
	mu       sync.Mutex
	docs     map[uuid.UUID]entity.Document
	updates  []entity.DocumentUpdate
	messages []entity.AgentMessage
	seq      int64
	commits  int
}

func newStore() *store {
	return &store{docs: map[uuid.UUID]entity.Document{}}
}

func (s *store) NewUnitOfWork(context.Context) unitofwork.UnitOfWork {
	return &fakeUow{s: s}
}

func (s *store) updatesFor(id uuid.UUID) []entity.DocumentUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.DocumentUpdate
	for _, u := range s.updates {
		if u.DocumentId == id {
			out = append(out, u)
		}
	}
	return out
}

type fakeUow struct{ s *store }

func (u *fakeUow) Begin(context.Context) error { return nil }
func (u *fakeUow) Commit() error {
	u.s.mu.Lock()
	u.s.commits++
	u.s.mu.Unlock()
	return nil
}
func (u *fakeUow) Rollback() error { return nil }

func (u *fakeUow) DocumentRepository() contract.DocumentRepository {
	return fakeDocs{u.s}
}
func (u *fakeUow) DocumentUpdateRepository() contract.DocumentUpdateRepository {
	return fakeUpdates{u.s}
}
func (u *fakeUow) AgentMessageRepository() contract.AgentMessageRepository {
	return fakeMessages{u.s}
}

func matchID(specs []specification.Specification) (uuid.UUID, bool) {
	for _, spec := range specs {
		if s, ok := spec.(specification.ByID); ok {
			return s.ID, true
		}
	}
	return uuid.Nil, false
}

func matchDocument(specs []specification.Specification) (uuid.UUID, bool) {
	for _, spec := range specs {
		if s, ok := spec.(specification.ByDocumentID); ok {
			return s.DocumentID, true
		}
	}
	return uuid.Nil, false
}

type fakeDocs struct{ s *store }

func (r fakeDocs) Create(_ context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	doc.CreatedAt = time.Now()
	r.s.docs[doc.Id] = *doc
	return nil
}

func (r fakeDocs) Update(_ context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.docs[doc.Id] = *doc
	return nil
}

func (r fakeDocs) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.docs, id)
	return nil
}

func (r fakeDocs) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, _ := matchID(specs)
	doc, ok := r.s.docs[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (r fakeDocs) FindAll(context.Context, ...specification.Specification) ([]*entity.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Document
	for _, d := range r.s.docs {
		d := d
		out = append(out, &d)
	}
	return out, nil
}

func (r fakeDocs) Count(context.Context, ...specification.Specification) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.docs)), nil
}

type fakeUpdates struct{ s *store }

func (r fakeUpdates) Append(_ context.Context, u *entity.DocumentUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	u.Seq = r.s.seq
	u.CreatedAt = time.Now()
	r.s.updates = append(r.s.updates, *u)
	return nil
}

func (r fakeUpdates) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.DocumentUpdate, error) {
	id, _ := matchDocument(specs)
	var out []*entity.DocumentUpdate
	for _, u := range r.s.updatesFor(id) {
		u := u
		out = append(out, &u)
	}
	return out, nil
}

func (r fakeUpdates) DeleteByDocumentId(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.updates[:0]
	for _, u := range r.s.updates {
		if u.DocumentId != id {
			kept = append(kept, u)
		}
	}
	r.s.updates = kept
	return nil
}

func (r fakeUpdates) Count(_ context.Context, specs ...specification.Specification) (int64, error) {
	id, _ := matchDocument(specs)
	return int64(len(r.s.updatesFor(id))), nil
}

type fakeMessages struct{ s *store }

func (r fakeMessages) Create(_ context.Context, msg *entity.AgentMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.messages = append(r.s.messages, *msg)
	return nil
}

func (r fakeMessages) CreateBulk(ctx context.Context, msgs []*entity.AgentMessage) error {
	for _, m := range msgs {
		if err := r.Create(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r fakeMessages) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.AgentMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, _ := matchDocument(specs)
	var out []*entity.AgentMessage
	for _, m := range r.s.messages {
		if m.DocumentId == id {
			m := m
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r fakeMessages) Count(_ context.Context, specs ...specification.Specification) (int64, error) {
	msgs, _ := r.FindAll(context.Background(), specs...)
	return int64(len(msgs)), nil
}

// rooms records broadcasts. A non-nil gate holds every broadcast until it
// is closed.
type rooms struct {
	gate   chan struct{}
	mu     sync.Mutex
	binary [][]byte
	json   []json.RawMessage
	origin []string
}

func (r *rooms) Broadcast(_ string, messageType int, data []byte, origin string) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if messageType == 2 {
		r.binary = append(r.binary, data)
	} else {
		r.json = append(r.json, data)
	}
	r.origin = append(r.origin, origin)
}

func (r *rooms) BroadcastJSON(room string, v interface{}, origin string) {
	data, _ := json.Marshal(v)
	r.Broadcast(room, 1, data, origin)
}

func (r *rooms) frames() ([][]byte, []json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.binary...), append([]json.RawMessage(nil), r.json...)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordedEvents) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordedEvents) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// scriptedLLM answers every call with the same chunks.
type scriptedLLM struct {
	chunks  []string
	err     error
	history []llm.Message
}

func (p *scriptedLLM) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	p.history = history
	if p.err != nil {
		return "", p.err
	}
	var out string
	for _, c := range p.chunks {
		out += c
	}
	return out, nil
}

func (p *scriptedLLM) ChatStream(_ context.Context, history []llm.Message, onDelta llm.DeltaFunc, _ ...llm.Option) error {
	p.history = history
	if p.err != nil {
		return p.err
	}
	for _, c := range p.chunks {
		if err := onDelta(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *scriptedLLM) Name() string { return "scripted" }

type recordedPayloads struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *recordedPayloads) Publish(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}
