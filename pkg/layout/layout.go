// Package layout positions comment threads in the margin next to their
// anchors without letting them overlap.
package layout

import (
	"reflect"
	"sync"
)

// DefaultMargin is the vertical gap kept between two threads.
const DefaultMargin = 10

type State int

const (
	StateUnmounted State = iota
	StateMounted
	StatePositioned
)

func (s State) String() string {
	switch s {
	case StateMounted:
		return "mounted"
	case StatePositioned:
		return "positioned"
	}
	return "unmounted"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// AnchorFunc returns the vertical position of a thread's anchor.
type AnchorFunc func(threadID string) float64

// Output is the projection of one thread. It is never persisted.
type Output struct {
	ThreadID string  `json:"threadID"`
	Position float64 `json:"position"`
	Height   float64 `json:"height"`
	Focused  bool    `json:"focused"`
	State    State   `json:"state"`
}

type entry struct {
	height   float64
	mounted  bool
	position float64
	placed   bool
}

// Engine recomputes positions lazily: every input change marks it dirty and
// Tick does the work at most once.
type Engine struct {
	mu        sync.Mutex
	margin    float64
	anchor    AnchorFunc
	order     []string
	entries   map[string]*entry
	focused   map[string]bool
	dirty     bool
	prev      []Output
	listeners map[int]func([]Output)
	nextID    int
}

func New(margin float64, anchor AnchorFunc) *Engine {
	return &Engine{
		margin:    margin,
		anchor:    anchor,
		entries:   map[string]*entry{},
		focused:   map[string]bool{},
		listeners: map[int]func([]Output){},
	}
}

// SetThreads replaces the ordered list of threads to lay out.
func (e *Engine) SetThreads(ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = append([]string(nil), ids...)
	keep := map[string]bool{}
	for _, id := range ids {
		keep[id] = true
		if _, ok := e.entries[id]; !ok {
			e.entries[id] = &entry{}
		}
	}
	for id := range e.entries {
		if !keep[id] {
			delete(e.entries, id)
		}
	}
	e.dirty = true
}

// Mount records the rendered height of a thread.
func (e *Engine) Mount(id string, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.entries[id]
	if !ok {
		en = &entry{}
		e.entries[id] = en
	}
	if en.mounted && en.height == height {
		return
	}
	en.mounted = true
	en.height = height
	e.dirty = true
}

// Resize is Mount for a thread whose height changed.
func (e *Engine) Resize(id string, height float64) { e.Mount(id, height) }

func (e *Engine) Unmount(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if en, ok := e.entries[id]; ok {
		en.mounted = false
		e.dirty = true
	}
}

// SetFocused marks the given threads as focused.
func (e *Engine) SetFocused(ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	focused := make(map[string]bool, len(ids))
	for _, id := range ids {
		focused[id] = true
	}
	if !reflect.DeepEqual(focused, e.focused) {
		e.focused = focused
		e.dirty = true
	}
}

// Invalidate marks anchors as moved.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
}

// Subscribe is called with the new projection whenever a Tick changes it.
func (e *Engine) Subscribe(fn func([]Output)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Outputs returns the last computed projection.
func (e *Engine) Outputs() []Output {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Output(nil), e.prev...)
}

// State reports where a thread is in its mount cycle.
func (e *Engine) State(id string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.entries[id]
	switch {
	case !ok || !en.mounted:
		return StateUnmounted
	case en.placed && !e.dirty:
		return StatePositioned
	}
	return StateMounted
}

// Tick recomputes the layout when something changed and every thread is
// mounted. It reports whether the projection differs from the last one.
func (e *Engine) Tick() ([]Output, bool) {
	e.mu.Lock()
	if !e.dirty || !e.allMounted() {
		out := append([]Output(nil), e.prev...)
		e.mu.Unlock()
		return out, false
	}
	e.dirty = false

	next := e.compute()
	if reflect.DeepEqual(next, e.prev) {
		e.mu.Unlock()
		return next, false
	}
	e.prev = next
	listeners := make([]func([]Output), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(append([]Output(nil), next...))
	}
	return next, true
}

func (e *Engine) allMounted() bool {
	for _, id := range e.order {
		if en := e.entries[id]; en == nil || !en.mounted {
			return false
		}
	}
	return true
}

func (e *Engine) compute() []Output {
	f := -1
	for i, id := range e.order {
		if e.focused[id] {
			f = i
			break
		}
	}

	offset, bottom := 0.0, 0.0
	if f > 0 {
		// Threads above the focus keep their last position, so give any that
		// never had one a plain stacked position first.
		for _, id := range e.order[:f] {
			if !e.entries[id].placed {
				e.stack(e.order[:f])
				break
			}
		}
		prev := e.entries[e.order[f-1]]
		focused := e.entries[e.order[f]]
		naive := prev.position + prev.height + e.margin
		position := naive
		if focused.placed && focused.position != 0 {
			position = focused.position
		}
		offset = min(0, e.anchor(e.order[f])-position)
		bottom = prev.position + prev.height + e.margin + offset
	}

	out := make([]Output, 0, len(e.order))
	for i, id := range e.order {
		en := e.entries[id]
		var position float64
		if i < f {
			position = en.position + offset
		} else {
			position = max(bottom, e.anchor(id))
			bottom = position + en.height + e.margin
		}
		en.position = position
		en.placed = true
		out = append(out, Output{
			ThreadID: id,
			Position: position,
			Height:   en.height,
			Focused:  e.focused[id],
			State:    StatePositioned,
		})
	}
	return out
}

func (e *Engine) stack(ids []string) {
	bottom := 0.0
	for _, id := range ids {
		en := e.entries[id]
		en.position = max(bottom, e.anchor(id))
		en.placed = true
		bottom = en.position + en.height + e.margin
	}
}
