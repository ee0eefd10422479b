package replica

import (
	"encoding/json"
	"fmt"
	"sort"
)

type observers struct {
	list   []handler[func(Event)]
	nextID int
}

func (o *observers) add(fn func(Event)) int {
	o.nextID++
	o.list = append(o.list, handler[func(Event)]{id: o.nextID, fn: fn})
	return o.nextID
}

func (o *observers) remove(id int) {
	for i, h := range o.list {
		if h.id == id {
			o.list = append(o.list[:i:i], o.list[i+1:]...)
			return
		}
	}
}

func (o *observers) fns() []func(Event) {
	out := make([]func(Event), 0, len(o.list))
	for _, h := range o.list {
		out = append(out, h.fn)
	}
	return out
}

// Array is a shared ordered list of JSON values.
type Array struct {
	doc   *Doc
	name  string
	items []json.RawMessage
	obs   observers
}

func (a *Array) Len() int {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()
	return len(a.items)
}

// Get returns the raw value at index.
func (a *Array) Get(index int) (json.RawMessage, bool) {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()
	if index < 0 || index >= len(a.items) {
		return nil, false
	}
	return a.items[index], true
}

// Decode unmarshals the value at index into v.
func (a *Array) Decode(index int, v any) error {
	raw, ok := a.Get(index)
	if !ok {
		return ErrIndexOutOfRange
	}
	return json.Unmarshal(raw, v)
}

// ToSlice returns a copy of the values.
func (a *Array) ToSlice() []json.RawMessage {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Array) snapshotLocked() []json.RawMessage {
	out := make([]json.RawMessage, len(a.items))
	copy(out, a.items)
	return out
}

// Insert puts values at index, shifting the rest right.
func (a *Array) Insert(index int, values ...any) error {
	raws, err := marshalValues(values)
	if err != nil {
		return err
	}
	a.doc.mu.Lock()
	if index < 0 || index > len(a.items) {
		a.doc.mu.Unlock()
		return ErrIndexOutOfRange
	}
	op := Op{Target: a.name, Type: typeArray, Action: actionInsert, Index: index, Values: raws}
	_ = a.applyLocked(op)
	flush := a.doc.record(op)
	a.doc.mu.Unlock()
	flush()
	return nil
}

// Push appends values.
func (a *Array) Push(values ...any) error {
	return a.Insert(a.Len(), values...)
}

// Delete removes count values starting at index.
func (a *Array) Delete(index, count int) error {
	a.doc.mu.Lock()
	if index < 0 || count < 0 || index+count > len(a.items) {
		a.doc.mu.Unlock()
		return ErrIndexOutOfRange
	}
	op := Op{Target: a.name, Type: typeArray, Action: actionDelete, Index: index, Count: count}
	_ = a.applyLocked(op)
	flush := a.doc.record(op)
	a.doc.mu.Unlock()
	flush()
	return nil
}

// ObserveDeep calls fn once per transaction that changed the array. Values
// are plain JSON, so a change inside an element is reported as that element
// being replaced.
func (a *Array) ObserveDeep(fn func(Event)) (unobserve func()) {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()
	id := a.obs.add(fn)
	return func() {
		a.doc.mu.Lock()
		defer a.doc.mu.Unlock()
		a.obs.remove(id)
	}
}

func (a *Array) observerFns() []func(Event) { return a.obs.fns() }

func (a *Array) applyLocked(op Op) error {
	switch op.Action {
	case actionInsert:
		i := clamp(op.Index, len(a.items))
		items := make([]json.RawMessage, 0, len(a.items)+len(op.Values))
		items = append(items, a.items[:i]...)
		items = append(items, op.Values...)
		a.items = append(items, a.items[i:]...)
	case actionDelete:
		i := clamp(op.Index, len(a.items))
		j := clamp(op.Index+op.Count, len(a.items))
		a.items = append(a.items[:i:i], a.items[j:]...)
	case actionReplace:
		a.items = append([]json.RawMessage(nil), op.Values...)
	default:
		return fmt.Errorf("%w: array action %q", ErrBadUpdate, op.Action)
	}
	return nil
}

// Map is a shared string-keyed map of JSON values.
type Map struct {
	doc     *Doc
	name    string
	entries map[string]json.RawMessage
	obs     observers
}

func (m *Map) Get(key string) (json.RawMessage, bool) {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// Decode unmarshals the value under key into v. It reports false when the key is unset.
func (m *Map) Decode(key string, v any) (bool, error) {
	raw, ok := m.Get(key)
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// Keys returns the keys in sorted order.
func (m *Map) Keys() []string {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Map) Set(key string, value any) error {
	raws, err := marshalValues([]any{value})
	if err != nil {
		return err
	}
	m.doc.mu.Lock()
	op := Op{Target: m.name, Type: typeMap, Action: actionSet, Key: key, Values: raws}
	_ = m.applyLocked(op)
	flush := m.doc.record(op)
	m.doc.mu.Unlock()
	flush()
	return nil
}

func (m *Map) Delete(key string) {
	m.doc.mu.Lock()
	if _, ok := m.entries[key]; !ok {
		m.doc.mu.Unlock()
		return
	}
	op := Op{Target: m.name, Type: typeMap, Action: actionRemove, Key: key}
	_ = m.applyLocked(op)
	flush := m.doc.record(op)
	m.doc.mu.Unlock()
	flush()
}

// Observe calls fn once per transaction that changed the map.
func (m *Map) Observe(fn func(Event)) (unobserve func()) {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	id := m.obs.add(fn)
	return func() {
		m.doc.mu.Lock()
		defer m.doc.mu.Unlock()
		m.obs.remove(id)
	}
}

func (m *Map) observerFns() []func(Event) { return m.obs.fns() }

func (m *Map) applyLocked(op Op) error {
	switch op.Action {
	case actionSet:
		if len(op.Values) != 1 {
			return fmt.Errorf("%w: set needs one value", ErrBadUpdate)
		}
		m.entries[op.Key] = op.Values[0]
	case actionRemove:
		delete(m.entries, op.Key)
	default:
		return fmt.Errorf("%w: map action %q", ErrBadUpdate, op.Action)
	}
	return nil
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
