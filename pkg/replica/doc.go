// Package replica is an in-memory stand-in for the replicated document
// substrate: named shared arrays and maps, transactions, deep observation and
// an update stream that peers exchange. Conflicting writes resolve last
// writer wins; real merge semantics belong to the substrate.
package replica

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrIndexOutOfRange = errors.New("replica: index out of range")
	ErrBadUpdate       = errors.New("replica: malformed update")
)

const (
	typeArray = "array"
	typeMap   = "map"

	actionInsert  = "insert"
	actionDelete  = "delete"
	actionSet     = "set"
	actionRemove  = "remove"
	actionReplace = "replace"
)

// Op is one change to a shared type.
type Op struct {
	Target string            `json:"target"`
	Type   string            `json:"type"`
	Action string            `json:"action"`
	Index  int               `json:"index,omitempty"`
	Count  int               `json:"count,omitempty"`
	Key    string            `json:"key,omitempty"`
	Values []json.RawMessage `json:"values,omitempty"`
}

// Update is the wire form of one transaction.
type Update struct {
	Client string `json:"client"`
	Ops    []Op   `json:"ops"`
}

// Event is delivered to observers of a shared type once per transaction.
type Event struct {
	Target string
	Origin any
	Local  bool
	Ops    []Op
}

// UpdateHandler receives the encoded update of every committed transaction.
type UpdateHandler func(update []byte, origin any)

type txn struct {
	origin any
	local  bool
	ops    []Op
}

type handler[T any] struct {
	id int
	fn T
}

// Doc holds the shared types of one document.
type Doc struct {
	mu       sync.Mutex
	clientID string
	arrays   map[string]*Array
	maps     map[string]*Map
	txn      *txn
	handlers []handler[UpdateHandler]
	nextID   int
}

func NewDoc() *Doc {
	return &Doc{
		clientID: uuid.NewString(),
		arrays:   map[string]*Array{},
		maps:     map[string]*Map{},
	}
}

// ClientID identifies this replica in the updates it produces.
func (d *Doc) ClientID() string { return d.clientID }

// Array returns the shared array called name, creating it on first use.
func (d *Doc) Array(name string) *Array {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.arrayLocked(name)
}

func (d *Doc) arrayLocked(name string) *Array {
	a, ok := d.arrays[name]
	if !ok {
		a = &Array{doc: d, name: name}
		d.arrays[name] = a
	}
	return a
}

// Map returns the shared map called name, creating it on first use.
func (d *Doc) Map(name string) *Map {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mapLocked(name)
}

func (d *Doc) mapLocked(name string) *Map {
	m, ok := d.maps[name]
	if !ok {
		m = &Map{doc: d, name: name, entries: map[string]json.RawMessage{}}
		d.maps[name] = m
	}
	return m
}

// OnUpdate subscribes to encoded updates, local and remote.
func (d *Doc) OnUpdate(fn UpdateHandler) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.handlers = append(d.handlers, handler[UpdateHandler]{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, h := range d.handlers {
			if h.id == id {
				d.handlers = append(d.handlers[:i:i], d.handlers[i+1:]...)
				return
			}
		}
	}
}

// Transact groups every change made by fn into one transaction. Observers
// and update handlers run once, after fn returns. Changes are not rolled
// back when fn fails. A Transact opened while another is running joins it.
func (d *Doc) Transact(origin any, fn func() error) error {
	return d.transact(origin, true, fn)
}

func (d *Doc) transact(origin any, local bool, fn func() error) error {
	d.mu.Lock()
	owner := d.txn == nil
	if owner {
		d.txn = &txn{origin: origin, local: local}
	}
	d.mu.Unlock()

	err := fn()
	if !owner {
		return err
	}

	d.mu.Lock()
	t := d.txn
	d.txn = nil
	d.mu.Unlock()

	d.dispatch(t)
	return err
}

// record appends op to the open transaction. Callers hold d.mu and get back
// a function that must be called after unlocking when no transaction was open.
func (d *Doc) record(op Op) (flush func()) {
	if d.txn != nil {
		d.txn.ops = append(d.txn.ops, op)
		return func() {}
	}
	t := &txn{local: true, ops: []Op{op}}
	return func() { d.dispatch(t) }
}

func (d *Doc) dispatch(t *txn) {
	if len(t.ops) == 0 {
		return
	}

	byTarget := map[string][]Op{}
	var order []string
	for _, op := range t.ops {
		if _, seen := byTarget[op.Target]; !seen {
			order = append(order, op.Target)
		}
		byTarget[op.Target] = append(byTarget[op.Target], op)
	}

	d.mu.Lock()
	type delivery struct {
		observers []func(Event)
		ev        Event
	}
	var deliveries []delivery
	for _, name := range order {
		ops := byTarget[name]
		ev := Event{Target: name, Origin: t.origin, Local: t.local, Ops: ops}
		var obs []func(Event)
		if ops[0].Type == typeArray {
			obs = d.arrayLocked(name).observerFns()
		} else {
			obs = d.mapLocked(name).observerFns()
		}
		deliveries = append(deliveries, delivery{observers: obs, ev: ev})
	}
	handlers := append([]handler[UpdateHandler](nil), d.handlers...)
	d.mu.Unlock()

	for _, dl := range deliveries {
		for _, fn := range dl.observers {
			fn(dl.ev)
		}
	}

	data, err := json.Marshal(Update{Client: d.clientID, Ops: t.ops})
	if err != nil {
		return
	}
	for _, h := range handlers {
		h.fn(data, t.origin)
	}
}

// ApplyUpdate merges an update produced by another replica. It runs as a
// transaction of its own and never joins one opened by Transact on another
// goroutine.
func (d *Doc) ApplyUpdate(data []byte, origin any) error {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("%w: %v", ErrBadUpdate, err)
	}
	if u.Client == d.clientID {
		return nil
	}

	t := &txn{origin: origin}
	var err error
	d.mu.Lock()
	for _, op := range u.Ops {
		if err = d.applyLocked(op); err != nil {
			break
		}
		t.ops = append(t.ops, op)
	}
	d.mu.Unlock()

	d.dispatch(t)
	return err
}

func (d *Doc) applyLocked(op Op) error {
	switch op.Type {
	case typeArray:
		return d.arrayLocked(op.Target).applyLocked(op)
	case typeMap:
		return d.mapLocked(op.Target).applyLocked(op)
	}
	return fmt.Errorf("%w: unknown type %q", ErrBadUpdate, op.Type)
}

// EncodeState returns an update that brings an empty replica to this state.
func (d *Doc) EncodeState() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := Update{Client: d.clientID}
	for name, a := range d.arrays {
		u.Ops = append(u.Ops, Op{Target: name, Type: typeArray, Action: actionReplace, Values: a.snapshotLocked()})
	}
	for name, m := range d.maps {
		for k, v := range m.entries {
			u.Ops = append(u.Ops, Op{Target: name, Type: typeMap, Action: actionSet, Key: k, Values: []json.RawMessage{v}})
		}
	}
	return json.Marshal(u)
}

func marshalValues(values []any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		if raw, ok := v.(json.RawMessage); ok {
			out = append(out, append(json.RawMessage(nil), raw...))
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
