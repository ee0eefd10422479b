package doctree

import (
	"sort"
	"strconv"
	"sync"
)

// RootKey is the fixed key of the root node.
const RootKey = "root"

const maxTransformPasses = 64

// Mutation is the kind of change a committed transaction made to a node.
type Mutation string

const (
	MutationCreated   Mutation = "created"
	MutationUpdated   Mutation = "updated"
	MutationDestroyed Mutation = "destroyed"
)

// NodeMutation reports one node touched by a committed transaction.
type NodeMutation struct {
	Key      string
	Kind     Kind
	Mutation Mutation
}

// MutationEvent is published once per committed transaction, in commit order.
type MutationEvent struct {
	Seq              uint64
	Mutations        []NodeMutation
	SelectionChanged bool
	Tags             []string
}

// OfKind filters the mutations to a single node kind.
func (e MutationEvent) OfKind(k Kind) []NodeMutation {
	var out []NodeMutation
	for _, m := range e.Mutations {
		if m.Kind == k {
			out = append(out, m)
		}
	}
	return out
}

// HasTag reports whether the transaction was tagged with tag.
func (e MutationEvent) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Listener observes committed transactions. The Tx it receives is read-only.
type Listener func(tx *Tx, ev MutationEvent)

// Transform runs at commit on every dirty node of the kind it was registered
// for, until no transform dirties anything else.
type Transform func(tx *Tx, n *Node) error

type transformEntry struct {
	id int
	fn Transform
}

type listenerEntry struct {
	id int
	fn Listener
}

// Tree is the document arena. All mutation happens inside Update, which is
// serialized by the tree mutex.
type Tree struct {
	mu         sync.Mutex
	nodes      map[string]*Node
	nextKey    int
	keyPrefix  string
	selection  *RangeSelection
	transforms map[Kind][]transformEntry
	listeners  []listenerEntry
	handles    int
	seq        uint64
}

// New creates an empty tree holding only the root.
func New() *Tree {
	t := &Tree{
		nodes:      map[string]*Node{},
		nextKey:    1,
		transforms: map[Kind][]transformEntry{},
	}
	t.nodes[RootKey] = &Node{Key: RootKey, Kind: KindRoot, Type: "root"}

	// Inline containers never survive empty.
	for _, k := range []Kind{KindDeletion, KindInsertion, KindLink} {
		t.RegisterTransform(k, pruneEmpty)
	}
	return t
}

func pruneEmpty(tx *Tx, n *Node) error {
	if len(n.Children) == 0 {
		return tx.Remove(n.Key)
	}
	return nil
}

// RegisterTransform adds a commit-time transform for a node kind.
func (t *Tree) RegisterTransform(kind Kind, fn Transform) (unregister func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handles++
	id := t.handles
	t.transforms[kind] = append(t.transforms[kind], transformEntry{id: id, fn: fn})
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		entries := t.transforms[kind]
		for i, e := range entries {
			if e.id == id {
				t.transforms[kind] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Subscribe registers a listener called synchronously after every commit.
func (t *Tree) Subscribe(fn Listener) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handles++
	id := t.handles
	t.listeners = append(t.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, e := range t.listeners {
			if e.id == id {
				t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

type snapshot struct {
	nodes     map[string]*Node
	nextKey   int
	selection *RangeSelection
}

func (t *Tree) snapshot() snapshot {
	nodes := make(map[string]*Node, len(t.nodes))
	for k, n := range t.nodes {
		nodes[k] = n.clone()
	}
	var sel *RangeSelection
	if t.selection != nil {
		c := *t.selection
		sel = &c
	}
	return snapshot{nodes: nodes, nextKey: t.nextKey, selection: sel}
}

func (t *Tree) restore(s snapshot) {
	t.nodes = s.nodes
	t.nextKey = s.nextKey
	t.selection = s.selection
}

// Update runs fn as one transaction. If fn or a transform fails, the tree
// is rolled back and no event is published.
func (t *Tree) Update(fn func(tx *Tx) error, tags ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snapshot()
	tx := newTx(t)
	if err := fn(tx); err != nil {
		t.restore(prev)
		return err
	}
	if err := tx.runTransforms(); err != nil {
		t.restore(prev)
		return err
	}

	ev := tx.collect(prev)
	if len(ev.Mutations) == 0 && !ev.SelectionChanged {
		return nil
	}
	t.seq++
	ev.Seq = t.seq
	ev.Tags = tags

	tx.readOnly = true
	for _, l := range append([]listenerEntry(nil), t.listeners...) {
		l.fn(tx, ev)
	}
	return nil
}

// Read runs fn against the current state without allowing mutation.
func (t *Tree) Read(fn func(tx *Tx) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx := newTx(t)
	tx.readOnly = true
	return fn(tx)
}

func (t *Tree) allocKey() string {
	for {
		k := t.keyPrefix + strconv.Itoa(t.nextKey)
		t.nextKey++
		if _, taken := t.nodes[k]; !taken {
			return k
		}
	}
}

func (t *Tree) reserveKey(k string) {
	if n, err := strconv.Atoi(k); err == nil && n >= t.nextKey {
		t.nextKey = n + 1
	}
}

func (tx *Tx) runTransforms() error {
	for pass := 0; len(tx.dirty) > 0; pass++ {
		if pass >= maxTransformPasses {
			return ErrTransformLoop
		}
		keys := tx.dirtyInOrder()
		tx.dirty = map[string]struct{}{}

		for _, k := range keys {
			n, ok := tx.tree.nodes[k]
			if !ok || !tx.IsAttached(k) {
				continue
			}
			kind := n.Kind
			for _, tr := range tx.tree.transforms[kind] {
				if err := tr.fn(tx, n); err != nil {
					return err
				}
				if cur, ok := tx.tree.nodes[k]; !ok || cur.Kind != kind || !tx.IsAttached(k) {
					break
				}
			}
		}
	}
	return nil
}

// dirtyInOrder returns dirty keys in document order so transforms are deterministic.
func (tx *Tx) dirtyInOrder() []string {
	order := map[string]int{}
	for i, k := range tx.preorder(RootKey, true) {
		order[k] = i
	}
	keys := make([]string, 0, len(tx.dirty))
	for k := range tx.dirty {
		if _, ok := order[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return order[keys[i]] < order[keys[j]] })
	return keys
}

func (tx *Tx) collect(prev snapshot) MutationEvent {
	reachable := tx.preorder(RootKey, true)
	live := make(map[string]struct{}, len(reachable))
	ev := MutationEvent{SelectionChanged: tx.selectionChanged}

	for _, k := range reachable {
		live[k] = struct{}{}
		n := tx.tree.nodes[k]
		if _, existed := prev.nodes[k]; !existed {
			ev.Mutations = append(ev.Mutations, NodeMutation{Key: k, Kind: n.Kind, Mutation: MutationCreated})
		} else if _, touched := tx.touched[k]; touched {
			ev.Mutations = append(ev.Mutations, NodeMutation{Key: k, Kind: n.Kind, Mutation: MutationUpdated})
		}
	}

	var destroyed []NodeMutation
	for k, n := range prev.nodes {
		if _, ok := live[k]; !ok {
			destroyed = append(destroyed, NodeMutation{Key: k, Kind: n.Kind, Mutation: MutationDestroyed})
		}
	}
	sort.Slice(destroyed, func(i, j int) bool { return keyLess(destroyed[i].Key, destroyed[j].Key) })
	ev.Mutations = append(ev.Mutations, destroyed...)

	// detached leftovers are garbage
	for k := range tx.tree.nodes {
		if _, ok := live[k]; !ok {
			delete(tx.tree.nodes, k)
		}
	}

	if s := tx.tree.selection; s != nil && (!tx.isLive(s.Anchor.Key) || !tx.isLive(s.Focus.Key)) {
		tx.tree.selection = nil
		ev.SelectionChanged = true
	}
	return ev
}

func keyLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
