package mark

import (
	"sort"
	"sync"

	"redline-be/pkg/doctree"
)

// Index maps thread ids to the keys of the mark instances carrying them.
// It is fed by tree mutation events and remembers the last ids seen on each
// key, so destroyed marks can still be cleaned up.
type Index struct {
	mu       sync.RWMutex
	byID     map[string]map[string]struct{}
	lastSeen map[string][]string
}

func NewIndex() *Index {
	return &Index{
		byID:     map[string]map[string]struct{}{},
		lastSeen: map[string][]string{},
	}
}

// Attach rebuilds the index from the tree and keeps it current.
func (ix *Index) Attach(tree *doctree.Tree) (detach func(), err error) {
	if err := tree.Read(func(tx *doctree.Tx) error {
		ix.Rebuild(tx)
		return nil
	}); err != nil {
		return nil, err
	}
	return tree.Subscribe(ix.Apply), nil
}

// Apply folds one committed transaction into the index.
func (ix *Index) Apply(tx *doctree.Tx, ev doctree.MutationEvent) {
	marks := ev.OfKind(doctree.KindMark)
	if len(marks) == 0 {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, m := range marks {
		ix.forget(m.Key)
		if m.Mutation == doctree.MutationDestroyed {
			continue
		}
		if n, ok := tx.Node(m.Key); ok {
			ix.remember(m.Key, n.IDs)
		}
	}
}

// Rebuild discards the index and reads every mark in the tree.
func (ix *Index) Rebuild(tx *doctree.Tx) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byID = map[string]map[string]struct{}{}
	ix.lastSeen = map[string][]string{}
	for _, n := range tx.NodesOfKind(doctree.KindMark) {
		ix.remember(n.Key, n.IDs)
	}
}

func (ix *Index) forget(key string) {
	for _, id := range ix.lastSeen[key] {
		if set, ok := ix.byID[id]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(ix.byID, id)
			}
		}
	}
	delete(ix.lastSeen, key)
}

func (ix *Index) remember(key string, ids []string) {
	ix.lastSeen[key] = append([]string(nil), ids...)
	for _, id := range ids {
		set, ok := ix.byID[id]
		if !ok {
			set = map[string]struct{}{}
			ix.byID[id] = set
		}
		set[key] = struct{}{}
	}
}

// Keys returns the mark keys carrying id, sorted by key.
func (ix *Index) Keys(id string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.byID[id]))
	for k := range ix.byID[id] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether any live mark carries id.
func (ix *Index) Has(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID[id]) > 0
}

// FirstMark returns the mark instance of id that comes first in the document.
func (ix *Index) FirstMark(tx *doctree.Tx, id string) (string, bool) {
	first := ""
	for _, k := range ix.Keys(id) {
		if !tx.IsAttached(k) {
			continue
		}
		if first == "" || tx.IsBefore(k, first) {
			first = k
		}
	}
	return first, first != ""
}

// Compare orders two thread ids by the document position of their first
// mark. A thread without a live mark sorts after every anchored thread.
func (ix *Index) Compare(tx *doctree.Tx, a, b string) int {
	ka, okA := ix.FirstMark(tx, a)
	kb, okB := ix.FirstMark(tx, b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	case ka == kb:
		return 0
	case tx.IsBefore(ka, kb):
		return -1
	}
	return 1
}

// Sort orders thread ids in place by anchor position. Ties keep their order.
func (ix *Index) Sort(tx *doctree.Tx, ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return ix.Compare(tx, ids[i], ids[j]) < 0 })
}
