package session

import (
	"bytes"
	"encoding/json"

	"redline-be/pkg/doctree"
	"redline-be/pkg/replica"
)

// TagRemote marks tree transactions that apply node changes received from
// another replica. They are not mirrored back into the replica.
const TagRemote = "remote"

// the replica map holding every tree node, keyed by node key
const nodesMap = "nodes"

type mirrorOrigin struct{}

// replicate keeps the tree and the replica's node map in step: committed
// local transactions are written to the map, remote map changes are applied
// to the tree. Conflicts resolve per node.
func (s *Session) replicate() []func() {
	return []func(){
		s.tree.Subscribe(s.mirror),
		s.doc.Map(nodesMap).Observe(func(ev replica.Event) {
			if !ev.Local {
				s.pull()
			}
		}),
	}
}

// Replicated reports whether the replica already carries a document tree.
func (s *Session) Replicated() bool {
	_, ok := s.doc.Map(nodesMap).Get(doctree.RootKey)
	return ok
}

func encodeNode(n *doctree.Node) (json.RawMessage, error) {
	return json.Marshal(n)
}

// mirror runs under the tree lock. Nodes whose record is unchanged are not
// written, so a node touched only through a descendant does not overwrite a
// concurrent remote edit of it.
func (s *Session) mirror(tx *doctree.Tx, ev doctree.MutationEvent) {
	if len(ev.Mutations) == 0 || ev.HasTag(TagRemote) {
		return
	}
	nodes := s.doc.Map(nodesMap)
	_ = s.doc.Transact(mirrorOrigin{}, func() error {
		for _, m := range ev.Mutations {
			if m.Mutation == doctree.MutationDestroyed {
				nodes.Delete(m.Key)
				continue
			}
			n, ok := tx.Node(m.Key)
			if !ok {
				continue
			}
			raw, err := encodeNode(n)
			if err != nil {
				return err
			}
			if cur, ok := nodes.Get(m.Key); ok && bytes.Equal(cur, raw) {
				continue
			}
			if err := nodes.Set(m.Key, raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// pull brings the tree in line with the node map.
func (s *Session) pull() {
	nodes := s.doc.Map(nodesMap)
	_ = s.tree.Update(func(tx *doctree.Tx) error {
		if _, ok := nodes.Get(doctree.RootKey); !ok {
			return nil
		}

		keys := nodes.Keys()
		inMap := make(map[string]struct{}, len(keys))
		var put []doctree.Node
		for _, k := range keys {
			raw, ok := nodes.Get(k)
			if !ok {
				continue
			}
			inMap[k] = struct{}{}
			if n, ok := tx.Node(k); ok {
				if cur, err := encodeNode(n); err == nil && bytes.Equal(cur, raw) {
					continue
				}
			}
			var n doctree.Node
			if err := json.Unmarshal(raw, &n); err != nil || n.Key != k {
				continue
			}
			put = append(put, n)
		}

		var remove []string
		tx.Walk(doctree.RootKey, func(n *doctree.Node) bool {
			if _, ok := inMap[n.Key]; !ok {
				remove = append(remove, n.Key)
			}
			return true
		})
		if len(put) == 0 && len(remove) == 0 {
			return nil
		}
		return tx.SyncNodes(put, remove)
	}, TagRemote)
}
