package doctree

// SetKeyPrefix makes every key allocated from now on start with prefix.
// Trees that replicate one another use distinct prefixes so that keys
// created concurrently never collide.
func (t *Tree) SetKeyPrefix(prefix string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keyPrefix = prefix
}

// SyncNodes overwrites the nodes in put and drops the keys in remove, as
// received from another replica. The root is never removed. Afterwards only
// what hangs off the root through consistent parent links is kept: a child
// whose Parent names another node, or that is missing, is cut from the
// children list. Transforms do not run on synced nodes.
func (tx *Tx) SyncNodes(put []Node, remove []string) error {
	if err := tx.writable(); err != nil {
		return err
	}

	for _, k := range remove {
		if k == RootKey {
			continue
		}
		delete(tx.tree.nodes, k)
	}
	for i := range put {
		n := put[i].clone()
		if n.Key == RootKey {
			n.Kind = KindRoot
			n.Parent = ""
		}
		tx.tree.nodes[n.Key] = n
		tx.tree.reserveKey(n.Key)
		tx.touched[n.Key] = struct{}{}
	}

	reached := map[string]struct{}{RootKey: {}}
	var walk func(n *Node)
	walk = func(n *Node) {
		kept := n.Children[:0:0]
		for _, c := range n.Children {
			child, ok := tx.tree.nodes[c]
			if _, seen := reached[c]; !ok || seen || child.Parent != n.Key {
				continue
			}
			reached[c] = struct{}{}
			kept = append(kept, c)
		}
		if len(kept) != len(n.Children) {
			n.Children = kept
			tx.touched[n.Key] = struct{}{}
		}
		for _, c := range kept {
			walk(tx.tree.nodes[c])
		}
	}
	walk(tx.tree.nodes[RootKey])

	for k := range tx.tree.nodes {
		if _, ok := reached[k]; !ok {
			delete(tx.tree.nodes, k)
		}
	}
	return nil
}
