package doctree

// WrapDecision is what a WrapStrategy wants done with one extracted node.
type WrapDecision int

const (
	// WrapTarget moves the node into the current container, creating one if needed.
	WrapTarget WrapDecision = iota
	// WrapSkip leaves the node in place and ends the current run.
	WrapSkip
	// WrapRemove deletes the node. The current run continues.
	WrapRemove
)

// WrapStrategy decides how a range is wrapped. Mark anchoring and deletion
// tracking are the two strategies in use.
type WrapStrategy interface {
	Classify(tx *Tx, n *Node, index int) WrapDecision
	NewContainer(tx *Tx, first *Node) (*Node, error)
}

// WrapSelection extracts the selected nodes and wraps them with s.
func (tx *Tx) WrapSelection(sel RangeSelection, s WrapStrategy) ([]string, error) {
	nodes, err := tx.Extract(sel)
	if err != nil {
		return nil, err
	}
	return tx.WrapNodes(nodes, s)
}

// WrapNodes groups runs of adjacent targets that share a parent into
// containers and returns the created container keys in document order.
// A parent change or a skipped node starts a new run.
func (tx *Tx) WrapNodes(keys []string, s WrapStrategy) ([]string, error) {
	var (
		current *Node
		parent  string
		created []string
	)
	for i, k := range keys {
		n, ok := tx.tree.nodes[k]
		if !ok || !tx.IsAttached(k) {
			continue
		}
		if current != nil && tx.IsParentOf(current.Key, k) {
			continue
		}

		switch s.Classify(tx, n, i) {
		case WrapSkip:
			current = nil
			parent = ""
			continue
		case WrapRemove:
			if err := tx.Remove(k); err != nil {
				return nil, err
			}
			continue
		}

		if n.Parent != parent {
			current = nil
		}
		parent = n.Parent
		if current == nil {
			c, err := s.NewContainer(tx, n)
			if err != nil {
				return nil, err
			}
			if err := tx.InsertBefore(k, c.Key); err != nil {
				return nil, err
			}
			current = c
			created = append(created, c.Key)
		}
		if err := tx.Append(current.Key, k); err != nil {
			return nil, err
		}
	}
	return created, nil
}
