package doctree

// PointType tells whether a point offset counts runes in a text leaf or
// children of an element.
type PointType int

const (
	PointText PointType = iota
	PointElement
)

// Point is one end of a selection.
type Point struct {
	Key    string    `json:"key"`
	Offset int       `json:"offset"`
	Type   PointType `json:"type"`
}

// RangeSelection is an anchor and a focus. The focus may precede the anchor.
type RangeSelection struct {
	Anchor Point `json:"anchor"`
	Focus  Point `json:"focus"`
}

// TextRange builds a selection between two text points.
func TextRange(anchorKey string, anchorOffset int, focusKey string, focusOffset int) RangeSelection {
	return RangeSelection{
		Anchor: Point{Key: anchorKey, Offset: anchorOffset, Type: PointText},
		Focus:  Point{Key: focusKey, Offset: focusOffset, Type: PointText},
	}
}

// Caret builds a collapsed selection inside a text leaf.
func Caret(key string, offset int) RangeSelection {
	return TextRange(key, offset, key, offset)
}

// IsCollapsed reports whether anchor and focus are the same point.
func (s RangeSelection) IsCollapsed() bool {
	return s.Anchor == s.Focus
}

// ResolvePoint maps a point to a leaf and an offset inside it. Element points
// resolve to the boundary of the adjacent leaf.
func (tx *Tx) ResolvePoint(p Point) (Point, error) {
	n, err := tx.Live(p.Key)
	if err != nil {
		return Point{}, err
	}
	if p.Type == PointText {
		if n.Kind != KindText {
			return Point{}, ErrNotText
		}
		if p.Offset < 0 || p.Offset > n.Size() {
			return Point{}, ErrOffsetOutOfRange
		}
		return p, nil
	}

	if !n.IsElement() {
		if p.Offset < 0 || p.Offset > n.Size() {
			return Point{}, ErrOffsetOutOfRange
		}
		return Point{Key: n.Key, Offset: p.Offset, Type: PointText}, nil
	}
	if p.Offset < 0 || p.Offset > len(n.Children) {
		return Point{}, ErrOffsetOutOfRange
	}
	if len(n.Children) == 0 {
		return Point{Key: n.Key, Offset: 0, Type: PointElement}, nil
	}
	if p.Offset == len(n.Children) {
		leaf := tx.LastLeaf(n.Children[len(n.Children)-1])
		return Point{Key: leaf.Key, Offset: leaf.Size(), Type: leafPointType(leaf)}, nil
	}
	leaf := tx.FirstLeaf(n.Children[p.Offset])
	return Point{Key: leaf.Key, Offset: 0, Type: leafPointType(leaf)}, nil
}

func leafPointType(n *Node) PointType {
	if n.IsElement() {
		return PointElement
	}
	return PointText
}

// comparePoints orders two resolved points: -1, 0 or 1.
func (tx *Tx) comparePoints(a, b Point) int {
	if a.Key == b.Key {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		}
		return 0
	}
	if tx.IsBefore(a.Key, b.Key) {
		return -1
	}
	return 1
}

// IsBackward reports whether the focus precedes the anchor.
func (tx *Tx) IsBackward(sel RangeSelection) (bool, error) {
	a, err := tx.ResolvePoint(sel.Anchor)
	if err != nil {
		return false, err
	}
	f, err := tx.ResolvePoint(sel.Focus)
	if err != nil {
		return false, err
	}
	return tx.comparePoints(f, a) < 0, nil
}

// Normalize returns the resolved start and end of the selection in document order.
func (tx *Tx) Normalize(sel RangeSelection) (start, end Point, err error) {
	a, err := tx.ResolvePoint(sel.Anchor)
	if err != nil {
		return Point{}, Point{}, err
	}
	f, err := tx.ResolvePoint(sel.Focus)
	if err != nil {
		return Point{}, Point{}, err
	}
	if tx.comparePoints(f, a) < 0 {
		return f, a, nil
	}
	return a, f, nil
}

// NodesBetween lists the nodes from start to end in document order, both
// included, leaving out the ancestors of start.
func (tx *Tx) NodesBetween(start, end string) []string {
	var out []string
	in := false
	for _, k := range tx.Preorder() {
		if k == start {
			in = true
		}
		if in && (k == start || !tx.IsParentOf(k, start)) {
			out = append(out, k)
		}
		if k == end {
			break
		}
	}
	return out
}

// Extract splits the text leaves at the selection boundaries and returns the
// nodes fully inside the range in document order. Element nodes between the
// ends are listed too. A collapsed selection extracts nothing.
func (tx *Tx) Extract(sel RangeSelection) ([]string, error) {
	if err := tx.writable(); err != nil {
		return nil, err
	}
	start, end, err := tx.Normalize(sel)
	if err != nil {
		return nil, err
	}
	if start == end {
		return nil, nil
	}

	first := tx.tree.nodes[start.Key]
	if start.Key == end.Key {
		if first.Kind != KindText {
			return []string{first.Key}, nil
		}
		pieces, err := tx.SplitText(first.Key, start.Offset, end.Offset)
		if err != nil {
			return nil, err
		}
		if start.Offset == 0 {
			return pieces[:1], nil
		}
		if len(pieces) < 2 {
			return nil, nil
		}
		return pieces[1:2], nil
	}

	nodes := tx.NodesBetween(start.Key, end.Key)
	last := tx.tree.nodes[end.Key]

	if first.Kind == KindText {
		switch {
		case start.Offset == first.Size():
			nodes = nodes[1:]
		case start.Offset != 0:
			pieces, err := tx.SplitText(first.Key, start.Offset)
			if err != nil {
				return nil, err
			}
			nodes[0] = pieces[1]
		}
	}
	if last.Kind == KindText && len(nodes) > 0 && nodes[len(nodes)-1] == last.Key {
		switch {
		case end.Offset == 0:
			nodes = nodes[:len(nodes)-1]
		case end.Offset != last.Size():
			if _, err := tx.SplitText(last.Key, end.Offset); err != nil {
				return nil, err
			}
		}
	}
	return nodes, nil
}
