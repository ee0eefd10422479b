package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"redline-be/pkg/doctree"
	"redline-be/pkg/lexical"
)

// ErrMalformedProposal marks a change list that cannot be applied as a whole.
var ErrMalformedProposal = errors.New("malformed change proposal")

const (
	ChangeDeletion = "deletion"
	ChangeAddition = "addition"
)

// Change is one entry of a proposal. Deletions use the start and end fields,
// additions use key and offset (or start_key and start_offset) and text.
type Change struct {
	Type        string `json:"type"`
	StartKey    string `json:"start_key,omitempty"`
	StartOffset int    `json:"start_offset,omitempty"`
	EndKey      string `json:"end_key,omitempty"`
	EndOffset   int    `json:"end_offset,omitempty"`
	Key         string `json:"key,omitempty"`
	Offset      int    `json:"offset,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Anchor is where an addition goes.
func (c Change) Anchor() (string, int) {
	if c.Key != "" {
		return c.Key, c.Offset
	}
	return c.StartKey, c.StartOffset
}

// Selection is the range of a deletion.
func (c Change) Selection() doctree.RangeSelection {
	return doctree.TextRange(c.StartKey, c.StartOffset, c.EndKey, c.EndOffset)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedProposal, fmt.Sprintf(format, args...))
}

// ParseChanges decodes the changes section of an answer. Code fences around
// the array are tolerated. An empty section is an empty proposal.
func ParseChanges(raw string) ([]Change, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var changes []Change
	if err := json.Unmarshal([]byte(raw), &changes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProposal, err)
	}
	for i, c := range changes {
		switch c.Type {
		case ChangeDeletion:
			if c.StartKey == "" || c.EndKey == "" {
				return nil, malformed("change %d: deletion without range", i)
			}
		case ChangeAddition:
		default:
			return nil, malformed("change %d: unknown type %q", i, c.Type)
		}
	}
	return changes, nil
}

// Group is a deletion and the addition that replaces it. Either side may be
// missing.
type Group struct {
	Deletion *Change
	Addition *Change
}

// GroupChanges pairs every addition with the deletion right before it, when
// that deletion is still unpaired.
func GroupChanges(changes []Change) []Group {
	var groups []Group
	open := -1
	for i := range changes {
		c := changes[i]
		switch c.Type {
		case ChangeDeletion:
			groups = append(groups, Group{Deletion: &c})
			open = len(groups) - 1
		case ChangeAddition:
			if open >= 0 {
				groups[open].Addition = &c
				open = -1
				continue
			}
			groups = append(groups, Group{Addition: &c})
		}
	}
	return groups
}

// position is where a group starts in the document.
func (g Group) position() (string, int) {
	if g.Deletion != nil {
		return g.Deletion.StartKey, g.Deletion.StartOffset
	}
	return g.Addition.Anchor()
}

// Validate checks every group against the current tree. Nothing is applied
// unless the whole proposal passes.
func Validate(tx *doctree.Tx, groups []Group) error {
	var ranges [][2]doctree.Point
	for i, g := range groups {
		if d := g.Deletion; d != nil {
			if err := checkPoint(tx, d.StartKey, d.StartOffset); err != nil {
				return fmt.Errorf("group %d start: %w", i, err)
			}
			if err := checkPoint(tx, d.EndKey, d.EndOffset); err != nil {
				return fmt.Errorf("group %d end: %w", i, err)
			}
			start := doctree.Point{Key: d.StartKey, Offset: d.StartOffset, Type: doctree.PointText}
			end := doctree.Point{Key: d.EndKey, Offset: d.EndOffset, Type: doctree.PointText}
			if ComparePositions(tx, start.Key, start.Offset, end.Key, end.Offset) >= 0 {
				return malformed("group %d: empty or reversed range", i)
			}
			ranges = append(ranges, [2]doctree.Point{start, end})
		}
		if a := g.Addition; a != nil {
			if a.Text == "" {
				return malformed("group %d: addition without text", i)
			}
			if g.Deletion == nil {
				key, offset := a.Anchor()
				if key == "" {
					return malformed("group %d: addition without anchor", i)
				}
				if err := checkPoint(tx, key, offset); err != nil {
					return fmt.Errorf("group %d addition: %w", i, err)
				}
			}
		}
	}

	sort.SliceStable(ranges, func(i, j int) bool {
		return ComparePositions(tx, ranges[i][0].Key, ranges[i][0].Offset, ranges[j][0].Key, ranges[j][0].Offset) < 0
	})
	for i := 1; i < len(ranges); i++ {
		prevEnd, start := ranges[i-1][1], ranges[i][0]
		if ComparePositions(tx, prevEnd.Key, prevEnd.Offset, start.Key, start.Offset) > 0 {
			return malformed("overlapping deletions")
		}
	}
	return nil
}

func checkPoint(tx *doctree.Tx, key string, offset int) error {
	n, ok := tx.Node(key)
	if !ok || !tx.IsAttached(key) {
		return malformed("unknown key %q", key)
	}
	if n.Kind != doctree.KindText {
		return malformed("key %q is not text", key)
	}
	if offset < 0 || offset > n.Size() {
		return malformed("offset %d outside %q (size %d)", offset, key, n.Size())
	}
	return nil
}

// ComparePositions orders two text positions in document order.
func ComparePositions(tx *doctree.Tx, aKey string, aOffset int, bKey string, bOffset int) int {
	switch {
	case aKey == bKey:
		return aOffset - bOffset
	case tx.IsBefore(aKey, bKey):
		return -1
	}
	return 1
}

// SortDescending orders groups from the end of the document to the start, so
// applying them in turn never shifts a position still to be applied.
func SortDescending(tx *doctree.Tx, groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		ak, ao := groups[i].position()
		bk, bo := groups[j].position()
		return ComparePositions(tx, ak, ao, bk, bo) > 0
	})
}

// DiffParts renders the proposal for a preview: the text each deletion would
// remove and the text each addition brings, in proposal order.
func DiffParts(tx *doctree.Tx, changes []Change) []lexical.DiffPart {
	var parts []lexical.DiffPart
	for _, c := range changes {
		switch c.Type {
		case ChangeDeletion:
			n, ok := tx.Node(c.StartKey)
			if !ok || n.Kind != doctree.KindText {
				continue
			}
			runes := []rune(n.Text)
			end := len(runes)
			if c.StartKey == c.EndKey {
				end = min(end, c.EndOffset)
			}
			start := min(max(0, c.StartOffset), end)
			parts = append(parts, lexical.DiffPart{Type: lexical.TypeDel, Text: string(runes[start:end])})
		case ChangeAddition:
			parts = append(parts, lexical.DiffPart{Type: lexical.TypeIns, Text: c.Text})
		}
	}
	return parts
}
