package lexical

import (
	"encoding/json"
	"fmt"
)

// Decode parses a serialized editor state.
func Decode(data []byte) (*EditorState, error) {
	var state EditorState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse lexical json: %w", err)
	}
	if state.Root.Type == "" {
		state.Root.Type = TypeRoot
	}
	if state.Root.Type != TypeRoot {
		return nil, fmt.Errorf("unexpected root node type %q", state.Root.Type)
	}
	return &state, nil
}

// Encode serializes an editor state.
func Encode(state *EditorState) ([]byte, error) {
	return json.Marshal(state)
}

// NewEditorState wraps block nodes in a root.
func NewEditorState(blocks ...Node) *EditorState {
	return &EditorState{Root: Node{
		Type:      TypeRoot,
		Version:   1,
		Children:  blocks,
		Direction: "ltr",
		Format:    "",
	}}
}

func NewParagraph(children ...Node) Node {
	return Node{
		Type:      TypeParagraph,
		Version:   1,
		Children:  children,
		Direction: "ltr",
		Format:    "",
	}
}

// NewTextNode builds a keyed text leaf. The key is left empty for nodes
// that have not been placed in a tree yet.
func NewTextNode(text string, format int) Node {
	return Node{
		Type:    TypeTextWithKey,
		Version: 1,
		Text:    text,
		Format:  format,
		Mode:    "normal",
	}
}

// NewDelNode builds a deletion container holding the given text leaves.
func NewDelNode(children ...Node) Node {
	return Node{
		Type:      TypeDel,
		Version:   1,
		Children:  children,
		Direction: "ltr",
		Format:    "",
	}
}

// NewInsNode builds an insertion container with a change id.
func NewInsNode(id string, children ...Node) Node {
	return Node{
		Type:      TypeIns,
		Version:   1,
		ID:        id,
		Children:  children,
		Direction: "ltr",
		Format:    "",
	}
}

// TextEditorState returns a serialized one-paragraph editor state. Comment
// bodies are stored this way.
func TextEditorState(text string) (string, error) {
	data, err := Encode(NewEditorState(NewParagraph(NewTextNode(text, 0))))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DiffPart is one side of a proposed change rendered in a diff preview.
type DiffPart struct {
	Type string // TypeDel or TypeIns
	Text string
}

// BuildDiffState renders proposed changes as a read-only editor state: a
// single paragraph of del and ins nodes. Returns "" when parts is empty.
func BuildDiffState(parts []DiffPart) (string, error) {
	if len(parts) == 0 {
		return "", nil
	}

	children := make([]Node, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case TypeDel:
			children = append(children, NewDelNode(NewTextNode(part.Text, 0)))
		case TypeIns:
			children = append(children, NewInsNode("", NewTextNode(part.Text, 0)))
		default:
			return "", fmt.Errorf("unsupported diff part type %q", part.Type)
		}
	}

	data, err := Encode(NewEditorState(NewParagraph(children...)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PlainText returns the concatenated text of a node, with blocks separated by newlines.
func PlainText(node Node) string {
	switch {
	case node.IsTextLike():
		return node.Text
	case node.Type == TypeLineBreak:
		return "\n"
	}
	out := ""
	for i, child := range node.Children {
		out += PlainText(child)
		if node.Type == TypeRoot && i < len(node.Children)-1 {
			out += "\n"
		}
	}
	if node.Type == TypeDel && node.Text != "" {
		out += node.Text
	}
	return out
}
