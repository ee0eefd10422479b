package doctree

import (
	"redline-be/pkg/lexical"
)

var blockTypes = map[string]bool{
	lexical.TypeParagraph: true,
	lexical.TypeHeading:   true,
	lexical.TypeQuote:     true,
	lexical.TypeList:      true,
	lexical.TypeListItem:  true,
	lexical.TypeTable:     true,
	lexical.TypeTableRow:  true,
	lexical.TypeTableCell: true,
}

// Import replaces the document content with a serialized editor state.
// Plain text nodes become keyed-text leaves. Exported keys are kept when they
// are unique so that spans stay addressable across a save and load.
func (tx *Tx) Import(state *lexical.EditorState) error {
	if err := tx.writable(); err != nil {
		return err
	}
	for _, c := range append([]string(nil), tx.Root().Children...) {
		if err := tx.Remove(c); err != nil {
			return err
		}
	}

	seen := map[string]int{}
	collectKeys(state.Root, seen)
	for k, count := range seen {
		if count == 1 {
			tx.tree.reserveKey(k)
		}
	}

	for _, child := range state.Root.Children {
		key, err := tx.importNode(child, seen)
		if err != nil {
			return err
		}
		if err := tx.Append(RootKey, key); err != nil {
			return err
		}
	}
	return nil
}

func collectKeys(n lexical.Node, seen map[string]int) {
	if n.IsTextLike() && n.Key != "" && n.Key != RootKey {
		seen[n.Key]++
	}
	for _, c := range n.Children {
		collectKeys(c, seen)
	}
}

func (tx *Tx) importNode(src lexical.Node, seen map[string]int) (string, error) {
	var n *Node
	switch {
	case src.IsTextLike():
		n = &Node{
			Kind:   KindText,
			Type:   lexical.TypeTextWithKey,
			Text:   src.Text,
			Format: src.FormatFlags(),
			Style:  src.Style,
			Mode:   src.Mode,
			Detail: src.Detail,
		}
		if n.Mode == "" {
			n.Mode = "normal"
		}
		if _, taken := tx.tree.nodes[src.Key]; src.Key != "" && seen[src.Key] == 1 && !taken {
			n.Key = src.Key
		}
		return tx.create(n).Key, nil
	case src.Type == lexical.TypeLineBreak:
		return tx.CreateLineBreak().Key, nil
	case src.Type == lexical.TypeDel:
		n = tx.CreateDeletion()
	case src.Type == lexical.TypeIns:
		n = tx.CreateInsertion(src.ID)
	case src.Type == lexical.TypeMark:
		n = tx.CreateMark(src.IDs...)
	case src.Type == lexical.TypeLink || src.Type == lexical.TypeAutoLink:
		n = tx.create(&Node{Kind: KindLink, Type: src.Type, Attrs: attrsOf(src)})
	case blockTypes[src.Type] || len(src.Children) > 0:
		n = tx.create(&Node{Kind: KindElement, Type: src.Type, Attrs: attrsOf(src)})
	default:
		n = tx.create(&Node{
			Kind:   KindDecorator,
			Type:   src.Type,
			Inline: src.Type == lexical.TypeMention,
			Attrs:  attrsOf(src),
		})
		return n.Key, nil
	}

	for _, c := range src.Children {
		key, err := tx.importNode(c, seen)
		if err != nil {
			return "", err
		}
		if err := tx.Append(n.Key, key); err != nil {
			return "", err
		}
	}
	return n.Key, nil
}

func attrsOf(src lexical.Node) lexical.Node {
	src.Children = nil
	return src
}

// Export serializes the document.
func (tx *Tx) Export() *lexical.EditorState {
	root := tx.Root()
	blocks := make([]lexical.Node, 0, len(root.Children))
	for _, c := range root.Children {
		blocks = append(blocks, tx.exportNode(tx.tree.nodes[c]))
	}
	return lexical.NewEditorState(blocks...)
}

// ExportJSON serializes the document to editor JSON.
func (tx *Tx) ExportJSON() ([]byte, error) {
	return lexical.Encode(tx.Export())
}

func (tx *Tx) exportChildren(n *Node) []lexical.Node {
	out := make([]lexical.Node, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, tx.exportNode(tx.tree.nodes[c]))
	}
	return out
}

func (tx *Tx) exportNode(n *Node) lexical.Node {
	switch n.Kind {
	case KindText:
		return lexical.Node{
			Type:    lexical.TypeTextWithKey,
			Version: 1,
			Text:    n.Text,
			Format:  n.Format,
			Style:   n.Style,
			Mode:    n.Mode,
			Detail:  n.Detail,
			Key:     n.Key,
		}
	case KindLineBreak:
		return lexical.Node{Type: lexical.TypeLineBreak, Version: 1}
	case KindDeletion:
		return lexical.NewDelNode(tx.exportChildren(n)...)
	case KindInsertion:
		return lexical.NewInsNode(n.ChangeID, tx.exportChildren(n)...)
	case KindMark:
		return lexical.Node{
			Type:      lexical.TypeMark,
			Version:   1,
			IDs:       append([]string(nil), n.IDs...),
			Children:  tx.exportChildren(n),
			Direction: "ltr",
		}
	case KindDecorator:
		return n.Attrs
	}
	out := n.Attrs
	out.Type = n.Type
	if out.Version == 0 {
		out.Version = 1
	}
	out.Children = tx.exportChildren(n)
	return out
}
