package lexical

// EditorState is the top-level structure of a serialized editor
type EditorState struct {
	Root Node `json:"root"`
}

// Node represents any node in the Lexical tree
// Using omitempty so that round-tripped JSON stays close to what the editor emits
type Node struct {
	Type     string `json:"type"`
	Version  int    `json:"version"`
	Children []Node `json:"children,omitempty"`

	// Text specific
	Text   string      `json:"text,omitempty"`
	Format interface{} `json:"format,omitempty"` // Can be int (bitmask) or string (alignment)
	Style  string      `json:"style,omitempty"`
	Mode   string      `json:"mode,omitempty"`
	Detail int         `json:"detail,omitempty"`

	// Keyed text leaves export their node key so spans can be re-identified
	Key string `json:"__key,omitempty"`

	// Mark specific (thread ids)
	IDs []string `json:"ids,omitempty"`

	// Insertion specific (change id)
	ID string `json:"id,omitempty"`

	// Paragraph specific
	Direction  string `json:"direction,omitempty"`
	Indent     int    `json:"indent,omitempty"`
	TextFormat int    `json:"textFormat,omitempty"`

	// Link specific
	URL    string `json:"url,omitempty"`
	Rel    string `json:"rel,omitempty"`
	Target string `json:"target,omitempty"`
	Title  string `json:"title,omitempty"`

	// List specific
	ListType string `json:"listType,omitempty"` // check, bullet, number
	Start    int    `json:"start,omitempty"`
	Tag      string `json:"tag,omitempty"`

	// ListItem specific
	Checked bool `json:"checked,omitempty"`
	Value   int  `json:"value,omitempty"`

	// Table specific
	ColSpan     int `json:"colSpan,omitempty"`
	RowSpan     int `json:"rowSpan,omitempty"`
	HeaderState int `json:"headerState,omitempty"` // 1 = header, 0 = normal
}

// Node types understood by the document tree
const (
	TypeRoot           = "root"
	TypeParagraph      = "paragraph"
	TypeHeading        = "heading"
	TypeQuote          = "quote"
	TypeList           = "list"
	TypeListItem       = "listitem"
	TypeTable          = "table"
	TypeTableRow       = "tablerow"
	TypeTableCell      = "tablecell"
	TypeText           = "text"
	TypeTextWithKey    = "text-with-key"
	TypeDel            = "del"
	TypeIns            = "ins"
	TypeMark           = "mark"
	TypeLink           = "link"
	TypeAutoLink       = "autolink"
	TypeLineBreak      = "linebreak"
	TypeHorizontalRule = "horizontalrule"
	TypeMention        = "mention"
)

// Constants for Text Format Bitmask
const (
	FormatBold          = 1
	FormatItalic        = 2
	FormatStrikethrough = 4
	FormatUnderline     = 8
	FormatCode          = 16
	FormatSubscript     = 32
	FormatSuperscript   = 64
	FormatHighlight     = 1 << 7
)

// FormatFlags returns the text format bitmask, or 0 when the node carries an alignment string.
func (n Node) FormatFlags() int {
	switch f := n.Format.(type) {
	case float64:
		return int(f)
	case int:
		return f
	}
	return 0
}

// Alignment returns the element alignment ("center", "right"...), or "" for text nodes.
func (n Node) Alignment() string {
	if s, ok := n.Format.(string); ok {
		return s
	}
	return ""
}

// IsTextLike reports whether the node serializes a text leaf.
func (n Node) IsTextLike() bool {
	return n.Type == TypeText || n.Type == TypeTextWithKey
}
