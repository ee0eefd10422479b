package lexical

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parser handles Lexical JSON to Markdown conversion
type Parser struct {
	annotateKeys bool
}

// ParserOption configures a Parser
type ParserOption func(*Parser)

// WithKeys makes the parser prefix every keyed text leaf with ⟦key⟧ so a
// reader (the agent) can reference spans by key and offset.
func WithKeys() ParserOption {
	return func(p *Parser) {
		p.annotateKeys = true
	}
}

// NewParser creates a new parser instance
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse converts a Lexical JSON string to Semantic Markdown
func (p *Parser) Parse(jsonContent string) (string, error) {
	var state EditorState
	if err := json.Unmarshal([]byte(jsonContent), &state); err != nil {
		return "", fmt.Errorf("failed to parse lexical json: %w", err)
	}
	return p.Render(state.Root), nil
}

// Render converts an already decoded node to Markdown
func (p *Parser) Render(node Node) string {
	var sb strings.Builder
	p.walkNode(node, &sb, 0)
	return sb.String()
}

// ParseContent is a convenience function to parse a raw string
// It attempts to parse as Lexical JSON; if it fails (not JSON or error), it returns the original string
func ParseContent(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, `{"root":`) {
		return content
	}

	md, err := NewParser().Parse(trimmed)
	if err != nil {
		return content
	}
	return md
}

// walkNode traverses the tree and writes markdown
func (p *Parser) walkNode(node Node, sb *strings.Builder, depth int) {
	switch node.Type {
	case TypeRoot:
		for _, child := range node.Children {
			p.walkNode(child, sb, depth)
			sb.WriteString("\n")
		}

	case TypeParagraph:
		p.handleParagraph(node, sb, depth)

	case TypeHeading:
		p.handleHeading(node, sb)

	case TypeQuote:
		sb.WriteString("> ")
		p.walkChildren(node, sb, depth)
		sb.WriteString("\n")

	case TypeText, TypeTextWithKey:
		p.handleText(node, sb)

	// Tracked changes use CriticMarkup-like delimiters so the agent can tell them apart
	case TypeDel:
		sb.WriteString("~~")
		p.walkChildren(node, sb, depth)
		if node.Text != "" {
			sb.WriteString(node.Text)
		}
		sb.WriteString("~~")

	case TypeIns:
		sb.WriteString("++")
		p.walkChildren(node, sb, depth)
		sb.WriteString("++")

	case TypeMark:
		sb.WriteString("==")
		p.walkChildren(node, sb, depth)
		sb.WriteString("==")

	case TypeLineBreak:
		sb.WriteString("  \n")

	case TypeList:
		p.handleList(node, sb, depth)

	// ListItems are handled by handleList to ensure correct marking (bullet/number/check)
	case TypeListItem:
		p.walkChildren(node, sb, depth)

	case TypeTable:
		p.handleTable(node, sb)

	case TypeLink, TypeAutoLink:
		p.handleLink(node, sb)

	case TypeHorizontalRule:
		sb.WriteString("---\n")

	default:
		p.walkChildren(node, sb, depth)
	}
}

func (p *Parser) walkChildren(node Node, sb *strings.Builder, depth int) {
	for _, child := range node.Children {
		p.walkNode(child, sb, depth)
	}
}

func (p *Parser) handleParagraph(node Node, sb *strings.Builder, depth int) {
	align := node.Alignment()
	if align == "left" || align == "start" {
		align = ""
	}

	if align != "" {
		sb.WriteString(fmt.Sprintf("<div align=\"%s\">", align))
	}

	p.walkChildren(node, sb, depth)

	if align != "" {
		sb.WriteString("</div>")
	}
	sb.WriteString("\n")
}

func (p *Parser) handleHeading(node Node, sb *strings.Builder) {
	level := 1
	if len(node.Tag) == 2 && node.Tag[0] == 'h' && node.Tag[1] >= '1' && node.Tag[1] <= '6' {
		level = int(node.Tag[1] - '0')
	}
	sb.WriteString(strings.Repeat("#", level) + " ")
	p.walkChildren(node, sb, 0)
	sb.WriteString("\n")
}

func (p *Parser) handleText(node Node, sb *strings.Builder) {
	if p.annotateKeys && node.Key != "" {
		sb.WriteString("⟦" + node.Key + "⟧")
	}

	styleStyles := ParseStyle(node.Style)
	openTag := styleStyles.BuildAnnotatedOpenTag()
	if openTag != "" {
		sb.WriteString(openTag)
	}

	flags := node.FormatFlags()
	isBold := (flags & FormatBold) != 0
	isItalic := (flags & FormatItalic) != 0
	isUnderline := (flags & FormatUnderline) != 0
	isCode := (flags & FormatCode) != 0
	isStrike := (flags & FormatStrikethrough) != 0

	// Apply wrappers (Code > Bold > Italic > Underline > Strike)
	if isCode {
		sb.WriteString("`")
	}
	if isBold {
		sb.WriteString("**")
	}
	if isItalic {
		sb.WriteString("_")
	}
	if isUnderline {
		sb.WriteString("<u>")
	}
	if isStrike {
		sb.WriteString("~~")
	}

	sb.WriteString(node.Text)

	if isStrike {
		sb.WriteString("~~")
	}
	if isUnderline {
		sb.WriteString("</u>")
	}
	if isItalic {
		sb.WriteString("_")
	}
	if isBold {
		sb.WriteString("**")
	}
	if isCode {
		sb.WriteString("`")
	}

	if openTag != "" {
		sb.WriteString("</span>")
	}
}

func (p *Parser) handleLink(node Node, sb *strings.Builder) {
	sb.WriteString("[")
	p.walkChildren(node, sb, 0)
	sb.WriteString(fmt.Sprintf("](%s)", node.URL))
}

func (p *Parser) handleList(node Node, sb *strings.Builder, depth int) {
	index := 1
	if node.Start > 0 {
		index = node.Start
	}

	for _, child := range node.Children {
		if child.Type != TypeListItem {
			continue
		}

		// 2 spaces per nesting level
		sb.WriteString(strings.Repeat("  ", depth))

		switch node.ListType {
		case "number":
			sb.WriteString(fmt.Sprintf("%d. ", index))
			index++
		case "check":
			if child.Checked {
				sb.WriteString("- [x] ")
			} else {
				sb.WriteString("- [ ] ")
			}
		default:
			sb.WriteString("- ")
		}

		// A nested list appears as a child of the list item
		for _, grandChild := range child.Children {
			if grandChild.Type == TypeList {
				sb.WriteString("\n")
				p.handleList(grandChild, sb, depth+1)
			} else {
				p.walkNode(grandChild, sb, depth)
			}
		}
		sb.WriteString("\n")
	}
	if depth == 0 {
		sb.WriteString("\n")
	}
}

func (p *Parser) handleTable(node Node, sb *strings.Builder) {
	var rows [][]string
	maxCols := 0

	for _, row := range node.Children {
		if row.Type != TypeTableRow {
			continue
		}

		var rowData []string
		for _, cell := range row.Children {
			var cellSb strings.Builder
			for _, content := range cell.Children {
				p.walkNode(content, &cellSb, 0)
			}
			// Newlines break MD tables
			rowData = append(rowData, strings.ReplaceAll(cellSb.String(), "\n", " "))
		}
		rows = append(rows, rowData)
		if len(rowData) > maxCols {
			maxCols = len(rowData)
		}
	}

	if len(rows) == 0 {
		return
	}

	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := 0; i < maxCols; i++ {
			if i < len(cells) {
				sb.WriteString(" " + cells[i] + " |")
			} else {
				sb.WriteString("  |")
			}
		}
		sb.WriteString("\n")
	}

	writeRow(rows[0])
	sb.WriteString("|" + strings.Repeat("---|", maxCols) + "\n")
	for _, r := range rows[1:] {
		writeRow(r)
	}
	sb.WriteString("\n")
}
