package agent

import (
	"fmt"
	"strings"

	"redline-be/pkg/llm"
)

const changeFormat = `[{"type":"deletion","start_key":"12","start_offset":4,"end_key":"12","end_offset":9},{"type":"addition","key":"12","offset":9,"text":"replacement"}]`

// Instructions is the system prompt. hasMarks adds the sentence about active
// mark ids.
func Instructions(hasMarks bool) string {
	var sb strings.Builder
	sb.WriteString("You help the user revise a shared document.\n")
	sb.WriteString("You receive the full document, where every text leaf is prefixed with its key as ⟦key⟧")
	if hasMarks {
		sb.WriteString(", and the ids of the comment threads the user is looking at, which tell you what text is relevant")
	}
	sb.WriteString(".\n\n")
	sb.WriteString("Answer the user in plain prose first.\n\n")
	sb.WriteString("When you propose edits, describe them as a JSON array of changes on a single line. ")
	sb.WriteString("A change is either a deletion of a range or an addition of text at a position. ")
	sb.WriteString("Keys are leaf keys from the document and offsets count characters inside that leaf. ")
	sb.WriteString("A replacement is a deletion followed by an addition at the end of the deleted range. Example:\n")
	sb.WriteString(changeFormat)
	sb.WriteString("\n\n")
	sb.WriteString("With every proposal also write a short justification in the user's own voice, ")
	sb.WriteString("as the user would explain the edit to the other people working on the document. ")
	sb.WriteString("It is posted to a comment thread.\n\n")
	sb.WriteString("Order of the answer when proposing edits:\n")
	sb.WriteString("1. your message\n")
	fmt.Fprintf(&sb, "2. %s <justification>\n", JustificationDelimiter)
	fmt.Fprintf(&sb, "3. %s <json array>\n", ChangesDelimiter)
	return sb.String()
}

// BuildMessages assembles the chat sent to the model for one inbound message.
func BuildMessages(in Inbound, documentText string) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: Instructions(len(in.ActiveMarkIDs) > 0)}}

	if documentText != "" {
		msgs = append(msgs, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("FULL DOCUMENT (for reference only):\n\"\"\"\n%s\n\"\"\"", documentText),
		})
	}
	if len(in.ActiveMarkIDs) > 0 {
		msgs = append(msgs, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("ACTIVE MARK IDS:\n\"\"\"\n%s\n\"\"\"", strings.Join(in.ActiveMarkIDs, ", ")),
		})
	}

	msgs = append(msgs, HistoryMessages(in.ConversationHistory)...)
	if in.Message != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: in.Message})
	}
	return msgs
}

// HistoryMessages maps client history to chat roles. Turns written by the
// agent become assistant messages, everything else is the user.
func HistoryMessages(history []HistoryEntry) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, h := range history {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		role := llm.RoleUser
		if h.AuthorDetails != nil && h.AuthorDetails.FullName == AuthorAI {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: h.Content})
	}
	return out
}

// AddMarkText puts the text under the active marks right before the user's
// message.
func AddMarkText(msgs []llm.Message, text string) []llm.Message {
	if strings.TrimSpace(text) == "" {
		return msgs
	}
	extra := llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("ACTIVE MARK TEXT:\n\"\"\"\n%s\n\"\"\"", text),
	}
	last := len(msgs) - 1
	if last < 1 || msgs[last].Role != llm.RoleUser {
		return append(msgs, extra)
	}
	out := append([]llm.Message(nil), msgs[:last]...)
	return append(out, extra, msgs[last])
}
