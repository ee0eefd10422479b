// Package agent holds the wire protocol of the agent conversation: the
// prompt sent to the model, the parser that splits its streamed answer, and
// the change proposals it produces.
package agent

import (
	"strings"
	"unicode/utf8"
)

const (
	JustificationDelimiter = "[[JUSTIFICATION]]:"
	ChangesDelimiter       = "[[CHANGES]]:"
)

var holdBack = max(len(JustificationDelimiter), len(ChangesDelimiter))

type parseState int

const (
	stateMessage parseState = iota
	stateJustification
	stateChanges
)

// Result is what remains once the stream is over.
type Result struct {
	Message       string
	Justification string
	Changes       string
}

// StreamParser splits a model answer of the form
//
//	message [[JUSTIFICATION]]: text [[CHANGES]]: json
//
// as it arrives. Message text is handed to emit right away, except for a tail
// long enough to hide a delimiter cut in half between two chunks. Either
// section may be missing.
type StreamParser struct {
	emit          func(text string) error
	state         parseState
	buffer        string
	message       strings.Builder
	justification strings.Builder
	changes       strings.Builder
}

func NewStreamParser(emit func(text string) error) *StreamParser {
	return &StreamParser{emit: emit}
}

// Write consumes the next chunk of the answer.
func (p *StreamParser) Write(chunk string) error {
	if p.state == stateChanges {
		p.changes.WriteString(chunk)
		return nil
	}
	p.buffer += chunk

	for {
		switch p.state {
		case stateMessage:
			if pre, post, ok := strings.Cut(p.buffer, JustificationDelimiter); ok && !strings.Contains(pre, ChangesDelimiter) {
				p.state = stateJustification
				p.buffer = post
				if err := p.send(pre); err != nil {
					return err
				}
				continue
			}
			if pre, post, ok := strings.Cut(p.buffer, ChangesDelimiter); ok {
				p.state = stateChanges
				p.buffer = ""
				p.changes.WriteString(post)
				return p.send(pre)
			}
			safe := p.safePrefix()
			p.buffer = p.buffer[len(safe):]
			return p.send(safe)

		case stateJustification:
			if pre, post, ok := strings.Cut(p.buffer, ChangesDelimiter); ok {
				p.state = stateChanges
				p.buffer = ""
				p.justification.WriteString(pre)
				p.changes.WriteString(post)
				return nil
			}
			safe := p.safePrefix()
			p.buffer = p.buffer[len(safe):]
			p.justification.WriteString(safe)
			return nil

		default:
			p.changes.WriteString(p.buffer)
			p.buffer = ""
			return nil
		}
	}
}

// Close flushes the held back tail into the current section.
func (p *StreamParser) Close() (Result, error) {
	rest := p.buffer
	p.buffer = ""
	switch p.state {
	case stateMessage:
		if err := p.send(rest); err != nil {
			return Result{}, err
		}
	case stateJustification:
		p.justification.WriteString(rest)
	default:
		p.changes.WriteString(rest)
	}
	return Result{
		Message:       p.message.String(),
		Justification: strings.TrimSpace(p.justification.String()),
		Changes:       strings.TrimSpace(p.changes.String()),
	}, nil
}

func (p *StreamParser) send(text string) error {
	if text == "" {
		return nil
	}
	p.message.WriteString(text)
	if p.emit == nil {
		return nil
	}
	return p.emit(text)
}

// safePrefix is the part of the buffer that cannot be the start of a
// delimiter, cut on a rune boundary.
func (p *StreamParser) safePrefix() string {
	n := len(p.buffer) - holdBack
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(p.buffer[n]) {
		n--
	}
	return p.buffer[:n]
}
