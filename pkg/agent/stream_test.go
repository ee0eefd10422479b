package agent

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, chunks ...string) (Result, []string) {
	t.Helper()
	var emitted []string
	p := NewStreamParser(func(text string) error {
		emitted = append(emitted, text)
		return nil
	})
	for _, c := range chunks {
		require.NoError(t, p.Write(c))
	}
	res, err := p.Close()
	require.NoError(t, err)
	return res, emitted
}

func TestStreamParser(t *testing.T) {
	tests := []struct {
		name          string
		chunks        []string
		message       string
		justification string
		changes       string
	}{
		{
			name:    "message only",
			chunks:  []string{"Hel", "lo wor", "ld"},
			message: "Hello world",
		},
		{
			name:          "delimiters split across chunks",
			chunks:        []string{"Msg [[JUSTIF", "ICATION]]: because [[CHA", "NGES]]: [1]"},
			message:       "Msg ",
			justification: "because",
			changes:       "[1]",
		},
		{
			name:    "changes without justification",
			chunks:  []string{"Fix.[[CHANGES]]:", "[]"},
			message: "Fix.",
			changes: "[]",
		},
		{
			name:          "everything in one chunk",
			chunks:        []string{"A [[JUSTIFICATION]]: B [[CHANGES]]: C"},
			message:       "A ",
			justification: "B",
			changes:       "C",
		},
		{
			name:          "justification left open",
			chunks:        []string{"A [[JUSTIFICATION]]:", " only reason "},
			message:       "A ",
			justification: "only reason",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, emitted := run(t, tt.chunks...)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.message, strings.Join(emitted, ""))
			assert.Equal(t, tt.justification, res.Justification)
			assert.Equal(t, tt.changes, res.Changes)
			for _, e := range emitted {
				assert.NotContains(t, e, "[[")
			}
		})
	}
}

func TestStreamParser_HoldsBackTail(t *testing.T) {
	var emitted []string
	p := NewStreamParser(func(text string) error {
		emitted = append(emitted, text)
		return nil
	})

	require.NoError(t, p.Write("abcdefghijklmnopqrstuvwxyz"))
	assert.Equal(t, []string{"abcdefgh"}, emitted)

	res, err := p.Close()
	require.NoError(t, err)
	assert.Equal(t, []string{"abcdefgh", "ijklmnopqrstuvwxyz"}, emitted)
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz", res.Message)
}

func TestStreamParser_CutsOnRuneBoundary(t *testing.T) {
	text := "x" + strings.Repeat("é", 20) + "y"
	res, emitted := run(t, text)
	require.Len(t, emitted, 2)
	for _, e := range emitted {
		assert.True(t, utf8.ValidString(e))
	}
	assert.Equal(t, text, res.Message)
}

func TestStreamParser_EmitError(t *testing.T) {
	boom := errors.New("closed")
	p := NewStreamParser(func(string) error { return boom })
	err := p.Write(strings.Repeat("x", 40))
	assert.ErrorIs(t, err, boom)
}
