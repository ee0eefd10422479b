package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceColor(t *testing.T) {
	tests := []struct {
		userID string
		want   string
	}{
		{"", "red"},
		{"a", "violet"},
		{"ab", "indigo"},
	}
	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			assert.Equal(t, tt.want, presenceColor(tt.userID).Name)
		})
	}

	// long ids wrap the 32-bit shift without leaving the palette
	long := presenceColor("3f2b8c1e-9a4d-4e6f-b7c2-1d0e5a9f8b34-3f2b8c1e-9a4d-4e6f")
	assert.Contains(t, presencePalette, long)
	assert.Equal(t, long, presenceColor("3f2b8c1e-9a4d-4e6f-b7c2-1d0e5a9f8b34-3f2b8c1e-9a4d-4e6f"))
}
