package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		interactive bool
		want        bool
	}{
		{name: "yes", input: "y\n", interactive: true, want: true},
		{name: "YES", input: "YES\n", interactive: true, want: true},
		{name: "no", input: "n\n", interactive: true},
		{name: "empty defaults to no", input: "\n", interactive: true},
		{name: "eof", input: "", interactive: true},
		{name: "non-interactive never prompts", input: "y\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			res := Confirm(&out, strings.NewReader(tt.input), tt.interactive, "Delete?")
			assert.Equal(t, tt.want, res.Accepted)
			if tt.interactive {
				assert.Contains(t, out.String(), "Delete? [y/N]")
			} else {
				assert.Empty(t, out.String())
			}
		})
	}
}
