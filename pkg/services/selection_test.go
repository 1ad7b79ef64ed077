package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		input string
		kind  SelectionKind
		seq   int
	}{
		{"", SelectionSkip, 0},
		{"   ", SelectionSkip, 0},
		{"0", SelectionDoNotMap, 0},
		{" 0\n", SelectionDoNotMap, 0},
		{"00", SelectionInvalid, 0},
		{"3", SelectionTarget, 3},
		{"12", SelectionTarget, 12},
		{"-1", SelectionInvalid, 0},
		{"abc", SelectionInvalid, 0},
		{"1.5", SelectionInvalid, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sel := ParseSelection(tt.input)
			assert.Equal(t, tt.kind, sel.Kind)
			assert.Equal(t, tt.seq, sel.Seq)
		})
	}
}

func TestSelectionKindString(t *testing.T) {
	assert.Equal(t, "skip", SelectionSkip.String())
	assert.Equal(t, "do_not_map", SelectionDoNotMap.String())
	assert.Equal(t, "target", SelectionTarget.String())
	assert.Equal(t, "invalid", SelectionInvalid.String())
}
