package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

func TestParseCPUList(t *testing.T) {
	tests := []struct {
		input    string
		expected []int
	}{
		{"", nil},
		{"  \n", nil},
		{"0", []int{0}},
		{"0-3", []int{0, 1, 2, 3}},
		{"0-7,16", []int{0, 1, 2, 3, 4, 5, 6, 7, 16}},
		{"8-9,0-1\n", []int{0, 1, 8, 9}},
		{"2,2,1-2", []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ids, err := ParseCPUList(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestParseCPUList_Invalid(t *testing.T) {
	for _, input := range []string{"a", "3-1", "1-x", "-1"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseCPUList(input)
			require.Error(t, err)
			assert.True(t, apperrors.IsTopologyError(err))
		})
	}
}
