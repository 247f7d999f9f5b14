package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompact_MergesWithinGap(t *testing.T) {
	segments := []Segment{
		{Text: "hello", Start: 0},
		{Text: "world", Start: 3},
	}

	entries := Compact(segments, DefaultMergeGap)
	require.Len(t, entries, 1, "segments 3s apart merge into one entry")
	assert.Equal(t, "hello world", entries[0].Text)
	assert.Equal(t, "00:00", entries[0].Timestamp)
}

func TestCompact_SplitsBeyondGap(t *testing.T) {
	segments := []Segment{
		{Text: "hello", Start: 0},
		{Text: "world", Start: 10},
	}

	entries := Compact(segments, DefaultMergeGap)
	require.Len(t, entries, 2, "segments 10s apart remain separate")
	assert.Equal(t, "hello", entries[0].Text)
	assert.Equal(t, "world", entries[1].Text)
	assert.Equal(t, "00:10", entries[1].Timestamp)
}

func TestCompact_ChainsUseAdjacentGaps(t *testing.T) {
	// Each segment is within the gap of its neighbor, so the whole run
	// collapses even though the first and last are far apart.
	segments := []Segment{
		{Text: "a", Start: 0},
		{Text: "b", Start: 4},
		{Text: "c", Start: 8},
	}

	entries := Compact(segments, DefaultMergeGap)
	require.Len(t, entries, 1)
	assert.Equal(t, "a b c", entries[0].Text)
	assert.Equal(t, float64(0), entries[0].Start)
}

func TestCompact_Empty(t *testing.T) {
	assert.Nil(t, Compact(nil, DefaultMergeGap))
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{61.4, "01:01"},
		{1799, "29:59"},
		{3600, "01:00:00"},
		{3725, "01:02:05"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimestamp(tt.seconds))
	}
}
