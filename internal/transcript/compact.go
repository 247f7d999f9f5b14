package transcript

import "fmt"

// DefaultMergeGap is the maximum gap, in seconds, between adjacent segments
// that still merge into one compacted entry.
const DefaultMergeGap = 5.0

// Entry is a compacted transcript line carrying a formatted timestamp.
type Entry struct {
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
	Start     float64 `json:"-"`
}

// Compact merges adjacent segments whose start offsets are within gap
// seconds of the previous segment, shrinking the prompt while keeping the
// first timestamp of each merged run.
func Compact(segments []Segment, gap float64) []Entry {
	if len(segments) == 0 {
		return nil
	}

	entries := make([]Entry, 0, len(segments))
	current := Entry{
		Text:      segments[0].Text,
		Timestamp: FormatTimestamp(segments[0].Start),
		Start:     segments[0].Start,
	}
	prevStart := segments[0].Start

	for _, seg := range segments[1:] {
		if seg.Start-prevStart < gap {
			current.Text += " " + seg.Text
		} else {
			entries = append(entries, current)
			current = Entry{
				Text:      seg.Text,
				Timestamp: FormatTimestamp(seg.Start),
				Start:     seg.Start,
			}
		}
		prevStart = seg.Start
	}
	return append(entries, current)
}

// FormatTimestamp renders a start offset as MM:SS, or HH:MM:SS beyond an
// hour.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
