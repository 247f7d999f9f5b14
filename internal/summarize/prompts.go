package summarize

import (
	"bytes"
	"text/template"

	"github.com/kwan772/Youtube-TLDR/internal/transcript"
)

// shortFormThreshold is the final-timestamp cutoff, in seconds, below which
// the short-form prompt is used.
const shortFormThreshold = 1800.0

// systemPrompt frames the model for tooltip-sized transcript summaries.
const systemPrompt = "You are an AI assistant tasked with summarizing YouTube video transcripts " +
	"for display in a very small space (like a tooltip). The goal is maximum scannability and " +
	"quick understanding, accurately reflecting the breadth and full duration of the video's content."

// ShortFormPrompt targets videos under 30 minutes.
const ShortFormPrompt = `Video Transcript:
{{range .Entries}}[{{.Timestamp}}] {{.Text}}
{{end}}
Task:
Analyze the provided transcript and generate an extremely concise summary.

Identify the single core topic or finding for the Main Point.

Select 4 to 6 distinct, highly important key moments for the Highlights.

CRITICAL REQUIREMENT: These highlights MUST be drawn from different sections of the video to represent its entire progression. Actively search for significant moments in the beginning, middle (approx. 30-70% mark), and end (final ~20-30%) of the transcript. Do NOT cluster highlights only at the start.

Exclude all filler, introductions, greetings, sponsor messages, calls to action, and outro remarks. Focus only on substantive content.

Output Format:

💡 Main Point:
[One extremely concise sentence (max 15 words) summarizing the video's core topic or finding.]

⏱️ Highlights:
[List 4 to 6 key moments. Each MUST have a starting timestamp ` + "`[MM:SS]`" + ` and a very brief description (max ~7-10 words). Ensure timestamps demonstrate significant progression throughout the entire video.]

Tone: Highly economical, factual, and neutral. Prioritize extreme brevity for each highlight description.`

// LongFormPrompt targets videos of 30 minutes and beyond, demanding highlight
// coverage through to the final sections.
const LongFormPrompt = `Video Transcript:
{{range .Entries}}[{{.Timestamp}}] {{.Text}}
{{end}}
Task:
Analyze the provided transcript and generate an extremely concise summary.

1. Identify the single core theme or overarching topic for the Main Point.
2. Select distinct, highly important key moments or major topic shifts for the Highlights, scaled to the video's length and density: 4-6 for under 45 minutes, 6-10 for 45 minutes to 2 hours, 8-12 for longer content. Prioritize significance; do not add filler points.
3. CRITICAL AND NON-NEGOTIABLE: Highlights MUST be strategically distributed to represent the ENTIRE video duration, from the beginning right through to the concluding sections. For content longer than 90 minutes, include significant points from the final hour or final major topic discussed, no matter how late it occurs in the transcript. Actively fight timestamp clustering.
4. Exclude all filler, extended pleasantries, intros, sponsor messages, calls to action, and outro remarks.

Output Format:

💡 Main Point:
[One extremely concise sentence (max 15 words) summarizing the video's core theme.]

⏱️ Highlights:
[List 4 to 15 key moments. Each MUST have a starting timestamp ` + "`[HH:MM:SS]`" + ` (preferred for >1hr) or ` + "`[MM:SS]`" + ` and a very brief description (max ~7-10 words). Ensure timestamps cover the full duration, with representation from the final segments.]

Tone: Highly economical, factual, and neutral. Verify the last highlight timestamp reflects content near the actual end.`

var (
	shortFormTemplate = template.Must(template.New("short").Parse(ShortFormPrompt))
	longFormTemplate  = template.Must(template.New("long").Parse(LongFormPrompt))
)

type promptData struct {
	Entries []transcript.Entry
}

// RenderPrompt renders the prompt for a compacted transcript, picking the
// short or long form based on the final segment's start offset.
func RenderPrompt(entries []transcript.Entry, lastStart float64) (string, error) {
	tmpl := longFormTemplate
	if lastStart < shortFormThreshold {
		tmpl = shortFormTemplate
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, promptData{Entries: entries}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
