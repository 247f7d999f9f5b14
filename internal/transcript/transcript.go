// Package transcript retrieves YouTube video transcripts and compacts them
// for prompting.
package transcript

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoTranscript is returned when a video has no retrievable transcript.
var ErrNoTranscript = errors.New("no transcript found")

const (
	defaultTimedTextURL = "https://video.google.com/timedtext"
	defaultTimeout      = 15 * time.Second
)

// Segment is one transcript line with its start offset in seconds.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
}

// Client fetches transcripts from YouTube's timedtext endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a transcript client.
func NewClient() *Client {
	return &Client{
		baseURL:    defaultTimedTextURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// NewClientWithOptions creates a transcript client with a custom endpoint
// and timeout.
func NewClientWithOptions(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultTimedTextURL
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type timedTextDoc struct {
	XMLName xml.Name        `xml:"transcript"`
	Texts   []timedTextLine `xml:"text"`
}

type timedTextLine struct {
	Start float64 `xml:"start,attr"`
	Dur   float64 `xml:"dur,attr"`
	Body  string  `xml:",chardata"`
}

// Fetch retrieves the English transcript for a video as an ordered sequence
// of segments. ErrNoTranscript when the video has none.
func (c *Client) Fetch(ctx context.Context, videoID string) ([]Segment, error) {
	q := url.Values{}
	q.Set("lang", "en")
	q.Set("v", videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcript request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoTranscript
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	if len(body) == 0 {
		return nil, ErrNoTranscript
	}

	var doc timedTextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	if len(doc.Texts) == 0 {
		return nil, ErrNoTranscript
	}

	segments := make([]Segment, 0, len(doc.Texts))
	for _, line := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(line.Body))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Text: text, Start: line.Start})
	}
	if len(segments) == 0 {
		return nil, ErrNoTranscript
	}
	return segments, nil
}
