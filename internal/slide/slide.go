// Package slide builds the numbered teaching artifacts a session
// accumulates: one slide per teaching or welcome event.
package slide

import "unicode/utf8"

// contentPreviewLen bounds the short preview shown in turn results.
const contentPreviewLen = 300

// Slide is a persisted teaching artifact. Slides are append-only and
// never reordered; SlideNumber is stable once assigned and equals the
// slide's index in the session's slide list.
type Slide struct {
	SlideNumber       int      `json:"slide_number"`
	Title             string   `json:"title"`
	Content           string   `json:"content"`
	FullContent       string   `json:"full_content"`
	Topic             string   `json:"topic"`
	KeyPoints         []string `json:"key_points,omitempty"`
	VisualDescription string   `json:"visual_description"`
	VisualType        string   `json:"visual_type"`
	VisualData        any      `json:"visual_data,omitempty"`
}

// preview truncates content to the preview length, cutting on a rune
// boundary so emoji-heavy content never yields an invalid UTF-8 tail.
func preview(content string) string {
	if content == "" {
		return "Content unavailable"
	}
	if len(content) <= contentPreviewLen {
		return content
	}
	cut := contentPreviewLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
