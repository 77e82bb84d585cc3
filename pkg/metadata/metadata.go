// Package metadata derives secondary facts from extracted post fields:
// hashtags and mentions in captions, and normalised timestamps.
package metadata

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"igreels/pkg/models"
)

// PostMetadata is a PostDetail with its caption analysed and its date
// parsed.
type PostMetadata struct {
	Shortcode   string    `json:"shortcode"`
	URL         string    `json:"url"`
	IsVideo     bool      `json:"is_video"`
	Type        string    `json:"type,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Hashtags    []string  `json:"hashtags,omitempty"`
	Mentions    []string  `json:"mentions,omitempty"`
	Failed      bool      `json:"failed,omitempty"`
}

// FromPostDetail analyses one extracted post.
func FromPostDetail(d models.PostDetail) *PostMetadata {
	meta := &PostMetadata{
		Shortcode: d.Shortcode,
		URL:       d.URL,
		Failed:    d.ExtractionError,
		Caption:   d.CaptionText(),
	}
	if d.IsVideo != nil {
		meta.IsVideo = *d.IsVideo
	}
	if d.Type != nil {
		meta.Type = *d.Type
	}
	if d.Date != nil {
		if t, ok := ParseDate(*d.Date); ok {
			meta.PublishedAt = t
		}
	}
	meta.Hashtags = Hashtags(meta.Caption)
	meta.Mentions = Mentions(meta.Caption)
	return meta
}

// FormattedCaption returns the caption on one line, truncated to
// maxLength runes.
func (m *PostMetadata) FormattedCaption(maxLength int) string {
	return Truncate(strings.Join(strings.Fields(m.Caption), " "), maxLength)
}

// Truncate shortens s to maxLength runes, ending with "...".
func Truncate(s string, maxLength int) string {
	if maxLength <= 3 || utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLength-3]) + "..."
}

var (
	hashtagRe = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	mentionRe = regexp.MustCompile(`@([A-Za-z0-9._]+)`)
)

// Hashtags returns the distinct hashtags of a caption in order of first
// use, lowercased and without '#'.
func Hashtags(caption string) []string {
	return distinct(hashtagRe.FindAllStringSubmatch(caption, -1))
}

// Mentions returns the distinct mentioned usernames, lowercased and
// without '@'.
func Mentions(caption string) []string {
	matches := mentionRe.FindAllStringSubmatch(caption, -1)
	for _, m := range matches {
		m[1] = strings.TrimRight(m[1], ".")
	}
	return distinct(matches)
}

func distinct(matches [][]string) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		v := strings.ToLower(m[1])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate reads the timestamp forms found on post pages: ISO-8601
// variants and unix seconds.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

// NormalizeDate renders a parsed timestamp as RFC 3339 in UTC. Strings
// that do not parse are returned trimmed and unchanged.
func NormalizeDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	return t.Format(time.RFC3339)
}
