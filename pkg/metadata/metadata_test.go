package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"igreels/pkg/models"
)

func TestHashtagsAndMentions(t *testing.T) {
	caption := "Launch day! #NASA #Artemis #nasa with @JPL and @esa. cc @jpl"

	assert.Equal(t, []string{"nasa", "artemis"}, Hashtags(caption))
	assert.Equal(t, []string{"jpl", "esa"}, Mentions(caption))
	assert.Nil(t, Hashtags("no tags here"))
	assert.Nil(t, Mentions(""))
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-01T12:30:00.000Z", "2024-03-01T12:30:00Z"},
		{"2024-03-01T14:30:00+02:00", "2024-03-01T12:30:00Z"},
		{"2024-03-01T12:30:00+0000", "2024-03-01T12:30:00Z"},
		{"2024-03-01", "2024-03-01T00:00:00Z"},
		{"1709296200", "2024-03-01T12:30:00Z"},
		{"  March 1  ", "March 1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.in))
		})
	}
}

func TestParseDateRejectsEmpty(t *testing.T) {
	_, ok := ParseDate(" ")
	assert.False(t, ok)
}

func TestFromPostDetail(t *testing.T) {
	d := models.PostDetail{
		Shortcode: "abc",
		URL:       "https://www.instagram.com/reel/abc/",
		IsVideo:   models.BoolPtr(true),
		Type:      models.StringPtr("Reel"),
		Date:      models.StringPtr("2024-03-01T12:30:00Z"),
		Caption:   models.StringPtr("Moon\nrocks #space @nasa"),
	}
	m := FromPostDetail(d)
	assert.True(t, m.IsVideo)
	assert.Equal(t, "Reel", m.Type)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), m.PublishedAt)
	assert.Equal(t, []string{"space"}, m.Hashtags)
	assert.Equal(t, []string{"nasa"}, m.Mentions)
	assert.Equal(t, "Moon rocks...", m.FormattedCaption(13))

	failed := FromPostDetail(models.FailedPostDetail(models.PostRef{Shortcode: "x"}))
	assert.True(t, failed.Failed)
	assert.True(t, failed.PublishedAt.IsZero())
	assert.Empty(t, failed.Caption)
}

func TestTruncateRuneSafe(t *testing.T) {
	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "hé...", Truncate("héllo wörld", 5))
}
