package instagram

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igreels/pkg/models"
)

func TestGridURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/nasa/reels/", GridURL("nasa", GridReels))
	assert.Equal(t, "https://www.instagram.com/nasa/", GridURL("nasa", GridPosts))
	assert.Equal(t, "", GridURL("", GridReels))
}

func TestGetPostURL(t *testing.T) {
	tests := []struct {
		name      string
		shortcode string
		kind      models.PostKind
		expected  string
	}{
		{"reel", "C8xYz_1-a", models.KindReel, "https://www.instagram.com/reel/C8xYz_1-a/"},
		{"post", "B123", models.KindPost, "https://www.instagram.com/p/B123/"},
		{"empty", "", models.KindPost, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetPostURL(tt.shortcode, tt.kind)
			assert.Equal(t, tt.expected, got)
			if got != "" {
				_, err := url.Parse(got)
				assert.NoError(t, err)
			}
		})
	}
}

func TestParsePostRef(t *testing.T) {
	tests := []struct {
		name string
		href string
		ok   bool
		code string
		kind models.PostKind
		url  string
	}{
		{"relative reel", "/reel/C1abc/", true, "C1abc", models.KindReel, "https://www.instagram.com/reel/C1abc/"},
		{"absolute post with query", "https://www.instagram.com/p/B2x_y-z/?utm_source=ig_web", true, "B2x_y-z", models.KindPost, "https://www.instagram.com/p/B2x_y-z/"},
		{"owner prefixed reel", "/nasa/reel/C3/", true, "C3", models.KindReel, "https://www.instagram.com/reel/C3/"},
		{"fragment", "/p/D4/#comments", true, "D4", models.KindPost, "https://www.instagram.com/p/D4/"},
		{"profile link", "/nasa/", false, "", "", ""},
		{"explore", "/explore/", false, "", "", ""},
		{"foreign host", "https://example.com/p/X1/", false, "", "", ""},
		{"empty", "", false, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := ParsePostRef(tt.href)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.code, ref.Shortcode)
			assert.Equal(t, tt.kind, ref.Kind)
			assert.Equal(t, tt.url, ref.URL)
		})
	}
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"nasa", true},
		{"natgeo_travel", true},
		{"user.name", true},
		{"User123", true},
		{"", false},
		{"user name", false},
		{"user@name", false},
		{"user-name", false},
		{".leading", false},
		{"trailing.", false},
		{"dou..ble", false},
		{"abcdefghijklmnopqrstuvwxyz12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidUsername(tt.username))
		})
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"@nasa", "nasa"},
		{"  NASA  ", "nasa"},
		{"nasa/", "nasa"},
		{"https://www.instagram.com/nasa/", "nasa"},
		{"https://www.instagram.com/nasa/reels/", "nasa"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeUsername(tt.input))
		})
	}
}

func TestURLClassifiers(t *testing.T) {
	assert.True(t, IsLoginURL(LoginURL))
	assert.False(t, IsLoginURL(HomeURL()))
	assert.True(t, IsChallengeURL("https://www.instagram.com/challenge/action/"))
	assert.False(t, IsChallengeURL(HomeURL()))
}
