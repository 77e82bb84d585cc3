package instagram

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"igreels/pkg/models"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// LoginURL hosts the credential form
	LoginURL = BaseURL + "/accounts/login/"

	// MaxUsernameLength is the longest username Instagram accepts
	MaxUsernameLength = 30
)

// Grid selects which post grid of a profile is scrolled.
type Grid string

const (
	GridReels Grid = "reels"
	GridPosts Grid = "posts"
)

var (
	// postPathRe matches /p/<code> and /reel/<code>, optionally prefixed
	// by the owner's username.
	postPathRe = regexp.MustCompile(`/(p|reel|reels|tv)/([A-Za-z0-9_-]+)`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9._]+$`)
)

// HomeURL is the page used to verify a session
func HomeURL() string {
	return BaseURL + "/"
}

// GridURL constructs the URL of a profile's post grid
func GridURL(username string, grid Grid) string {
	if username == "" {
		return ""
	}
	if grid == GridReels {
		return fmt.Sprintf("%s/%s/reels/", BaseURL, username)
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// GetPostURL constructs the canonical URL for a post of the given kind
func GetPostURL(shortcode string, kind models.PostKind) string {
	if shortcode == "" {
		return ""
	}
	if kind == models.KindReel {
		return fmt.Sprintf("%s/reel/%s/", BaseURL, shortcode)
	}
	return fmt.Sprintf("%s/p/%s/", BaseURL, shortcode)
}

// GetUserProfileURL constructs the public profile URL for a user
func GetUserProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// ParsePostRef turns a post anchor href, absolute or relative, into a
// PostRef. Query strings and fragments are ignored.
func ParsePostRef(href string) (models.PostRef, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return models.PostRef{}, false
	}
	if u, err := url.Parse(href); err == nil {
		if u.Host != "" && !strings.HasSuffix(u.Hostname(), "instagram.com") {
			return models.PostRef{}, false
		}
		href = u.Path
	}

	m := postPathRe.FindStringSubmatch(href)
	if m == nil {
		return models.PostRef{}, false
	}

	kind := models.KindPost
	if m[1] == "reel" || m[1] == "reels" {
		kind = models.KindReel
	}
	return models.PostRef{
		Shortcode: m[2],
		URL:       GetPostURL(m[2], kind),
		Kind:      kind,
	}, true
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > MaxUsernameLength {
		return false
	}
	if strings.HasPrefix(username, ".") || strings.HasSuffix(username, ".") || strings.Contains(username, "..") {
		return false
	}
	return usernameRe.MatchString(username)
}

// SanitizeUsername normalises user input: a leading @, surrounding
// whitespace and profile URLs are accepted.
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return ""
	}

	if strings.Contains(username, "instagram.com/") {
		if u, err := url.Parse(username); err == nil && u.Path != "" {
			username = strings.Trim(u.Path, "/")
			if i := strings.Index(username, "/"); i >= 0 {
				username = username[:i]
			}
		}
	}

	username = strings.TrimPrefix(username, "@")
	username = strings.TrimRight(username, "/ ")
	return strings.ToLower(username)
}

// IsLoginURL reports whether u is on the login form
func IsLoginURL(u string) bool {
	return strings.Contains(u, "/accounts/login")
}

// IsChallengeURL reports whether u is a checkpoint or challenge page
func IsChallengeURL(u string) bool {
	return strings.Contains(u, "/challenge") || strings.Contains(u, "/checkpoint")
}
