package models

import (
	"fmt"
	"strconv"
	"time"
)

// PostKind is the type tag of a post as presented by the grid.
type PostKind string

const (
	KindReel PostKind = "Reel"
	KindPost PostKind = "Post"
)

// Credentials are supplied once per process and never persisted.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether either half of the credentials is missing.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// String masks the password so credentials are safe to log.
func (c Credentials) String() string {
	if c.Password == "" {
		return c.Username
	}
	return c.Username + ":****"
}

// SessionCookie is a single browser cookie. Field names follow the
// DevTools cookie JSON so exported cookie lists load unchanged.
type SessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Session reports whether the cookie has no expiry.
func (c SessionCookie) Session() bool {
	return c.Expires <= 0
}

// Expired reports whether a persistent cookie has expired at t.
func (c SessionCookie) Expired(t time.Time) bool {
	if c.Session() {
		return false
	}
	return float64(t.Unix()) >= c.Expires
}

// CookieSet is the persisted session state.
type CookieSet struct {
	Cookies []SessionCookie `json:"cookies"`
	SavedAt time.Time       `json:"saved_at"`
}

// Get returns the named cookie.
func (s *CookieSet) Get(name string) (SessionCookie, bool) {
	if s == nil {
		return SessionCookie{}, false
	}
	for _, c := range s.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return SessionCookie{}, false
}

// Len returns the number of cookies, tolerating a nil set.
func (s *CookieSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Cookies)
}

// Stale reports whether the set was saved longer than maxAge ago.
// A zero SavedAt or non-positive maxAge is never stale.
func (s *CookieSet) Stale(now time.Time, maxAge time.Duration) bool {
	if s == nil || s.SavedAt.IsZero() || maxAge <= 0 {
		return false
	}
	return now.Sub(s.SavedAt) > maxAge
}

// Equal compares name/value pairs in order.
func (s *CookieSet) Equal(other *CookieSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i := range s.Cookies {
		if s.Cookies[i].Name != other.Cookies[i].Name || s.Cookies[i].Value != other.Cookies[i].Value {
			return false
		}
	}
	return true
}

// ProxyConfig describes the proxy a browser is launched behind. It
// deliberately carries no credentials.
type ProxyConfig struct {
	Scheme string `json:"scheme" yaml:"scheme"`
	Host   string `json:"host" yaml:"host"`
	Port   int    `json:"port" yaml:"port"`
	// AuthUnsupported is set when the source address carried credentials
	// that were dropped.
	AuthUnsupported bool `json:"auth_unsupported,omitempty" yaml:"-"`
}

// Address returns scheme://host:port.
func (p ProxyConfig) Address() string {
	return fmt.Sprintf("%s://%s", p.Scheme, p.HostPort())
}

// HostPort returns host:port.
func (p ProxyConfig) HostPort() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// PostRef identifies one discovered post.
type PostRef struct {
	Shortcode string   `json:"shortcode"`
	URL       string   `json:"url"`
	Kind      PostKind `json:"kind"`
}

// PostDetail is the extracted metadata of one post. Content fields are
// nil when they could not be extracted.
type PostDetail struct {
	Shortcode       string  `json:"shortcode"`
	URL             string  `json:"url"`
	IsVideo         *bool   `json:"is_video"`
	Type            *string `json:"type"`
	Date            *string `json:"date"`
	Caption         *string `json:"caption"`
	ExtractionError bool    `json:"extraction_error,omitempty"`
}

// NewPostDetail starts a detail from the ref that produced it.
func NewPostDetail(ref PostRef) PostDetail {
	return PostDetail{Shortcode: ref.Shortcode, URL: ref.URL}
}

// FailedPostDetail returns a detail with every content field cleared and the
// error flag set.
func FailedPostDetail(ref PostRef) PostDetail {
	d := NewPostDetail(ref)
	d.ExtractionError = true
	return d
}

// HasContent reports whether caption or date was extracted.
func (d PostDetail) HasContent() bool {
	return d.Caption != nil || d.Date != nil
}

// CaptionText returns the caption or an empty string.
func (d PostDetail) CaptionText() string {
	if d.Caption == nil {
		return ""
	}
	return *d.Caption
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }
