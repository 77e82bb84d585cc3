package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ScrapeResult maps each attempted account to its post details. Keys
// keep the order in which accounts were added, and that order is
// preserved when serialised.
type ScrapeResult struct {
	order []string
	posts map[string][]PostDetail
}

// NewScrapeResult returns an empty result.
func NewScrapeResult() *ScrapeResult {
	return &ScrapeResult{posts: make(map[string][]PostDetail)}
}

// AddAccount registers an account with no posts. Registering an
// account twice keeps its original position.
func (r *ScrapeResult) AddAccount(username string) {
	if _, ok := r.posts[username]; ok {
		return
	}
	r.order = append(r.order, username)
	r.posts[username] = []PostDetail{}
}

// Append adds a detail to the account, registering it if needed.
func (r *ScrapeResult) Append(username string, detail PostDetail) {
	r.AddAccount(username)
	r.posts[username] = append(r.posts[username], detail)
}

// SetPosts replaces the details of an account.
func (r *ScrapeResult) SetPosts(username string, details []PostDetail) {
	r.AddAccount(username)
	if details == nil {
		details = []PostDetail{}
	}
	r.posts[username] = details
}

// Accounts returns account names in insertion order.
func (r *ScrapeResult) Accounts() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Posts returns the details recorded for username.
func (r *ScrapeResult) Posts(username string) ([]PostDetail, bool) {
	p, ok := r.posts[username]
	return p, ok
}

// Len returns the number of accounts.
func (r *ScrapeResult) Len() int {
	return len(r.order)
}

// Totals returns the number of posts and the number flagged as failed.
func (r *ScrapeResult) Totals() (posts, failed int) {
	for _, details := range r.posts {
		posts += len(details)
		for _, d := range details {
			if d.ExtractionError {
				failed++
			}
		}
	}
	return posts, failed
}

// MarshalJSON writes an object keyed by username in insertion order.
func (r *ScrapeResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.posts[name])
		if err != nil {
			return nil, fmt.Errorf("marshal posts for %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keyed by username, keeping key order.
func (r *ScrapeResult) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("scrape result: expected object")
	}
	r.order = nil
	r.posts = make(map[string][]PostDetail)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("scrape result: expected account key")
		}
		var details []PostDetail
		if err := dec.Decode(&details); err != nil {
			return fmt.Errorf("decode posts for %s: %w", name, err)
		}
		r.SetPosts(name, details)
	}
	_, err = dec.Token()
	return err
}
