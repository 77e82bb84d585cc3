package auth

import (
	"bytes"
	"encoding/json"
	"fmt"

	"igreels/pkg/models"
)

// exportedCookie accepts both DevTools and browser-extension exports.
type exportedCookie struct {
	models.SessionCookie
	ExpirationDate float64 `json:"expirationDate"`
	Session        bool    `json:"session"`
}

// ParseCookies decodes a cookie list. A bare JSON array and an object
// with a "cookies" array are both accepted.
func ParseCookies(data []byte) ([]models.SessionCookie, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []exportedCookie
	if data[0] == '{' {
		var wrapped struct {
			Cookies []exportedCookie `json:"cookies"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("invalid cookie JSON: %w", err)
		}
		raw = wrapped.Cookies
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid cookie JSON: %w", err)
	}

	out := make([]models.SessionCookie, 0, len(raw))
	for i, c := range raw {
		if c.Name == "" {
			return nil, fmt.Errorf("cookie %d has no name", i)
		}
		sc := c.SessionCookie
		if sc.Expires <= 0 && c.ExpirationDate > 0 {
			sc.Expires = c.ExpirationDate
		}
		if c.Session {
			sc.Expires = 0
		}
		sc.SameSite = normalizeSameSite(sc.SameSite)
		out = append(out, sc)
	}
	return out, nil
}

// normalizeSameSite maps extension spellings onto DevTools values.
func normalizeSameSite(s string) string {
	switch s {
	case "lax", "Lax":
		return "Lax"
	case "strict", "Strict":
		return "Strict"
	case "no_restriction", "none", "None":
		return "None"
	default:
		return ""
	}
}
