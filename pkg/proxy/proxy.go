// Package proxy parses browser proxy addresses and rotates through a list
// of them between browser launches.
package proxy

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"igreels/pkg/logger"
	"igreels/pkg/models"
)

var defaultPorts = map[string]int{
	"http":   80,
	"https":  443,
	"socks4": 1080,
	"socks5": 1080,
}

// Parse reads scheme://host:port. A bare host:port is taken as http.
// Credentials are not supported by the browser launcher; they are dropped
// and AuthUnsupported is set.
func Parse(raw string) (*models.ProxyConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty proxy address")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	port, known := defaultPorts[scheme]
	if !known {
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("proxy %q has no host", raw)
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("proxy %q has invalid port", raw)
		}
	}

	return &models.ProxyConfig{
		Scheme:          scheme,
		Host:            host,
		Port:            port,
		AuthUnsupported: u.User != nil,
	}, nil
}

// Redact hides credentials in a proxy address for logging.
func Redact(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("redacted")
	return u.String()
}

// Rotator hands out proxies round-robin, skipping those marked failed.
type Rotator struct {
	mu      sync.Mutex
	proxies []models.ProxyConfig
	failed  map[string]bool
	next    int
}

// NewRotator builds a rotator over proxies in the given order.
func NewRotator(proxies []models.ProxyConfig) *Rotator {
	return &Rotator{
		proxies: proxies,
		failed:  make(map[string]bool),
	}
}

// LoadFile reads one proxy per line. Blank lines, duplicates and lines
// starting with # are skipped; unparsable lines are logged and skipped.
func LoadFile(path string, log logger.Logger) (*Rotator, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open proxy list: %w", err)
	}
	defer f.Close()

	var (
		proxies []models.ProxyConfig
		seen    = make(map[string]bool)
		lineNo  int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := Parse(line)
		if err != nil {
			log.WarnWithFields("Skipping proxy line", map[string]interface{}{
				"file":  path,
				"line":  lineNo,
				"error": err.Error(),
			})
			continue
		}
		if p.AuthUnsupported {
			log.WarnWithFields("Proxy credentials are not supported, using address only", map[string]interface{}{
				"proxy": p.Address(),
			})
		}
		if seen[p.Address()] {
			continue
		}
		seen[p.Address()] = true
		proxies = append(proxies, *p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read proxy list: %w", err)
	}
	if len(proxies) == 0 {
		return nil, fmt.Errorf("proxy list %s has no usable entries", path)
	}

	log.InfoWithFields("Proxy rotation enabled", map[string]interface{}{
		"file":    path,
		"proxies": len(proxies),
	})
	return NewRotator(proxies), nil
}

// Next returns the next healthy proxy, or false when all have failed.
func (r *Rotator) Next() (models.ProxyConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < len(r.proxies); i++ {
		p := r.proxies[r.next]
		r.next = (r.next + 1) % len(r.proxies)
		if !r.failed[p.Address()] {
			return p, true
		}
	}
	return models.ProxyConfig{}, false
}

// MarkFailed removes p from rotation.
func (r *Rotator) MarkFailed(p models.ProxyConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[p.Address()] = true
}

// Healthy returns the number of proxies not marked failed.
func (r *Rotator) Healthy() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies) - len(r.failed)
}

// Len returns the number of proxies in rotation
func (r *Rotator) Len() int {
	return len(r.proxies)
}

