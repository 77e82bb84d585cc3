package instagram

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// AccountList sanitises usernames, drops duplicates and keeps first-seen
// order. Invalid entries are returned separately.
func AccountList(raw []string) (accounts, invalid []string) {
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		name := SanitizeUsername(r)
		if name == "" {
			continue
		}
		if !IsValidUsername(name) {
			invalid = append(invalid, strings.TrimSpace(r))
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		accounts = append(accounts, name)
	}
	return accounts, invalid
}

// ReadAccounts reads one username per line. Blank lines and lines
// starting with # are skipped.
func ReadAccounts(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	return lines, nil
}

// ReadAccountsFile is ReadAccounts on a file
func ReadAccountsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()
	return ReadAccounts(f)
}
