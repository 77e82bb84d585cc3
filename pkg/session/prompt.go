package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// TwoFactorPrompter supplies one-time codes. attempt starts at 1.
type TwoFactorPrompter interface {
	PromptCode(ctx context.Context, username string, attempt int) (string, error)
}

// PromptFunc adapts a function to TwoFactorPrompter.
type PromptFunc func(ctx context.Context, username string, attempt int) (string, error)

func (f PromptFunc) PromptCode(ctx context.Context, username string, attempt int) (string, error) {
	return f(ctx, username, attempt)
}

// PasswordPrompter supplies the account password when credential login
// is needed and none was configured. Prompters passed to New may
// implement it alongside TwoFactorPrompter.
type PasswordPrompter interface {
	PromptPassword(ctx context.Context, username string) (string, error)
}

var (
	// ErrNoCode is returned when a prompter has no code to give.
	ErrNoCode = errors.New("no two-factor code available")
	// ErrNoPassword is returned when a prompter has no password to give.
	ErrNoPassword = errors.New("no password available")
)

// StaticPrompter returns fixed codes in order.
type StaticPrompter struct {
	mu            sync.Mutex
	codes         []string
	calls         int
	password      string
	passwordCalls int
}

// NewStaticPrompter returns codes in order, then ErrNoCode.
func NewStaticPrompter(codes ...string) *StaticPrompter {
	return &StaticPrompter{codes: codes}
}

func (p *StaticPrompter) PromptCode(ctx context.Context, username string, attempt int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.codes) == 0 {
		return "", ErrNoCode
	}
	code := p.codes[0]
	p.codes = p.codes[1:]
	return code, nil
}

// WithPassword makes the prompter answer password requests with pw.
func (p *StaticPrompter) WithPassword(pw string) *StaticPrompter {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.password = pw
	return p
}

func (p *StaticPrompter) PromptPassword(ctx context.Context, username string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwordCalls++
	if p.password == "" {
		return "", ErrNoPassword
	}
	return p.password, nil
}

// PasswordCalls returns how many times the password was requested.
func (p *StaticPrompter) PasswordCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passwordCalls
}

// Calls returns how many codes were requested.
func (p *StaticPrompter) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// TerminalPrompter asks the operator for codes and, when needed, the
// password. There is no timeout; only ctx cancellation ends the wait.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter prompts on stdin/stderr.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) PromptCode(ctx context.Context, username string, attempt int) (string, error) {
	label := fmt.Sprintf("Two-factor code for @%s", username)
	if attempt > 1 {
		label += fmt.Sprintf(" (attempt %d)", attempt)
	}
	code, err := ReadLine(ctx, p.In, p.Out, label+": ", false)
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", ErrNoCode
	}
	return code, nil
}

// PromptPassword reads the password without echo.
func (p *TerminalPrompter) PromptPassword(ctx context.Context, username string) (string, error) {
	pw, err := ReadLine(ctx, p.In, p.Out, fmt.Sprintf("Password for @%s: ", username), true)
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", ErrNoPassword
	}
	return pw, nil
}

// ReadLine prompts on out and reads one line from in. When hidden and in
// is a terminal, echo is disabled.
func ReadLine(ctx context.Context, in *os.File, out io.Writer, prompt string, hidden bool) (string, error) {
	fmt.Fprint(out, prompt)

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		fd := int(in.Fd())
		if hidden && term.IsTerminal(fd) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			done <- result{string(b), err}
			return
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		done <- result{line, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("read input: %w", r.err)
		}
		return strings.TrimSpace(r.line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
