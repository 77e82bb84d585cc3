package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType classifies failures of the session and extraction engine
type ErrorType string

const (
	ErrorTypeLaunch             ErrorType = "launch"
	ErrorTypeNavigationTimeout  ErrorType = "navigation_timeout"
	ErrorTypeNavigation         ErrorType = "navigation"
	ErrorTypeLoginFailed        ErrorType = "login_failed"
	ErrorTypeTwoFactorFailed    ErrorType = "two_factor_failed"
	ErrorTypeExtraction         ErrorType = "extraction"
	ErrorTypeRateLimitSuspected ErrorType = "rate_limit_suspected"
	ErrorTypeAccountUnavailable ErrorType = "account_unavailable"
	ErrorTypeConfiguration      ErrorType = "configuration"
	ErrorTypeStorage            ErrorType = "storage"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// Error is a classified error with optional account and post context
type Error struct {
	Type      ErrorType
	Message   string
	Account   string
	Shortcode string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Account != "" {
		b.WriteString(" [" + e.Account)
		if e.Shortcode != "" {
			b.WriteString("/" + e.Shortcode)
		}
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Newf creates a classified error with a formatted message
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error
func Wrap(t ErrorType, msg string, err error) *Error {
	return &Error{Type: t, Message: msg, Err: err}
}

// ForAccount returns a copy of e carrying account context
func (e *Error) ForAccount(account string) *Error {
	c := *e
	c.Account = account
	return &c
}

// ForPost returns a copy of e carrying account and post context
func (e *Error) ForPost(account, shortcode string) *Error {
	c := *e
	c.Account = account
	c.Shortcode = shortcode
	return &c
}

// TypeOf returns the classification of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err is classified as t anywhere in its chain
func Is(err error, t ErrorType) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
}

// IsFatal checks if an error type must abort the whole run
func IsFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeLaunch, ErrorTypeLoginFailed, ErrorTypeTwoFactorFailed, ErrorTypeConfiguration:
		return true
	default:
		return false
	}
}

// IsRetryable checks if an error type should be retried at the call site
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigationTimeout:
		return true
	default:
		return false
	}
}

// Fatal reports whether err carries a fatal classification
func Fatal(err error) bool {
	return err != nil && IsFatal(TypeOf(err))
}

// Retryable reports whether err carries a retryable classification
func Retryable(err error) bool {
	return err != nil && IsRetryable(TypeOf(err))
}
