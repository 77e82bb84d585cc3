package session

// State is a step of session establishment.
type State int

const (
	Unauthenticated State = iota
	CookiesLoaded
	Verifying
	AwaitingTwoFactor
	Authenticated
	LoginFailed
	TwoFactorFailed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case CookiesLoaded:
		return "cookies_loaded"
	case Verifying:
		return "verifying"
	case AwaitingTwoFactor:
		return "awaiting_two_factor"
	case Authenticated:
		return "authenticated"
	case LoginFailed:
		return "login_failed"
	case TwoFactorFailed:
		return "two_factor_failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Authenticated || s == LoginFailed || s == TwoFactorFailed
}
