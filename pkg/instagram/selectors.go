package instagram

// Selectors used against the Instagram web UI. They track markup that
// changes without notice, so they live in one place.

// LoggedInMarkers only render for an authenticated viewer.
var LoggedInMarkers = []string{
	`svg[aria-label="Home"]`,
	`a[href*="/direct/inbox/"]`,
	`a[href="/explore/"]`,
	`img[alt*="profile picture"]`,
}

// LoggedOutMarker is the login form's username field.
const LoggedOutMarker = `input[name="username"]`

// Login form.
const (
	UsernameInput = `input[name="username"]`
	PasswordInput = `input[name="password"]`
	SubmitButton  = `button[type="submit"]`
)

// LoginErrorMarkers appear when credentials are rejected.
var LoginErrorMarkers = []string{
	`#slfErrorAlert`,
	`p[data-testid="login-error-message"]`,
	`div[role="alert"]`,
}

// LoginErrorPhrases are matched case-insensitively in the page text.
var LoginErrorPhrases = []string{
	"password was incorrect",
	"incorrect password",
	"wrong password",
	"please check your username",
}

// Two-factor challenge.
var TwoFactorInputs = []string{
	`input[name="verificationCode"]`,
	`input[aria-label*="Security Code" i]`,
	`input[name="security_code"]`,
}

// TwoFactorPhrases are matched case-insensitively in the page text.
var TwoFactorPhrases = []string{
	"two-factor authentication",
	"verification code",
	"security code",
	"enter the code",
}

// TwoFactorConfirmButtons are tried in order after typing a code.
var TwoFactorConfirmButtons = []string{
	`//button[normalize-space()='Confirm']`,
	`//button[normalize-space()='Submit']`,
	`//button[normalize-space()='Next']`,
}

// TwoFactorRejectedPhrases indicate a wrong one-time code.
var TwoFactorRejectedPhrases = []string{
	"please check the security code",
	"code isn't valid",
	"code you entered",
}

// PostAnchors match links to posts and reels on a grid.
const PostAnchors = `a[href*="/reel/"], a[href*="/p/"]`

// Unavailable describes an account page that cannot be scraped.
type Unavailable struct {
	Phrase string
	Reason string
}

// UnavailablePages end discovery early when their phrase is on the page.
var UnavailablePages = []Unavailable{
	{Phrase: "This Account is Private", Reason: "account is private"},
	{Phrase: "Sorry, this page isn't available.", Reason: "page not available"},
}

// Detail page.
const (
	JSONLDScript = `script[type="application/ld+json"]`
	TimeElement  = `time[datetime]`
	VideoElement = `video`
	MainArticle  = `article, main`
)

// CaptionSelectors are tried in order by the DOM strategy.
var CaptionSelectors = []string{
	`h1`,
	`div._a9zs > span[dir="auto"]`,
	`article span[dir="auto"] > span`,
}
