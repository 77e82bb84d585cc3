package auth

import (
	"fmt"
	"io"
	"strings"

	"igreels/pkg/config"
)

// WriteCookieGuide prints how to export session cookies from a desktop
// browser so a run can skip the login form.
func WriteCookieGuide(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "EXPORTING INSTAGRAM SESSION COOKIES")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Log in at https://www.instagram.com in a desktop browser.")
	fmt.Fprintln(w, "2. Open Developer Tools (F12) and go to Application > Cookies.")
	fmt.Fprintln(w, "   Firefox calls this Storage > Cookies.")
	fmt.Fprintln(w, "3. Export the cookies for instagram.com as a JSON list. Any")
	fmt.Fprintln(w, "   cookie-export extension that writes name/value/domain works.")
	fmt.Fprintln(w, "   The list must contain the 'sessionid' cookie.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Then either:")
	fmt.Fprintln(w, "   igreels auth import --username <you> cookies.json")
	fmt.Fprintln(w, "or set the list directly in the environment:")
	fmt.Fprintf(w, "   export %s='[{\"name\":\"sessionid\",\"value\":\"...\",\"domain\":\".instagram.com\"}]'\n",
		config.EnvSessionCookies)
	fmt.Fprintln(w, "A session saved by a later login takes precedence over the variable.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Session cookies are as good as a password. Keep the file private")
	fmt.Fprintln(w, "and delete it after importing.")
	fmt.Fprintln(w, line)
}
