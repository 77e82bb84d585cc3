package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// ASCIILogo is printed by the CLI banner.
const ASCIILogo = `
  ██╗ ██████╗ ██████╗ ███████╗███████╗██╗     ███████╗
  ██║██╔════╝ ██╔══██╗██╔════╝██╔════╝██║     ██╔════╝
  ██║██║  ███╗██████╔╝█████╗  █████╗  ██║     ███████╗
  ██║██║   ██║██╔══██╗██╔══╝  ██╔══╝  ██║     ╚════██║
  ██║╚██████╔╝██║  ██║███████╗███████╗███████╗███████║
  ╚═╝ ╚═════╝ ╚═╝  ╚═╝╚══════╝╚══════╝╚══════╝╚══════╝
        reel metadata extraction engine
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var quiet atomic.Bool

// SetQuietMode suppresses the Print helpers. Errors are still printed.
func SetQuietMode(q bool) {
	quiet.Store(q)
}

// Quiet reports whether quiet mode is on.
func Quiet() bool {
	return quiet.Load()
}

func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

func out() io.Writer {
	return os.Stdout
}

// PrintLogo prints the banner
func PrintLogo() {
	if Quiet() {
		return
	}
	fmt.Fprint(out(), Cyan(ASCIILogo))
}

// PrintError prints an error message in red, with an optional detail.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	}
	fmt.Fprintln(os.Stderr, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if Quiet() {
		return
	}
	fmt.Fprintln(out(), Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	if Quiet() {
		return
	}
	fmt.Fprintf(out(), "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if Quiet() {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	}
	fmt.Fprintln(out(), Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if Quiet() {
		return
	}
	fmt.Fprintln(out(), Magenta(msg))
}
