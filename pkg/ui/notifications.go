package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"igreels/pkg/config"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender uses notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender uses osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender shows a toast through PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	escape := func(s string) string { return strings.NewReplacer("<", "&lt;", ">", "&gt;", "&", "&amp;").Replace(s) }
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("igreels").Show($toast)
	`, escape(title), escape(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// PlatformSender returns the sender for the current OS, or nil.
func PlatformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	}
	return nil
}

// Notifier prints notifications to w and forwards them to sender when set.
type Notifier struct {
	w      io.Writer
	sender NotificationSender
}

// NewNotifier creates a Notifier. Either argument may be nil.
func NewNotifier(w io.Writer, sender NotificationSender) *Notifier {
	if w == nil {
		w = io.Discard
	}
	return &Notifier{w: w, sender: sender}
}

// SendNotification sends an informational notification
func (n *Notifier) SendNotification(title, message string) {
	fmt.Fprintf(n.w, "\n%s: %s\n", Cyan(title), Yellow(message))
	n.forward(title, message)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(n.w, "\n%s: %s\n", Red(title), Red(message))
	n.forward(title, message)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(n.w, "\n%s: %s\n", Green(title), Green(message))
	n.forward(title, message)
}

func (n *Notifier) forward(title, message string) {
	if n.sender != nil {
		// desktop delivery is best effort
		_ = n.sender.Send(title, message)
	}
}

// NotifyObserver turns run events into notifications according to the
// notification preferences.
type NotifyObserver struct {
	NopObserver
	cfg      config.NotificationConfig
	notifier *Notifier
}

// NewNotifyObserver returns nil when notifications are disabled. A
// "desktop" notification type forwards to the platform sender.
func NewNotifyObserver(cfg config.NotificationConfig, w io.Writer) *NotifyObserver {
	kind := strings.ToLower(cfg.NotificationType)
	if !cfg.Enabled || kind == "none" {
		return nil
	}
	var sender NotificationSender
	if kind == "desktop" {
		sender = PlatformSender()
	}
	return &NotifyObserver{cfg: cfg, notifier: NewNotifier(w, sender)}
}

// WithNotifier replaces the notifier, mainly for tests.
func (o *NotifyObserver) WithNotifier(n *Notifier) *NotifyObserver {
	o.notifier = n
	return o
}

func (o *NotifyObserver) RateLimitSuspected(failures int, window time.Duration, policy string) {
	if !o.cfg.OnRateLimit {
		return
	}
	o.notifier.SendNotification("Rate limit suspected",
		fmt.Sprintf("%d navigation failures within %s (policy: %s)", failures, window, policy))
}

func (o *NotifyObserver) RunFinished(summary RunSummary) {
	if summary.Err != nil {
		if o.cfg.OnError {
			o.notifier.SendError("Run failed", summary.Err.Error())
		}
		return
	}
	if o.cfg.OnComplete {
		o.notifier.SendSuccess("Run complete",
			fmt.Sprintf("%d posts from %d accounts (%d failed)", summary.Posts, summary.Accounts, summary.Failed))
	}
}
