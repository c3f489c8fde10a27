package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/msageha/contentbook/internal/styled"
)

// ErrDesktopUnsupported is returned by Send where osascript is unavailable.
var ErrDesktopUnsupported = errors.New("desktop notifications are only supported on macOS")

const osascriptTimeout = 5 * time.Second

// Send shows a desktop notification through osascript. Formatting codes are
// removed from both strings.
func Send(title, message string) error {
	if runtime.GOOS != "darwin" {
		return ErrDesktopUnsupported
	}
	ctx, cancel := context.WithTimeout(context.Background(), osascriptTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "osascript", "-e", appleScript(title, message)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func appleScript(title, message string) string {
	return `display notification "` + escapeAppleScript(styled.Text(message).Strip()) +
		`" with title "` + escapeAppleScript(styled.Text(title).Strip()) + `"`
}

// escapeAppleScript quotes s for use inside an AppleScript string literal.
func escapeAppleScript(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n', '\r':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
