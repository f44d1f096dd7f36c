package infra

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// DesktopNotifier posts notifications through the desktop's own tool:
// osascript on macOS, notify-send on Linux. Elsewhere it only logs.
type DesktopNotifier struct {
	goos      string
	appName   string
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewDesktopNotifier creates a notifier for the running OS.
func NewDesktopNotifier(appName string, logger *zap.Logger) *DesktopNotifier {
	return NewDesktopNotifierWithDeps(runtime.GOOS, appName, &RealCommandRunner{}, logger)
}

// NewDesktopNotifierWithDeps creates a notifier with injectable dependencies (for testing)
func NewDesktopNotifierWithDeps(goos, appName string, cmdRunner CommandRunner, logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{goos: goos, appName: appName, cmdRunner: cmdRunner, logger: logger}
}

// Notify shows title and body to the user.
func (n *DesktopNotifier) Notify(ctx context.Context, title, body string) error {
	n.logger.Info("notification", zap.String("title", title), zap.String("body", body))

	switch n.goos {
	case "darwin":
		script := fmt.Sprintf(`display notification %s with title %s subtitle %s`,
			appleScriptString(body), appleScriptString(n.appName), appleScriptString(title))
		if err := n.cmdRunner.Run(ctx, "osascript", "-e", script); err != nil {
			return fmt.Errorf("osascript notification failed: %w", err)
		}
	case "linux":
		if err := n.cmdRunner.Run(ctx, "notify-send", "--app-name", n.appName, title, body); err != nil {
			return fmt.Errorf("notify-send failed: %w", err)
		}
	}
	return nil
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Ensure DesktopNotifier implements domain.Notifier.
var _ domain.Notifier = (*DesktopNotifier)(nil)
