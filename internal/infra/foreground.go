package infra

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// ForegroundObserverImpl samples the frontmost app.
// macOS: bundle id from lsappinfo. Linux (X11): window pid from xdotool,
// resolved to a process name with gopsutil.
type ForegroundObserverImpl struct {
	goos      string
	cmdRunner CommandRunner
	pm        domain.ProcessManager
}

// NewForegroundObserver creates an observer for the running OS.
func NewForegroundObserver(pm domain.ProcessManager) *ForegroundObserverImpl {
	return NewForegroundObserverWithDeps(runtime.GOOS, &RealCommandRunner{}, pm)
}

// NewForegroundObserverWithDeps creates an observer with injectable dependencies (for testing)
func NewForegroundObserverWithDeps(goos string, cmdRunner CommandRunner, pm domain.ProcessManager) *ForegroundObserverImpl {
	return &ForegroundObserverImpl{goos: goos, cmdRunner: cmdRunner, pm: pm}
}

// Sample returns the foreground app identifier, or "" when none can be told.
func (o *ForegroundObserverImpl) Sample(ctx context.Context) (string, error) {
	switch o.goos {
	case "darwin":
		return o.sampleDarwin(ctx)
	case "linux":
		return o.sampleLinux(ctx)
	default:
		return "", fmt.Errorf("foreground sampling not supported on %s", o.goos)
	}
}

func (o *ForegroundObserverImpl) sampleDarwin(ctx context.Context) (string, error) {
	out, err := o.cmdRunner.Output(ctx, "lsappinfo", "info", "-only", "bundleid", "front")
	if err != nil {
		return "", fmt.Errorf("lsappinfo failed: %w", err)
	}
	return parseBundleID(string(out)), nil
}

// parseBundleID extracts the value from `"CFBundleIdentifier"="com.apple.Safari"`.
func parseBundleID(out string) string {
	out = strings.TrimSpace(out)
	i := strings.Index(out, "=")
	if i < 0 {
		return ""
	}
	v := strings.Trim(strings.TrimSpace(out[i+1:]), `"`)
	if v == "[ NULL ]" {
		return ""
	}
	return v
}

func (o *ForegroundObserverImpl) sampleLinux(ctx context.Context) (string, error) {
	out, err := o.cmdRunner.Output(ctx, "xdotool", "getactivewindow", "getwindowpid")
	if err != nil {
		return "", fmt.Errorf("xdotool failed: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return "", nil
	}
	name, err := o.pm.NameOf(pid)
	if err != nil {
		return "", fmt.Errorf("failed to resolve pid %d: %w", pid, err)
	}
	return name, nil
}

// Ensure ForegroundObserverImpl implements domain.ForegroundObserver.
var _ domain.ForegroundObserver = (*ForegroundObserverImpl)(nil)
