package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents who the engine runs as.
type ExecMode string

const (
	// ExecModeUser runs per user, data under the home directory
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root, data under /var/lib
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds paths that depend on the execution mode.
type ExecModeConfig struct {
	Mode    ExecMode
	DataDir string // Encrypted store and key
	LogPath string // Daemon log file
	IsRoot  bool
}

// DetectExecMode determines the execution mode based on effective UID.
// dataDirOverride, when set, replaces the mode's default data directory.
func DetectExecMode(dataDirOverride string) *ExecModeConfig {
	cfg := &ExecModeConfig{Mode: ExecModeUser, IsRoot: os.Geteuid() == 0}
	if cfg.IsRoot {
		cfg.Mode = ExecModeSystem
		cfg.DataDir = "/var/lib/presentd"
	} else {
		cfg.DataDir = filepath.Join(GetRealUserHome(), ".presentd")
	}
	if dataDirOverride != "" {
		cfg.DataDir = dataDirOverride
	}
	cfg.LogPath = filepath.Join(cfg.DataDir, "presentd.log")
	return cfg
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the invoking user's home directory, even under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
