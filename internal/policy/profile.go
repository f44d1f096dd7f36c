// Package policy maps app identifiers to the processes a shield must stop.
// Each known app has a profile; unknown apps fall back to name heuristics.
package policy

import "strings"

// AppProfile describes how a blockable app shows up on the desktop.
type AppProfile interface {
	// ID returns unique identifier (e.g., "steam", "dota2").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// Packages returns the app identifiers (bundle ids) the app reports
	// as foreground.
	Packages() []string

	// ProcessPatterns returns process names to kill.
	// Patterns are matched case-insensitively.
	ProcessPatterns() []string
}

// staticProfile is a profile with fixed values.
type staticProfile struct {
	id       string
	name     string
	packages []string
	patterns []string
}

func (p staticProfile) ID() string                { return p.id }
func (p staticProfile) Name() string              { return p.name }
func (p staticProfile) Packages() []string        { return p.packages }
func (p staticProfile) ProcessPatterns() []string { return p.patterns }

// NewProfile creates a profile from fixed values.
func NewProfile(id, name string, packages, patterns []string) AppProfile {
	return staticProfile{id: id, name: name, packages: packages, patterns: patterns}
}

// guessPatterns derives process names from an app identifier such as
// "com.tinyspeck.slackmacgap" or "discord".
func guessPatterns(pkg string) []string {
	pkg = strings.TrimSpace(pkg)
	if pkg == "" {
		return nil
	}
	patterns := []string{pkg}
	if i := strings.LastIndex(pkg, "."); i >= 0 && i < len(pkg)-1 {
		patterns = append(patterns, pkg[i+1:])
	}
	return patterns
}

// guessName derives a display name from an app identifier.
func guessName(pkg string) string {
	name := pkg
	if i := strings.LastIndex(pkg, "."); i >= 0 && i < len(pkg)-1 {
		name = pkg[i+1:]
	}
	if name == "" {
		return pkg
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
