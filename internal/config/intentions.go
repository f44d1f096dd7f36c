package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/usecase"
)

// IntentionFile is the YAML document accepted by `intention import`:
//
//	intentions:
//	  - package: com.valvesoftware.steam
//	    app: Steam
//	    opens_per_day: 2
//	    minutes_per_open: 15
type IntentionFile struct {
	Intentions []IntentionEntry `yaml:"intentions"`
}

// IntentionEntry is one intention in an import file.
type IntentionEntry struct {
	Package        string `yaml:"package"`
	App            string `yaml:"app"`
	OpensPerDay    int    `yaml:"opens_per_day"`
	MinutesPerOpen int    `yaml:"minutes_per_open"`
}

// LoadIntentionFile reads and validates an import file.
func LoadIntentionFile(path string) ([]usecase.IntentionInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseIntentions(data)
}

// ParseIntentions decodes an import document. Packages must be unique.
func ParseIntentions(data []byte) ([]usecase.IntentionInput, error) {
	var file IntentionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse intentions: %w", err)
	}

	seen := make(map[string]bool, len(file.Intentions))
	inputs := make([]usecase.IntentionInput, 0, len(file.Intentions))
	for i, e := range file.Intentions {
		if e.Package == "" {
			return nil, fmt.Errorf("entry %d: package is required", i+1)
		}
		if seen[e.Package] {
			return nil, fmt.Errorf("entry %d: duplicate package %s", i+1, e.Package)
		}
		seen[e.Package] = true

		minutes := e.MinutesPerOpen
		if minutes == 0 {
			minutes = 5
		}
		inputs = append(inputs, usecase.IntentionInput{
			PackageName:        e.Package,
			AppName:            e.App,
			AllowedOpensPerDay: e.OpensPerDay,
			TimePerOpenMinutes: minutes,
		})
	}
	return inputs, nil
}
