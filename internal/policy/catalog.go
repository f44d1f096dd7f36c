package policy

import (
	"sort"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// Catalog holds all known app profiles, indexed by app identifier.
type Catalog struct {
	profiles  map[string]AppProfile
	byPackage map[string]AppProfile
}

// NewCatalog creates a catalog with all default profiles.
func NewCatalog() *Catalog {
	return NewCatalogWithProfiles(
		NewSteamProfile(),
		NewDota2Profile(),
		NewDiscordProfile(),
		NewSlackProfile(),
	)
}

// NewCatalogWithProfiles creates a catalog with custom profiles (for testing).
func NewCatalogWithProfiles(profiles ...AppProfile) *Catalog {
	c := &Catalog{
		profiles:  make(map[string]AppProfile),
		byPackage: make(map[string]AppProfile),
	}
	for _, p := range profiles {
		c.Register(p)
	}
	return c
}

// Register adds a profile to the catalog.
func (c *Catalog) Register(p AppProfile) {
	c.profiles[p.ID()] = p
	for _, pkg := range p.Packages() {
		c.byPackage[pkg] = p
	}
}

// Lookup returns the profile owning pkg.
func (c *Catalog) Lookup(pkg string) (AppProfile, bool) {
	p, ok := c.byPackage[pkg]
	return p, ok
}

// ProcessPatterns returns the process names to stop for pkg.
func (c *Catalog) ProcessPatterns(pkg string) []string {
	if p, ok := c.byPackage[pkg]; ok {
		return p.ProcessPatterns()
	}
	return guessPatterns(pkg)
}

// DisplayName returns a human-readable name for pkg.
func (c *Catalog) DisplayName(pkg string) string {
	if p, ok := c.byPackage[pkg]; ok {
		return p.Name()
	}
	return guessName(pkg)
}

// List returns all profiles sorted by ID.
func (c *Catalog) List() []AppProfile {
	result := make([]AppProfile, 0, len(c.profiles))
	for _, p := range c.profiles {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// Ensure Catalog implements domain.AppCatalog.
var _ domain.AppCatalog = (*Catalog)(nil)
