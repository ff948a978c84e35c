package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and validation of site profiles
type Loader struct {
	profilesDir string
}

// NewLoader creates a new profile loader
func NewLoader(profilesDir string) *Loader {
	return &Loader{profilesDir: profilesDir}
}

// LoadAll loads all YAML profile files from the profiles directory
func (l *Loader) LoadAll() (map[string]*Profile, error) {
	profiles := make(map[string]*Profile)

	if _, err := os.Stat(l.profilesDir); os.IsNotExist(err) {
		return profiles, nil
	}

	files, err := filepath.Glob(filepath.Join(l.profilesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.profilesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		profile, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(profile); err != nil {
			return nil, fmt.Errorf("invalid profile %s: %w", file, err)
		}

		profiles[profile.Name] = profile
	}

	return profiles, nil
}

// loadFile loads a single YAML profile file
func (l *Loader) loadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Base(path)
	profile.Name = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")

	l.setDefaults(&profile)

	return &profile, nil
}

// setDefaults applies default values to a profile
func (l *Loader) setDefaults(profile *Profile) {
	if profile.Settings.PageTimeout == 0 {
		profile.Settings.PageTimeout = 10 // seconds
	}
	if profile.Settings.PriceTimeout == 0 {
		profile.Settings.PriceTimeout = 5 // seconds
	}
	if profile.Selectors.FlyerID == "" {
		profile.Selectors.FlyerID = "flyer-id"
	}
	if profile.Selectors.ItemName == "" {
		profile.Selectors.ItemName = "aria-label"
	}
	if profile.Selectors.ItemID == "" {
		profile.Selectors.ItemID = "itemid"
	}
}

// validate validates a profile
func (l *Loader) validate(profile *Profile) error {
	if profile.Site.ListingURL == "" {
		return fmt.Errorf("listing URL is required")
	}
	if profile.Site.FlyerURLTmpl == "" {
		return fmt.Errorf("flyer URL template is required")
	}
	if profile.Site.ItemURLTmpl == "" {
		return fmt.Errorf("item URL template is required")
	}
	if !strings.Contains(profile.Site.FlyerURLTmpl, "%d") {
		return fmt.Errorf("flyer URL template must contain a %%d placeholder")
	}
	if !strings.Contains(profile.Site.ItemURLTmpl, "%s") {
		return fmt.Errorf("item URL template must contain a %%s placeholder")
	}
	if profile.Selectors.FlyerListing == "" {
		return fmt.Errorf("flyer listing selector is required")
	}
	if profile.Selectors.ItemContainer == "" {
		return fmt.Errorf("item container selector is required")
	}
	if profile.Selectors.ItemPrice == "" {
		return fmt.Errorf("item price selector is required")
	}
	if profile.Settings.PageTimeout < 0 || profile.Settings.PriceTimeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}

	return nil
}

// FlyerURL renders the per-flyer detail page URL
func (p *Profile) FlyerURL(flyerID int64) string {
	return fmt.Sprintf(p.Site.FlyerURLTmpl, flyerID)
}

// ItemURL renders the per-item detail page URL
func (p *Profile) ItemURL(itemID string) string {
	return fmt.Sprintf(p.Site.ItemURLTmpl, itemID)
}

// IsDenylisted reports whether a raw item label is promotional noise
// (banner tiles, "add to list" buttons) rather than a priced product.
func (p *Profile) IsDenylisted(label string) bool {
	for _, word := range p.Denylist {
		if strings.EqualFold(strings.TrimSpace(label), word) {
			return true
		}
	}
	return false
}

// IsBlacklisted reports whether a flyer id is excluded from ingestion.
func (p *Profile) IsBlacklisted(flyerID int64) bool {
	for _, id := range p.Blacklist {
		if id == flyerID {
			return true
		}
	}
	return false
}
