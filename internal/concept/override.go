package concept

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// OverrideDocument is the declarative per-project file an owner may
// commit to customize how the project is published. Every key is
// optional; unknown keys are ignored.
type OverrideDocument struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	URL          string   `yaml:"url"`
	Technologies []string `yaml:"technologies"`
	CoverImage   string   `yaml:"cover_image"`
	Banner       *bool    `yaml:"banner"`
}

// BannerEnabled resolves the banner flag; only an explicit false
// disables it.
func (d OverrideDocument) BannerEnabled() bool {
	return d.Banner == nil || *d.Banner
}

// ParseOverride parses the override document text. An empty document is
// valid and distinct from an absent one; that distinction belongs to
// the caller via RawProjectRecord.HasOverride.
func ParseOverride(text string) (OverrideDocument, error) {
	var doc OverrideDocument
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return OverrideDocument{}, fmt.Errorf("parse override document: %w", err)
	}
	return doc, nil
}
