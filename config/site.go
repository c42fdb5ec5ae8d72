package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed site.yaml
var defaultSiteProfile []byte

// SiteProfile holds company facts shown in templates, JSON-LD and the
// web manifest. Localized fields are keyed by locale.
type SiteProfile struct {
	Name       string            `yaml:"name"`
	ShortName  string            `yaml:"short_name"`
	LegalName  string            `yaml:"legal_name"`
	Logo       string            `yaml:"logo"`     // path under the site or absolute URL
	OGImage    string            `yaml:"og_image"` // default share image
	Phones     []string          `yaml:"phones"`
	Email      string            `yaml:"email"`
	Address    map[string]string `yaml:"address"`
	Hours      string            `yaml:"hours"` // schema.org openingHours, e.g. "Mo-Sa 09:00-19:00"
	Geo        Geo               `yaml:"geo"`
	Socials    []string          `yaml:"socials"`
	ThemeColor string            `yaml:"theme_color"`
	BgColor    string            `yaml:"background_color"`
	Icons      []Icon            `yaml:"icons"`
}

// Geo is a coordinate pair.
type Geo struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// Icon is a web manifest icon.
type Icon struct {
	Src   string `yaml:"src" json:"src"`
	Sizes string `yaml:"sizes" json:"sizes"`
	Type  string `yaml:"type" json:"type"`
}

// AddressIn returns the address for locale, falling back to uz.
func (p *SiteProfile) AddressIn(locale string) string {
	if a := p.Address[locale]; a != "" {
		return a
	}
	return p.Address["uz"]
}

// LoadSiteProfile reads the profile at path, or the embedded default when
// path is empty.
func LoadSiteProfile(path string) (*SiteProfile, error) {
	data := defaultSiteProfile
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read site profile: %w", err)
		}
		data = b
	}
	return parseSiteProfile(data)
}

func parseSiteProfile(data []byte) (*SiteProfile, error) {
	var p SiteProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse site profile: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("site profile: name is required")
	}
	if p.ShortName == "" {
		p.ShortName = p.Name
	}
	if p.ThemeColor == "" {
		p.ThemeColor = "#0f766e"
	}
	if p.BgColor == "" {
		p.BgColor = "#ffffff"
	}
	return &p, nil
}
