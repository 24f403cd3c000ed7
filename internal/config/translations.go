package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WeatherTranslations holds weather code texts and widget labels.
type WeatherTranslations struct {
	// Codes maps WMO weather codes to human text.
	Codes         map[int]string `yaml:"codes"`
	Precipitation string         `yaml:"precipitation"`
}

// Translations is the per-locale string table.
type Translations struct {
	Today   string              `yaml:"today"`
	Titles  map[string]string   `yaml:"titles"`
	Weather WeatherTranslations `yaml:"weather"`
	Errors  map[string]string   `yaml:"errors"`
}

// Title returns the heading for a list kind, or "" if none is configured.
func (t *Translations) Title(kind string) string {
	if t == nil {
		return ""
	}
	return t.Titles[kind]
}

// ErrorMessage returns the localized error heading for key, falling back
// to def.
func (t *Translations) ErrorMessage(key, def string) string {
	if t != nil {
		if msg, ok := t.Errors[key]; ok && msg != "" {
			return msg
		}
	}
	return def
}

// LoadTranslations reads <dir>/<locale>.yml.
func LoadTranslations(dir, locale string) (*Translations, error) {
	path := filepath.Join(dir, locale+".yml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read translations: %w", err)
	}

	var tr Translations
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parse translations %s: %w", path, err)
	}
	if tr.Titles == nil {
		tr.Titles = map[string]string{}
	}
	if tr.Weather.Codes == nil {
		tr.Weather.Codes = map[int]string{}
	}
	return &tr, nil
}
