package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid config")

// Replacement is a literal search/replace rule applied to entry titles.
type Replacement struct {
	Search  string `yaml:"search" json:"search" validate:"required"`
	Replace string `yaml:"replace" json:"replace"`
}

// Rewrite applies rules in order. Each rule replaces the first occurrence
// of its search string only.
func Rewrite(title string, rules []Replacement) string {
	for _, r := range rules {
		if r.Search == "" {
			continue
		}
		title = strings.Replace(title, r.Search, r.Replace, 1)
	}
	return title
}

// BasicAuthConfig holds HTTP Basic Auth credentials. It is used both for
// the dashboard itself and for CalDAV/CardDAV accounts.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// OAuthConfig describes an OAuth2 refresh-token grant.
type OAuthConfig struct {
	TokenURL     string `yaml:"token_url" json:"token_url" validate:"required,url"`
	Username     string `yaml:"username" json:"username"`
	RefreshToken string `yaml:"refresh_token" json:"refresh_token" validate:"required"`
	ClientID     string `yaml:"client_id" json:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
}

// AuthConfig selects how an account authenticates. Exactly one of Basic
// and OAuth must be set when the account has a DAV endpoint.
type AuthConfig struct {
	Basic *BasicAuthConfig `yaml:"basic,omitempty" json:"basic,omitempty"`
	OAuth *OAuthConfig     `yaml:"oauth,omitempty" json:"oauth,omitempty"`
}

// CalDAVConfig is an account's calendar server.
type CalDAVConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"required,url"`
	// Mappings maps a list kind ("appointments", "trash") to the display
	// name of the remote calendar that feeds it.
	Mappings map[string]string `yaml:"mappings" json:"mappings"`
}

// CardDAVConfig is an account's address book server.
type CardDAVConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"required,url"`
}

// ICSConfig lists plain iCalendar subscriptions keyed by list kind.
type ICSConfig struct {
	Feeds map[string]string `yaml:"feeds" json:"feeds" validate:"dive,url"`
}

// AccountConfig is one remote account holding calendars and/or contacts.
type AccountConfig struct {
	Name    string         `yaml:"name" json:"name"`
	Auth    AuthConfig     `yaml:"auth" json:"auth"`
	CalDAV  *CalDAVConfig  `yaml:"caldav,omitempty" json:"caldav,omitempty"`
	CardDAV *CardDAVConfig `yaml:"carddav,omitempty" json:"carddav,omitempty"`
	ICS     *ICSConfig     `yaml:"ics,omitempty" json:"ics,omitempty"`
}

// Settings holds locale, timezone and the lookahead windows.
type Settings struct {
	// Locale is a BCP 47 tag such as "en-US" or "de-DE". It also selects
	// the translations file.
	Locale string `yaml:"locale" json:"locale" validate:"required,bcp47_language_tag"`

	// Timezone is the IANA timezone used as display zone (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone" validate:"required,timezone"`

	// Clock is "24h" (default) or "12h".
	Clock string `yaml:"clock" json:"clock" validate:"oneof=24h 12h"`

	// Test switches every section to built-in sample data.
	Test bool `yaml:"test" json:"test"`

	LogLevel       string        `yaml:"log_level" json:"log_level" validate:"oneof=debug info error"`
	HTTPTimeout    time.Duration `yaml:"http_timeout" json:"http_timeout"`
	RefreshSeconds int           `yaml:"refresh_seconds" json:"refresh_seconds" validate:"min=10"`

	AppointmentsDays int `yaml:"appointments_days" json:"appointments_days" validate:"min=0"`
	TrashDays        int `yaml:"trash_days" json:"trash_days" validate:"min=0"`
	BirthdayDays     int `yaml:"birthday_days" json:"birthday_days"`
	EventDays        int `yaml:"event_days" json:"event_days" validate:"min=0"`
}

// IconMapping is a weather icon with an optional night variant.
type IconMapping struct {
	Icon string `yaml:"icon" json:"icon" validate:"required"`
	Alt  string `yaml:"alt,omitempty" json:"alt,omitempty"`
}

// WeatherConfig locates the forecast.
type WeatherConfig struct {
	BaseURL   string  `yaml:"base_url" json:"base_url" validate:"required,url"`
	Latitude  float64 `yaml:"latitude" json:"latitude" validate:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude" validate:"longitude"`

	CodeIconMappingOverrides map[int]IconMapping `yaml:"code_icon_mapping_overrides" json:"code_icon_mapping_overrides" validate:"dive"`
}

// EventsConfig locates the city events feed.
type EventsConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	Country           string        `yaml:"country" json:"country"`
	City              string        `yaml:"city" json:"city"`
	PostalCodes       []string      `yaml:"postal_codes" json:"postal_codes"`
	TitleReplacements []Replacement `yaml:"title_replacements" json:"title_replacements" validate:"dive"`
}

// TrashConfig holds trash-list specific rewrites.
type TrashConfig struct {
	TitleReplacements []Replacement `yaml:"title_replacements" json:"title_replacements" validate:"dive"`
}

// CaptureConfig controls the periodic headless screenshot of the dashboard.
type CaptureConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Schedule is a cron expression (e.g. "*/15 * * * *").
	Schedule string `yaml:"schedule" json:"schedule" validate:"required_if=Enabled true"`
	// URL defaults to the dashboard root on the listen address.
	URL    string `yaml:"url" json:"url" validate:"omitempty,url"`
	Output string `yaml:"output" json:"output" validate:"required_if=Enabled true"`
	Width  int    `yaml:"width" json:"width" validate:"min=0"`
	Height int    `yaml:"height" json:"height" validate:"min=0"`
}

// BatteryConfig enables the I2C battery gauge.
type BatteryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Bus     string `yaml:"bus" json:"bus"`
	Address uint16 `yaml:"address" json:"address"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// TranslationsDir holds one <locale>.yml per supported locale.
	TranslationsDir string `yaml:"translations_dir" json:"translations_dir" validate:"required"`

	Settings Settings        `yaml:"settings" json:"settings"`
	Weather  WeatherConfig   `yaml:"weather" json:"weather"`
	Events   EventsConfig    `yaml:"events" json:"events"`
	Trash    TrashConfig     `yaml:"trash" json:"trash"`
	Accounts []AccountConfig `yaml:"accounts" json:"accounts" validate:"dive"`
	Capture  CaptureConfig   `yaml:"capture" json:"capture"`
	Battery  BatteryConfig   `yaml:"battery" json:"battery"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// dashboard endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// Translations is loaded from TranslationsDir, never from the config file.
	Translations *Translations `yaml:"-" json:"-"`

	loc *time.Location
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:3000",
		TranslationsDir: "./translations",
		Settings: Settings{
			Locale:           "en-US",
			Timezone:         "Europe/Berlin",
			Clock:            "24h",
			LogLevel:         "info",
			HTTPTimeout:      15 * time.Second,
			RefreshSeconds:   300,
			AppointmentsDays: 14,
			TrashDays:        7,
			BirthdayDays:     7,
			EventDays:        7,
		},
		Weather: WeatherConfig{
			BaseURL:   "https://api.open-meteo.com/v1/forecast",
			Latitude:  52.52,
			Longitude: 13.41,
		},
		Events: EventsConfig{
			BaseURL:     "https://service-api.phq.io",
			PostalCodes: []string{},
		},
		Accounts: []AccountConfig{},
		Capture: CaptureConfig{
			Schedule: "*/15 * * * *",
			Output:   "./cache/preview.png",
			Width:    1304,
			Height:   984,
		},
		Battery: BatteryConfig{
			Address: 0x57,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.TranslationsDir == "" {
		c.TranslationsDir = def.TranslationsDir
	}
	if c.Settings.Locale == "" {
		c.Settings.Locale = def.Settings.Locale
	}
	if c.Settings.Timezone == "" {
		c.Settings.Timezone = def.Settings.Timezone
	}
	if c.Settings.Clock == "" {
		c.Settings.Clock = def.Settings.Clock
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = def.Settings.LogLevel
	}
	if c.Settings.HTTPTimeout <= 0 {
		c.Settings.HTTPTimeout = def.Settings.HTTPTimeout
	}
	if c.Settings.RefreshSeconds <= 0 {
		c.Settings.RefreshSeconds = def.Settings.RefreshSeconds
	}
	// A zero birthday window means "use the default", not "today only".
	if c.Settings.BirthdayDays <= 0 {
		c.Settings.BirthdayDays = def.Settings.BirthdayDays
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = def.Weather.BaseURL
	}
	if c.Events.BaseURL == "" {
		c.Events.BaseURL = def.Events.BaseURL
	}
	if c.Events.PostalCodes == nil {
		c.Events.PostalCodes = []string{}
	}
	if c.Accounts == nil {
		c.Accounts = []AccountConfig{}
	}
	if c.Capture.Schedule == "" {
		c.Capture.Schedule = def.Capture.Schedule
	}
	if c.Capture.Output == "" {
		c.Capture.Output = def.Capture.Output
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = def.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = def.Capture.Height
	}
	if c.Battery.Address == 0 {
		c.Battery.Address = def.Battery.Address
	}
}

// Location returns the display timezone. It is resolved by Load/Validate;
// before that it falls back to time.Local.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// Load loads configuration from the given YAML path and validates it.
//
// Behavior:
//   - If the file does not exist:
//   - write a default config with 0600 perms
//   - continue with the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//   - Validate, then load translations for the configured locale.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Normalize()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir := cfg.TranslationsDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(path), dir)
	}
	tr, err := LoadTranslations(dir, cfg.Settings.Locale)
	if err != nil {
		return nil, err
	}
	cfg.Translations = tr

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600, since accounts carry credentials.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".walldash-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
