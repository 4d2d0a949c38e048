package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendConfig describes how to reach the CELCAT instance.
type BackendConfig struct {
	// BaseURL is the site root, e.g. "https://edt.uvsq.fr".
	BaseURL string `yaml:"base_url"`
	// Referer defaults to BaseURL + "/".
	Referer   string        `yaml:"referer,omitempty"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	// Retries is the number of extra attempts after a transient failure.
	Retries      int           `yaml:"retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	ColourScheme int           `yaml:"colour_scheme"`
}

// BandConfig is a clock-time window, both ends written as "HH:MM".
type BandConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type BandsConfig struct {
	Morning BandConfig `yaml:"morning"`
	Evening BandConfig `yaml:"evening"`
}

// CalDAVConfig holds credentials for the CalDAV publisher.
type CalDAVConfig struct {
	Endpoint string `yaml:"endpoint"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
}

// GoogleConfig holds OAuth client settings for the Google publisher.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CalendarID   string `yaml:"calendar_id"`
	Account      string `yaml:"account"`
	// CredentialsFile is the client secret JSON downloaded from the Google
	// console, used when ClientID/ClientSecret are empty.
	CredentialsFile string `yaml:"credentials_file"`
	// TokenDir holds the token-<account>.json files written by "auth".
	TokenDir string `yaml:"token_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`

	// ResourceTypes maps an entity kind to the backend resType code.
	ResourceTypes map[string]int `yaml:"resource_types"`
	// DefaultResourceType is used for kinds missing from ResourceTypes.
	DefaultResourceType string `yaml:"default_resource_type"`

	Bands    BandsConfig `yaml:"bands"`
	DayClose string      `yaml:"day_close"`

	// ClosedWeekdays lists lowercase English weekday names on which no
	// query is accepted.
	ClosedWeekdays []string `yaml:"closed_weekdays"`

	// Concurrency bounds parallel backend calls for year and multi-room queries.
	Concurrency int `yaml:"concurrency"`

	StateFile string `yaml:"state_file"`
	ProductID string `yaml:"product_id"`
	UIDDomain string `yaml:"uid_domain"`

	CalDAV      CalDAVConfig `yaml:"caldav"`
	Google      GoogleConfig `yaml:"google"`
	DatabaseURL string       `yaml:"database_url"`
	Listen      string       `yaml:"listen"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:      "https://edt.uvsq.fr",
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:      15 * time.Second,
			Retries:      2,
			RetryBackoff: time.Second,
			ColourScheme: 3,
		},
		ResourceTypes: map[string]int{
			"module": 100,
			"room":   102,
			"group":  103,
		},
		DefaultResourceType: "group",
		Bands: BandsConfig{
			Morning: BandConfig{Start: "08:00", End: "13:00"},
			Evening: BandConfig{Start: "13:00", End: "18:00"},
		},
		DayClose:       "18:40",
		ClosedWeekdays: []string{"sunday"},
		Concurrency:    4,
		StateFile:      "sync-state.json",
		ProductID:      "-//celcatsync//EN",
		UIDDomain:      "celcatsync",
		Google: GoogleConfig{
			CredentialsFile: "credentials.json",
			TokenDir:        ".",
		},
		Listen: "127.0.0.1:8080",
	}
}

// Normalize fills in missing/zero values so that partially-filled files
// still behave like the defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = def.Backend.BaseURL
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.Referer == "" {
		c.Backend.Referer = c.Backend.BaseURL + "/"
	}
	if c.Backend.UserAgent == "" {
		c.Backend.UserAgent = def.Backend.UserAgent
	}
	// The client must never block forever.
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = def.Backend.Timeout
	}
	if c.Backend.Retries < 0 {
		c.Backend.Retries = 0
	}
	if c.Backend.RetryBackoff < 0 {
		c.Backend.RetryBackoff = 0
	}
	if c.Backend.ColourScheme == 0 {
		c.Backend.ColourScheme = def.Backend.ColourScheme
	}

	if len(c.ResourceTypes) == 0 {
		c.ResourceTypes = def.ResourceTypes
	}
	if _, ok := c.ResourceTypes[c.DefaultResourceType]; !ok {
		c.DefaultResourceType = def.DefaultResourceType
	}

	if c.Bands.Morning.Start == "" || c.Bands.Morning.End == "" {
		c.Bands.Morning = def.Bands.Morning
	}
	if c.Bands.Evening.Start == "" || c.Bands.Evening.End == "" {
		c.Bands.Evening = def.Bands.Evening
	}
	if c.DayClose == "" {
		c.DayClose = def.DayClose
	}
	if c.ClosedWeekdays == nil {
		c.ClosedWeekdays = def.ClosedWeekdays
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.StateFile == "" {
		c.StateFile = def.StateFile
	}
	if c.ProductID == "" {
		c.ProductID = def.ProductID
	}
	if c.UIDDomain == "" {
		c.UIDDomain = def.UIDDomain
	}
	if c.Google.CredentialsFile == "" {
		c.Google.CredentialsFile = def.Google.CredentialsFile
	}
	if c.Google.TokenDir == "" {
		c.Google.TokenDir = def.Google.TokenDir
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
}

// ResourceType returns the resType code for an entity kind ("module",
// "room", "group"). Unknown kinds use the default kind's code.
func (c *Config) ResourceType(kind string) int {
	if code, ok := c.ResourceTypes[strings.ToLower(kind)]; ok {
		return code
	}
	return c.ResourceTypes[c.DefaultResourceType]
}

// ClosedDays parses ClosedWeekdays.
func (c *Config) ClosedDays() ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(c.ClosedWeekdays))
	for _, name := range c.ClosedWeekdays {
		wd, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		out = append(out, wd)
	}
	return out, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Load loads configuration from the given YAML path.
//
// A missing file is not an error: the defaults are returned so the tool
// works out of the box. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. It is meant to run after
// godotenv has populated the process environment from a .env file.
func (c *Config) ApplyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("CELCAT_BASE_URL", &c.Backend.BaseURL)
	setString("CELCAT_REFERER", &c.Backend.Referer)
	setString("CALDAV_ENDPOINT", &c.CalDAV.Endpoint)
	setString("CALDAV_USERNAME", &c.CalDAV.Username)
	setString("CALDAV_PASSWORD", &c.CalDAV.Password)
	setString("CALDAV_CALENDAR", &c.CalDAV.Calendar)
	setString("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	setString("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	setString("GOOGLE_CALENDAR_ID", &c.Google.CalendarID)
	setString("GOOGLE_ACCOUNT", &c.Google.Account)
	setString("GOOGLE_CREDENTIALS_FILE", &c.Google.CredentialsFile)
	setString("GOOGLE_TOKEN_DIR", &c.Google.TokenDir)
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("LISTEN", &c.Listen)

	if v := os.Getenv("CELCAT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CELCAT_TIMEOUT %q: %w", v, err)
		}
		c.Backend.Timeout = d
	}
	if v := os.Getenv("CELCAT_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CELCAT_RETRIES %q: %w", v, err)
		}
		c.Backend.Retries = n
	}
	return nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
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

	// A derived referer is left out so the file keeps following base_url.
	out := *cfg
	if out.Backend.Referer == out.Backend.BaseURL+"/" {
		out.Backend.Referer = ""
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".celcatsync-config-*.tmp")
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
