package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"meetcal/internal/ics"
)

// DatabaseURLEnv overrides Store.DSN when set, so credentials can stay out
// of the YAML file.
const DatabaseURLEnv = "MEETCAL_DATABASE_URL"

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format" json:"format"`
}

type CacheConfig struct {
	// Backend is "memory" or "file".
	Backend string `yaml:"backend" json:"backend"`
	// Dir is the directory for the file backend.
	Dir string `yaml:"dir" json:"dir"`
	// TTL is how long a generated feed is reused.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// PruneCron is a cron spec for dropping entries older than MaxAge.
	// Empty disables pruning.
	PruneCron string        `yaml:"prune" json:"prune"`
	MaxAge    time.Duration `yaml:"max_age" json:"max_age"`
}

type StoreConfig struct {
	// Kind is "yaml", "postgres" or "remote".
	Kind string `yaml:"kind" json:"kind"`
	// Path is the meetings file for the yaml store.
	Path string `yaml:"path" json:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	// URL is the JSON endpoint for the remote store.
	URL string `yaml:"url" json:"url"`
	// CacheDir keeps the last good remote response.
	CacheDir string        `yaml:"cache_dir" json:"cache_dir"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

type FeedConfig struct {
	ProductID   string `yaml:"product_id" json:"product_id"`
	Category    string `yaml:"category" json:"category"`
	Organizer   string `yaml:"organizer" json:"organizer"`
	Mailbox     string `yaml:"mailbox" json:"mailbox"`
	Location    string `yaml:"location" json:"location"`
	Description string `yaml:"description" json:"description"`
	FoldLines   bool   `yaml:"fold_lines" json:"fold_lines"`
}

// Options converts the feed section into generator options.
func (f FeedConfig) Options() ics.Options {
	return ics.Options{
		ProductID:   f.ProductID,
		Category:    f.Category,
		Organizer:   f.Organizer,
		Mailbox:     f.Mailbox,
		Location:    f.Location,
		Description: f.Description,
		FoldLines:   f.FoldLines,
	}
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	Log   LogConfig   `yaml:"log" json:"log"`
	Cache CacheConfig `yaml:"cache" json:"cache"`
	Store StoreConfig `yaml:"store" json:"store"`
	Feed  FeedConfig  `yaml:"feed" json:"feed"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	opts := ics.DefaultOptions()
	return &Config{
		Listen: "127.0.0.1:8080",
		Log:    LogConfig{Level: "info", Format: "console"},
		Cache: CacheConfig{
			Backend:   "memory",
			Dir:       "./var/feed-cache",
			TTL:       time.Second,
			PruneCron: "*/15 * * * *",
			MaxAge:    time.Hour,
		},
		Store: StoreConfig{
			Kind:     "yaml",
			Path:     "./meetings.yaml",
			CacheDir: "./var/store-cache",
			Timeout:  15 * time.Second,
		},
		Feed: FeedConfig{
			ProductID:   opts.ProductID,
			Category:    opts.Category,
			Organizer:   opts.Organizer,
			Mailbox:     opts.Mailbox,
			Location:    opts.Location,
			Description: opts.Description,
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
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
		c.Log.Format = strings.ToLower(c.Log.Format)
	default:
		c.Log.Format = def.Log.Format
	}

	switch c.Cache.Backend {
	case "memory", "file":
	default:
		c.Cache.Backend = def.Cache.Backend
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = def.Cache.Dir
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Cache.MaxAge <= 0 {
		c.Cache.MaxAge = def.Cache.MaxAge
	}

	switch c.Store.Kind {
	case "yaml", "postgres", "remote":
	case "":
		c.Store.Kind = def.Store.Kind
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Store.CacheDir == "" {
		c.Store.CacheDir = def.Store.CacheDir
	}
	if c.Store.Timeout <= 0 {
		c.Store.Timeout = def.Store.Timeout
	}

	if c.Feed.ProductID == "" {
		c.Feed.ProductID = def.Feed.ProductID
	}
	if c.Feed.Category == "" {
		c.Feed.Category = def.Feed.Category
	}
	if c.Feed.Organizer == "" || !strings.Contains(c.Feed.Organizer, "%s") {
		c.Feed.Organizer = def.Feed.Organizer
	}
	if c.Feed.Mailbox == "" {
		c.Feed.Mailbox = def.Feed.Mailbox
	}
	if c.Feed.Location == "" {
		c.Feed.Location = def.Feed.Location
	}
	if c.Feed.Description == "" {
		c.Feed.Description = def.Feed.Description
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case "yaml":
		if c.Store.Path == "" {
			return errors.New("store.path is required for the yaml store")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("store.dsn (or " + DatabaseURLEnv + ") is required for the postgres store")
		}
	case "remote":
		if c.Store.URL == "" {
			return errors.New("store.url is required for the remote store")
		}
	default:
		return errors.New("unknown store.kind " + c.Store.Kind)
	}
	return nil
}

// ApplyEnv overlays environment overrides onto the config.
func (c *Config) ApplyEnv() {
	if dsn := os.Getenv(DatabaseURLEnv); dsn != "" {
		c.Store.DSN = dsn
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically via a
// temp file + rename, with 0600 permissions on the result.
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

	tmp, err := os.CreateTemp(dir, ".meetcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
