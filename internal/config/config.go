package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration for epunch, stored in ~/.epunch/config.json.
// The file supports single-line // comments for documentation purposes.
// Environment variables (optionally from a .env file) override file values.
type Config struct {
	Store StoreConfig `json:"store"`
	// User is the employee id the CLI acts as when --user is not given.
	User string `json:"user"`
	// Timezone is the IANA zone week boundaries are computed in. Empty = local.
	Timezone string       `json:"timezone"`
	Log      LogConfig    `json:"log"`
	Server   ServerConfig `json:"server"`
}

// StoreConfig selects and configures the shift store.
type StoreConfig struct {
	// Driver is one of "file", "sqlite" or "firestore".
	Driver     string          `json:"driver"`
	DataDir    string          `json:"data_dir"`
	SQLitePath string          `json:"sqlite_path"`
	Firestore  FirestoreConfig `json:"firestore"`
}

// FirestoreConfig points at a Cloud Firestore database.
type FirestoreConfig struct {
	ProjectID string `json:"project_id"`
	// CredentialsFile is a service account JSON key. Empty = application
	// default credentials.
	CredentialsFile string `json:"credentials_file"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// ServerConfig configures `epunch serve`.
type ServerConfig struct {
	Addr string `json:"addr"`
	// JWTSecret enables HS256 bearer tokens; the "sub" claim is the user id.
	// Empty = trust the X-User-ID header.
	JWTSecret      string   `json:"jwt_secret"`
	AllowedOrigins []string `json:"allowed_origins"`
}

const (
	DriverFile      = "file"
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"

	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "console"
	DefaultServerAddr = ":8080"
)

// defaultConfig returns a Config pre-filled with sensible defaults for the
// data directory dir.
func defaultConfig(dir string) Config {
	return Config{
		Store: StoreConfig{
			Driver:     DriverFile,
			DataDir:    dir,
			SQLitePath: filepath.Join(dir, "epunch.db"),
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Server: ServerConfig{
			Addr:           DefaultServerAddr,
			AllowedOrigins: []string{"*"},
		},
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// epunch configuration – ~/.epunch/config.json
//
// All settings are optional. Every value can also be set through an
// EPUNCH_* environment variable, which wins over this file.
{
  // ── Shift store ──────────────────────────────────────────────────────────
  "store": {
    // Where shifts live:
    // • "file"      – JSON documents under data_dir (default)
    // • "sqlite"    – a single SQLite database at sqlite_path
    // • "firestore" – Cloud Firestore, shared with the hosted dashboard
    "driver": "file",

    // Empty = the directory holding this file.
    "data_dir": "",
    "sqlite_path": "",

    "firestore": {
      "project_id": "",
      // Service account key. Empty = application default credentials.
      "credentials_file": ""
    }
  },

  // Employee id used when --user is not given (EPUNCH_USER_ID).
  "user": "",

  // IANA timezone for week boundaries, e.g. "Europe/Berlin". Empty = local time.
  "timezone": "",

  "log": {
    // debug, info, warn or error.
    "level": "warn",
    // "console" or "json".
    "format": "console"
  },

  // ── epunch serve ─────────────────────────────────────────────────────────
  "server": {
    "addr": ":8080",
    // HS256 secret for bearer tokens. Empty = trust the X-User-ID header.
    "jwt_secret": "",
    "allowed_origins": ["*"]
  }
}
`

// Dir returns the epunch home directory: $EPUNCH_HOME if set, otherwise
// ~/.epunch.
func Dir() (string, error) {
	if dir := os.Getenv("EPUNCH_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".epunch"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads an optional .env from the working directory, then the config in
// Dir().
func Load() (Config, error) {
	_ = godotenv.Load()

	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads dir/config.json, creating it with annotated defaults on
// first run, and applies environment overrides.
func LoadFrom(dir string) (Config, error) {
	path := filepath.Join(dir, "config.json")
	cfg := defaultConfig(dir)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		cfg = Config{}
		if err := json.Unmarshal(stripLineComments(data), &cfg); err != nil {
			return defaultConfig(dir), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	applyEnv(&cfg)
	fillDefaults(&cfg, dir)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Store.Driver, "EPUNCH_STORE_DRIVER")
	setFromEnv(&cfg.Store.DataDir, "EPUNCH_DATA_DIR")
	setFromEnv(&cfg.Store.SQLitePath, "EPUNCH_SQLITE_PATH")
	setFromEnv(&cfg.Store.Firestore.ProjectID, "EPUNCH_FIRESTORE_PROJECT")
	setFromEnv(&cfg.Store.Firestore.CredentialsFile, "EPUNCH_FIRESTORE_CREDENTIALS")
	setFromEnv(&cfg.User, "EPUNCH_USER_ID")
	setFromEnv(&cfg.Timezone, "EPUNCH_TIMEZONE")
	setFromEnv(&cfg.Log.Level, "EPUNCH_LOG_LEVEL")
	setFromEnv(&cfg.Log.Format, "EPUNCH_LOG_FORMAT")
	setFromEnv(&cfg.Server.Addr, "EPUNCH_SERVER_ADDR")
	setFromEnv(&cfg.Server.JWTSecret, "EPUNCH_JWT_SECRET")
	if v := os.Getenv("EPUNCH_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, o)
			}
		}
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// fillDefaults fills zero-value fields with built-in defaults so callers
// always get a usable Config even if the user only partially fills in the file.
func fillDefaults(cfg *Config, dir string) {
	def := defaultConfig(dir)
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = def.Store.Driver
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = def.Store.DataDir
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = def.Store.SQLitePath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = def.Server.AllowedOrigins
	}
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverFile, DriverSQLite:
	case DriverFirestore:
		if c.Store.Firestore.ProjectID == "" {
			return errors.New("store.firestore.project_id is required for the firestore driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q (want file, sqlite or firestore)", c.Store.Driver)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", c.Log.Format)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the configured timezone, or time.Local when unset.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
