package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tinoosan/fetchd/internal/downloadcfg"
	"github.com/tinoosan/fetchd/internal/logging"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FETCHD_"

// ErrNoToken is returned by ValidateServe when no API token is configured.
var ErrNoToken = errors.New("config: api_token is required to serve the API")

type Config struct {
	ListenAddr      string         `yaml:"listen_addr"`
	DownloadDir     string         `yaml:"download_dir"`
	ChunkSize       int            `yaml:"chunk_size"`
	APIToken        string         `yaml:"api_token"`
	CollisionPolicy string         `yaml:"collision_policy"`
	UserAgent       string         `yaml:"user_agent"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	EventsBuffer    int            `yaml:"events_buffer"`
	Log             logging.Config `yaml:"log"`
}

func Defaults() Config {
	return Config{
		ListenAddr:      ":9090",
		DownloadDir:     ".",
		ChunkSize:       1024,
		CollisionPolicy: string(downloadcfg.CollisionError),
		UserAgent:       "fetchd",
		ShutdownTimeout: 30 * time.Second,
		EventsBuffer:    256,
		Log:             logging.Defaults(),
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// any), a .env file in the working directory (if present) and finally
// FETCHD_* environment variables. An empty path falls back to FETCHD_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(envPrefix + k); ok {
		return v
	}
	return def
}

func getenvInt(k string, def int) (int, error) {
	v, ok := os.LookupEnv(envPrefix + k)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, k, err)
	}
	return n, nil
}

func applyEnv(cfg *Config) error {
	cfg.ListenAddr = getenv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DownloadDir = getenv("DOWNLOAD_DIR", cfg.DownloadDir)
	cfg.APIToken = getenv("API_TOKEN", cfg.APIToken)
	cfg.CollisionPolicy = getenv("COLLISION_POLICY", cfg.CollisionPolicy)
	cfg.UserAgent = getenv("USER_AGENT", cfg.UserAgent)
	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getenv("LOG_FILE", cfg.Log.File)

	var err error
	if cfg.ChunkSize, err = getenvInt("CHUNK_SIZE", cfg.ChunkSize); err != nil {
		return err
	}
	if cfg.EventsBuffer, err = getenvInt("EVENTS_BUFFER", cfg.EventsBuffer); err != nil {
		return err
	}
	if v := getenv("SHUTDOWN_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSHUTDOWN_TIMEOUT: %w", envPrefix, err)
		}
		cfg.ShutdownTimeout = d
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen_addr must not be empty"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.EventsBuffer < 0 {
		errs = append(errs, fmt.Errorf("events_buffer must not be negative, got %d", c.EventsBuffer))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if !downloadcfg.CollisionPolicy(c.CollisionPolicy).Valid() {
		errs = append(errs, fmt.Errorf("collision_policy %q: want error, overwrite or rename", c.CollisionPolicy))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ValidateServe additionally requires an API token.
func (c *Config) ValidateServe() error {
	if strings.TrimSpace(c.APIToken) == "" {
		return ErrNoToken
	}
	return nil
}
