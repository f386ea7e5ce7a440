// Package config loads the client configuration from config.yaml and the
// environment.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"

	PolicyBestEffort = "bestEffort"
	PolicyRollback   = "rollback"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	APIURL                  string `yaml:"apiURL"`
	MediaURL                string `yaml:"mediaURL"`
	LogLevel                string `yaml:"logLevel"`
	LogFormat               string `yaml:"logFormat"`
	StorageDriver           string `yaml:"storageDriver"`
	StorageDir              string `yaml:"storageDir"`
	StorageKey              string `yaml:"storageKey"`
	RedisAddr               string `yaml:"redisAddr"`
	RedisPassword           string `yaml:"redisPassword"`
	RedisPrefix             string `yaml:"redisPrefix"`
	LoginRateLimitPerMinute int    `yaml:"loginRateLimitPerMinute"`
	RequestTimeout          string `yaml:"requestTimeout"`
	PageSize                int    `yaml:"pageSize"`
	Language                string `yaml:"language"`
	ChartAttachPolicy       string `yaml:"chartAttachPolicy"`
}

// Load reads config from path (defaults to config.yaml). A missing file is
// fine as long as the environment supplies what validation requires.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if v := os.Getenv("BOOKNEST_API_URL"); v != "" {
		cfg.APIURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKNEST_MEDIA_URL"); v != "" {
		cfg.MediaURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKNEST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BOOKNEST_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKNEST_STORAGE_DIR"); v != "" {
		cfg.StorageDir = v
	}
	if v := os.Getenv("BOOKNEST_STORAGE_KEY"); v != "" {
		cfg.StorageKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("BOOKNEST_LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("BOOKNEST_REQUEST_TIMEOUT"); v != "" {
		cfg.RequestTimeout = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKNEST_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.PageSize = n
		}
	}
	if v := os.Getenv("BOOKNEST_LANGUAGE"); v != "" {
		cfg.Language = strings.TrimSpace(v)
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = StorageFile
	}
	if cfg.StorageDir == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			cfg.StorageDir = filepath.Join(dir, "booknest")
		} else {
			cfg.StorageDir = ".booknest"
		}
	}
	if cfg.MediaURL == "" {
		cfg.MediaURL = mediaOrigin(cfg.APIURL)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 20
	}
	if cfg.Language == "" {
		cfg.Language = "ru"
	}
	if cfg.ChartAttachPolicy == "" {
		cfg.ChartAttachPolicy = PolicyBestEffort
	}
}

// mediaOrigin derives the media server from the API URL: the same origin
// without the API path.
func mediaOrigin(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func validateConfig(cfg FileConfig) error {
	u, err := url.Parse(cfg.APIURL)
	if cfg.APIURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("config: apiURL is required and must be absolute (set in config.yaml or BOOKNEST_API_URL)")
	}
	switch cfg.StorageDriver {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis storage driver")
		}
	default:
		return fmt.Errorf("config: unknown storageDriver %q (file, redis or memory)", cfg.StorageDriver)
	}
	if _, err := ParseStorageKey(cfg.StorageKey); err != nil {
		return err
	}
	if cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: loginRateLimitPerMinute must be >= 0")
	}
	if cfg.LoginRateLimitPerMinute > 0 && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for login rate limiting")
	}
	if _, err := ParseRequestTimeout(cfg.RequestTimeout); err != nil {
		return err
	}
	if cfg.PageSize < 0 {
		return errors.New("config: pageSize must be > 0")
	}
	if cfg.ChartAttachPolicy != PolicyBestEffort && cfg.ChartAttachPolicy != PolicyRollback {
		return fmt.Errorf("config: unknown chartAttachPolicy %q (bestEffort or rollback)", cfg.ChartAttachPolicy)
	}
	return nil
}

// ParseRequestTimeout parses the optional request timeout. Empty or zero
// leaves timing to the transport.
func ParseRequestTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid requestTimeout duration: %w", err)
	}
	if dur < 0 {
		return 0, errors.New("config: requestTimeout must be >= 0")
	}
	return dur, nil
}

// ParseStorageKey decodes the optional 32-byte storage sealing key, given as
// hex or base64. An empty string means values are stored unsealed.
func ParseStorageKey(s string) (*[32]byte, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(s)
	}
	if err != nil || len(raw) != 32 {
		return nil, errors.New("config: storageKey must be 32 bytes, hex or base64 encoded")
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
