package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"customerterm/internal/phone"
)

const envPrefix = "CUSTOMERTERM"

// Store manages the runtime configuration.
type Store struct {
	path   string
	Config Data
}

// Data represents persisted user preferences.
type Data struct {
	Name     string `mapstructure:"name"`
	Timezone string `mapstructure:"timezone"`
	Region   string `mapstructure:"region"`
	DBPath   string `mapstructure:"db_path"`
	LogPath  string `mapstructure:"log_path"`
}

// Load reads the config file (creating it with defaults if missing) and
// applies CUSTOMERTERM_* environment overrides.
func Load() (*Store, error) {
	cfgPath, err := resolvePath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(cfgPath)
}

// LoadFrom is Load with an explicit file path.
func LoadFrom(cfgPath string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(cfgPath)
	v.SetConfigType("json")
	v.SetDefault("name", defaultName())
	v.SetDefault("timezone", defaultTimezone())
	v.SetDefault("region", phone.DefaultRegion)
	v.SetDefault("db_path", "")
	v.SetDefault("log_path", "")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(cfgPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
			return nil, fmt.Errorf("create config dir: %w", err)
		}
		if err := v.WriteConfigAs(cfgPath); err != nil {
			return nil, fmt.Errorf("write config: %w", err)
		}
	} else if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Data
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		cfg.Timezone = defaultTimezone()
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = defaultName()
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = phone.DefaultRegion
	}
	cfg.Region = strings.ToUpper(cfg.Region)

	return &Store{path: cfgPath, Config: cfg}, nil
}

// Save writes the current config values to disk.
func (s *Store) Save() error {
	if s == nil {
		return errors.New("nil config store")
	}
	v := viper.New()
	v.SetConfigType("json")
	v.Set("name", s.Config.Name)
	v.Set("timezone", s.Config.Timezone)
	v.Set("region", s.Config.Region)
	v.Set("db_path", s.Config.DBPath)
	v.Set("log_path", s.Config.LogPath)
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Path returns the config file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func resolvePath() (string, error) {
	if p := os.Getenv(envPrefix + "_CONFIG"); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.Getenv("HOME")
		if base == "" {
			return "", fmt.Errorf("cannot resolve config directory: %w", err)
		}
	}
	return filepath.Join(base, "customerterm", "config.json"), nil
}

func defaultName() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if runtime.GOOS == "windows" {
		if name := os.Getenv("USERNAME"); name != "" {
			return name
		}
	}
	return "Customer Desk"
}

func defaultTimezone() string {
	if locName := time.Now().Location().String(); locName != "Local" && locName != "" {
		return locName
	}
	return "UTC"
}

// Location returns the configured timezone Location, defaulting to UTC on error.
func (s *Store) Location() *time.Location {
	if s == nil {
		return time.UTC
	}
	if loc, err := time.LoadLocation(s.Config.Timezone); err == nil {
		return loc
	}
	return time.UTC
}
