package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the effective runtime configuration: file defaults overlaid with
// TERMINALD_* environment variables.
type Config struct {
	ListenHost     string
	ListenPort     int
	ConfigDir      string
	DatabasePath   string
	TmuxSocket     string
	LogLevel       string
	DefaultCols    int
	DefaultRows    int
	AuxCommand     string
	AuxLaunchArgs  string
	PurgeAfterDays int
}

func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("TERMINALD_CONFIG_DIR")); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "summitflow-terminal"), nil
}

// LoadConfig resolves the config dir, loads (or initializes) the TOML file,
// and applies environment overrides.
func LoadConfig() (Config, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return Config{}, err
	}
	file, err := NewFileStore(dir).LoadOrInit()
	if err != nil {
		return Config{}, err
	}
	cfg := fromFile(dir, file)
	applyEnv(&cfg)
	return cfg, nil
}

func fromFile(dir string, file FileConfig) Config {
	cfg := Config{
		ListenHost:     file.ListenHost,
		ListenPort:     file.ListenPort,
		ConfigDir:      dir,
		DatabasePath:   file.DatabasePath,
		TmuxSocket:     file.TmuxSocket,
		LogLevel:       file.LogLevel,
		DefaultCols:    file.Terminal.DefaultCols,
		DefaultRows:    file.Terminal.DefaultRows,
		AuxCommand:     file.Auxiliary.Command,
		AuxLaunchArgs:  file.Auxiliary.LaunchArgs,
		PurgeAfterDays: file.PurgeAfterDays,
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(dir, "terminal.db")
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TERMINALD_HOST")); v != "" {
		cfg.ListenHost = v
	}
	if v := strings.TrimSpace(os.Getenv("TERMINALD_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ListenPort = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TERMINALD_DB_PATH")); v != "" {
		cfg.DatabasePath = v
	}
	if v := strings.TrimSpace(os.Getenv("TERMINALD_TMUX_SOCKET")); v != "" {
		cfg.TmuxSocket = v
	}
	if v := strings.TrimSpace(os.Getenv("TERMINALD_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("TERMINALD_AUX_COMMAND")); v != "" {
		cfg.AuxCommand = v
	}
	if v := strings.TrimSpace(os.Getenv("TERMINALD_AUX_LAUNCH_ARGS")); v != "" {
		cfg.AuxLaunchArgs = v
	}
	if v := strings.TrimSpace(os.Getenv("TERMINALD_PURGE_AFTER_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PurgeAfterDays = n
		}
	}
}
