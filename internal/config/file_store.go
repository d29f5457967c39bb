package config

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const configTOMLFileName = "config.toml"

type TerminalDefaults struct {
	DefaultCols int `toml:"default_cols"`
	DefaultRows int `toml:"default_rows"`
}

type AuxiliaryDefaults struct {
	Command    string `toml:"command"`
	LaunchArgs string `toml:"launch_args"`
}

// FileConfig is the persisted install configuration. Missing fields are
// normalized to defaults on load and the normalized form is what gets saved.
type FileConfig struct {
	ListenHost     string            `toml:"listen_host"`
	ListenPort     int               `toml:"listen_port"`
	DatabasePath   string            `toml:"database_path,omitempty"`
	TmuxSocket     string            `toml:"tmux_socket,omitempty"`
	LogLevel       string            `toml:"log_level"`
	PurgeAfterDays int               `toml:"purge_after_days"`
	Terminal       TerminalDefaults  `toml:"terminal"`
	Auxiliary      AuxiliaryDefaults `toml:"auxiliary"`
}

type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) LoadOrInit() (FileConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return FileConfig{}, err
	}

	path := filepath.Join(s.dir, configTOMLFileName)
	if b, err := os.ReadFile(path); err == nil {
		var cfg FileConfig
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return FileConfig{}, err
		}
		return normalizeFileConfig(cfg), nil
	} else if !os.IsNotExist(err) {
		return FileConfig{}, err
	}

	cfg := normalizeFileConfig(FileConfig{})
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func (s *FileStore) Save(cfg FileConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(filepath.Join(s.dir, configTOMLFileName), normalizeFileConfig(cfg))
}

func normalizeFileConfig(cfg FileConfig) FileConfig {
	if strings.TrimSpace(cfg.ListenHost) == "" {
		cfg.ListenHost = "127.0.0.1"
	}
	if cfg.ListenPort <= 0 {
		cfg.ListenPort = 8002
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.PurgeAfterDays <= 0 {
		cfg.PurgeAfterDays = 7
	}
	if cfg.Terminal.DefaultCols <= 0 {
		cfg.Terminal.DefaultCols = 120
	}
	if cfg.Terminal.DefaultRows <= 0 {
		cfg.Terminal.DefaultRows = 30
	}
	if strings.TrimSpace(cfg.Auxiliary.Command) == "" {
		cfg.Auxiliary.Command = "claude"
	}
	if strings.TrimSpace(cfg.Auxiliary.LaunchArgs) == "" {
		cfg.Auxiliary.LaunchArgs = "--dangerously-skip-permissions"
	}
	return cfg
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
