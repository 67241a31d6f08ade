package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Pipe transport modes.
const (
	PipeModeNamed     = "named"
	PipeModeAnonymous = "anonymous"
)

// Config is the only persisted config file schema.
type Config struct {
	ServerPath         string   `toml:"server_path"`
	ServerArgs         []string `toml:"server_args"`
	PipeMode           string   `toml:"pipe_mode"`
	UsePTY             bool     `toml:"use_pty"`
	MaxLines           int      `toml:"max_lines"`
	PendingCapacity    int      `toml:"pending_capacity"`
	TickIntervalMS     int      `toml:"tick_interval_ms"`
	KillTimeoutSeconds int      `toml:"kill_timeout_seconds"`
	RosterPath         string   `toml:"roster_path"`
	HistoryPath        string   `toml:"history_path"`
	SessionsDir        string   `toml:"sessions_dir"`
	CommandPrefix      string   `toml:"command_prefix"`
	DefaultCountdown   int      `toml:"default_countdown"`
	WordWrap           bool     `toml:"word_wrap"`
	// Permissions 覆盖命令的最低权限等级，键为命令名。
	Permissions map[string]uint `toml:"permissions,omitempty"`
	Source      string          `toml:"-"`
}

func Default() Config {
	return Config{
		PipeMode:           PipeModeNamed,
		MaxLines:           10000,
		PendingCapacity:    1000,
		TickIntervalMS:     10,
		KillTimeoutSeconds: 5,
		RosterPath:         filepath.Join(baseDir(), "visitors.json"),
		HistoryPath:        filepath.Join(baseDir(), "history.jsonl"),
		SessionsDir:        filepath.Join(baseDir(), "sessions"),
		CommandPrefix:      "/",
		DefaultCountdown:   20,
		WordWrap:           true,
	}
}

func DefaultPath() string {
	dir := baseDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tabg-cli")
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg).normalize(), nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	return applyEnv(cfg).normalize(), nil
}

func applyEnv(cfg Config) Config {
	if env := strings.TrimSpace(os.Getenv("TABG_SERVER_PATH")); env != "" {
		cfg.ServerPath = env
	}
	return cfg
}

// normalize 把越界值拉回可用范围，保证下游循环一定终止。
func (c Config) normalize() Config {
	def := Default()
	switch strings.ToLower(strings.TrimSpace(c.PipeMode)) {
	case PipeModeAnonymous:
		c.PipeMode = PipeModeAnonymous
	default:
		c.PipeMode = PipeModeNamed
	}
	if c.MaxLines < 100 {
		c.MaxLines = 100
	}
	if c.PendingCapacity <= 0 {
		c.PendingCapacity = def.PendingCapacity
	}
	if c.TickIntervalMS <= 0 {
		c.TickIntervalMS = def.TickIntervalMS
	}
	if c.KillTimeoutSeconds <= 0 {
		c.KillTimeoutSeconds = def.KillTimeoutSeconds
	}
	if strings.TrimSpace(c.CommandPrefix) == "" {
		c.CommandPrefix = def.CommandPrefix
	}
	if c.DefaultCountdown <= 0 {
		c.DefaultCountdown = def.DefaultCountdown
	}
	if len(c.Permissions) > 0 {
		perms := make(map[string]uint, len(c.Permissions))
		for name, level := range c.Permissions {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				perms[name] = level
			}
		}
		c.Permissions = perms
	}
	return c
}

// TickInterval 返回 UI 刷新周期。
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// KillTimeout 返回终止子进程时的等待上限。
func (c Config) KillTimeout() time.Duration {
	return time.Duration(c.KillTimeoutSeconds) * time.Second
}
