package config

import (
	"strconv"
	"strings"
)

// ApplyKVOverrides applies free-form -c key=value overrides.
func ApplyKVOverrides(cfg Config, overrides []string) Config {
	if len(overrides) == 0 {
		return cfg
	}
	for _, raw := range overrides {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if name, ok := strings.CutPrefix(key, "permissions."); ok {
			if n, err := strconv.ParseUint(val, 10, 0); err == nil && name != "" {
				cfg.Permissions = withPermission(cfg.Permissions, name, uint(n))
			}
			continue
		}
		switch key {
		case "server_path", "server":
			cfg.ServerPath = val
		case "server_args":
			cfg.ServerArgs = strings.Fields(val)
		case "pipe_mode", "pipe-mode":
			cfg.PipeMode = val
		case "use_pty", "pty":
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.UsePTY = b
			}
		case "max_lines":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.MaxLines = n
			}
		case "pending_capacity":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.PendingCapacity = n
			}
		case "tick_interval_ms":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.TickIntervalMS = n
			}
		case "kill_timeout_seconds", "kill_timeout":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.KillTimeoutSeconds = n
			}
		case "roster_path":
			cfg.RosterPath = val
		case "history_path":
			cfg.HistoryPath = val
		case "sessions_dir":
			cfg.SessionsDir = val
		case "command_prefix":
			cfg.CommandPrefix = val
		case "default_countdown":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.DefaultCountdown = n
			}
		case "word_wrap":
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.WordWrap = b
			}
		}
	}
	return cfg.normalize()
}

// withPermission 返回新 map，不修改调用方持有的配置。
func withPermission(perms map[string]uint, name string, level uint) map[string]uint {
	out := make(map[string]uint, len(perms)+1)
	for k, v := range perms {
		out[k] = v
	}
	out[strings.ToLower(name)] = level
	return out
}
