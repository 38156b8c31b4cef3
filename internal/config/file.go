package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# medremind configuration.
# Every key can also be set through the environment with the MEDREMIND_
# prefix, e.g. MEDREMIND_BACKEND_BASE_URL overrides backend.base_url.
`

// defaultFileValues mirrors setDefaults with durations as strings, so the
// generated file reads the way a person would write it.
func defaultFileValues() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":  "info",
			"format": "console",
		},
		"agent": map[string]any{
			"tick_interval":   "60s",
			"resync_interval": "5m",
		},
		"backend": map[string]any{
			"base_url": "http://127.0.0.1:8600",
			"token":    "",
			"timeout":  "10s",
			"watch":    true,
		},
		"alerts": map[string]any{
			"pre_alert_lead":  "5m",
			"due_alert_grace": "1m",
			"sound":           true,
		},
		"notifications": map[string]any{
			"enabled": true,
			"timeout": "10s",
		},
		"channels": map[string]any{
			"telegram": map[string]any{"enabled": false, "bot_token": "", "chat_id": 0},
			"discord":  map[string]any{"enabled": false, "token": "", "channel_id": ""},
		},
		"monitor": map[string]any{
			"enabled": false,
			"listen":  "127.0.0.1:9464",
		},
		"server": map[string]any{
			"host":                 "127.0.0.1",
			"port":                 8600,
			"auth_enabled":         false,
			"password":             "",
			"token_ttl":            "24h",
			"materialize_schedule": "0 3 * * *",
			"materialize_horizon":  "24h",
		},
	}
}

// WriteDefault writes a default config file. Refuses to clobber an
// existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := yaml.Marshal(defaultFileValues())
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return os.WriteFile(path, append([]byte(fileHeader), data...), 0644)
}
