package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for medremind, shared by the alert agent
// and the tracking backend.
type Config struct {
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Agent         AgentConfig         `mapstructure:"agent" yaml:"agent"`
	Backend       BackendConfig       `mapstructure:"backend" yaml:"backend"`
	Alerts        AlertsConfig        `mapstructure:"alerts" yaml:"alerts"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Channels      ChannelsConfig      `mapstructure:"channels" yaml:"channels"`
	Monitor       MonitorConfig       `mapstructure:"monitor" yaml:"monitor"`
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// AgentConfig holds alert agent loop settings
type AgentConfig struct {
	TickInterval   time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	ResyncInterval time.Duration `mapstructure:"resync_interval" yaml:"resync_interval"`
}

// BackendConfig holds settings for the reminder backend the agent talks to
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Token   string        `mapstructure:"token" yaml:"token"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Watch   bool          `mapstructure:"watch" yaml:"watch"` // subscribe to the change feed
}

// AlertsConfig holds alert window and sound settings
type AlertsConfig struct {
	PreAlertLead  time.Duration `mapstructure:"pre_alert_lead" yaml:"pre_alert_lead"`
	DueAlertGrace time.Duration `mapstructure:"due_alert_grace" yaml:"due_alert_grace"`
	Sound         bool          `mapstructure:"sound" yaml:"sound"`
}

// NotificationsConfig holds desktop notification settings
type NotificationsConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ChannelsConfig holds escalation channel settings
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord" yaml:"discord"`
}

// TelegramConfig holds Telegram bot settings
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id" yaml:"chat_id"`
}

// DiscordConfig holds Discord bot settings
type DiscordConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Token     string `mapstructure:"token" yaml:"token"`
	ChannelID string `mapstructure:"channel_id" yaml:"channel_id"`
}

// MonitorConfig holds the agent's debug/metrics listener settings
type MonitorConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// ServerConfig holds tracking backend settings
type ServerConfig struct {
	Host                string        `mapstructure:"host" yaml:"host"`
	Port                int           `mapstructure:"port" yaml:"port"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	AuthEnabled         bool          `mapstructure:"auth_enabled" yaml:"auth_enabled"`
	Password            string        `mapstructure:"password" yaml:"password"`
	JWTSecret           string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL            time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	AllowOrigins        []string      `mapstructure:"allow_origins" yaml:"allow_origins"`
	MaterializeSchedule string        `mapstructure:"materialize_schedule" yaml:"materialize_schedule"`
	MaterializeHorizon  time.Duration `mapstructure:"materialize_horizon" yaml:"materialize_horizon"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.SetDefault("storage.database_path", filepath.Join(dataDir, "medremind.db"))

	// Config file path
	if configPath == "" {
		configPath = filepath.Join(dataDir, "medremind.yaml")
	}

	// If config file exists, load it
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (MEDREMIND_BACKEND_BASE_URL, MEDREMIND_SERVER_PORT, etc.)
	v.SetEnvPrefix("MEDREMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper's AutomaticEnv does not surface env-only keys through Unmarshal,
	// so the common ones are read back explicitly.
	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a Config carrying the same values setDefaults seeds
// into viper, without touching the filesystem or environment. Used by
// tests and anywhere a baseline config is needed programmatically.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Agent: AgentConfig{
			TickInterval:   60 * time.Second,
			ResyncInterval: 5 * time.Minute,
		},
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:8600",
			Timeout: 10 * time.Second,
			Watch:   true,
		},
		Alerts: AlertsConfig{
			PreAlertLead:  5 * time.Minute,
			DueAlertGrace: 1 * time.Minute,
			Sound:         true,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Timeout: 10 * time.Second,
		},
		Monitor: MonitorConfig{Listen: "127.0.0.1:9464"},
		Server: ServerConfig{
			Host:                "127.0.0.1",
			Port:                8600,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        30 * time.Second,
			TokenTTL:            24 * time.Hour,
			AllowOrigins:        []string{"*"},
			MaterializeSchedule: "0 3 * * *",
			MaterializeHorizon:  24 * time.Hour,
		},
	}
}

func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Agent defaults
	v.SetDefault("agent.tick_interval", "60s")
	v.SetDefault("agent.resync_interval", "5m")

	// Backend defaults
	v.SetDefault("backend.base_url", "http://127.0.0.1:8600")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("backend.watch", true)

	// Alert defaults
	v.SetDefault("alerts.pre_alert_lead", "5m")
	v.SetDefault("alerts.due_alert_grace", "1m")
	v.SetDefault("alerts.sound", true)

	// Notification defaults
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.timeout", "10s")

	// Monitor defaults
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.listen", "127.0.0.1:9464")

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8600)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.auth_enabled", false)
	v.SetDefault("server.token_ttl", "24h")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.materialize_schedule", "0 3 * * *")
	v.SetDefault("server.materialize_horizon", "24h")
}

func getDefaultDataDir() string {
	// Try XDG_DATA_HOME first
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "medremind")
	}

	// Fall back to home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "medremind")
}

// loadEnvOverrides loads specific env vars that Viper doesn't surface through
// Unmarshal when no config file key exists
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := ResolveEnvWithAliases(key); val != "" {
			return val
		}
		return fallback
	}

	// Backend settings
	cfg.Backend.BaseURL = getEnv("MEDREMIND_BACKEND_BASE_URL", cfg.Backend.BaseURL)
	cfg.Backend.Token = getEnv("MEDREMIND_BACKEND_TOKEN", cfg.Backend.Token)

	// Channel credentials
	cfg.Channels.Telegram.BotToken = getEnv("MEDREMIND_CHANNELS_TELEGRAM_BOT_TOKEN", cfg.Channels.Telegram.BotToken)
	if chatID := ResolveEnvWithAliases("MEDREMIND_CHANNELS_TELEGRAM_CHAT_ID"); chatID != "" {
		if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			cfg.Channels.Telegram.ChatID = id
		}
	}
	cfg.Channels.Discord.Token = getEnv("MEDREMIND_CHANNELS_DISCORD_TOKEN", cfg.Channels.Discord.Token)
	cfg.Channels.Discord.ChannelID = getEnv("MEDREMIND_CHANNELS_DISCORD_CHANNEL_ID", cfg.Channels.Discord.ChannelID)

	// Server settings
	cfg.Server.Host = getEnv("MEDREMIND_SERVER_HOST", cfg.Server.Host)
	if port := os.Getenv("MEDREMIND_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	cfg.Server.Password = getEnv("MEDREMIND_SERVER_PASSWORD", cfg.Server.Password)
	cfg.Server.JWTSecret = getEnv("MEDREMIND_SERVER_JWT_SECRET", cfg.Server.JWTSecret)

	// Storage settings
	cfg.Storage.DatabasePath = expandPath(getEnv("MEDREMIND_STORAGE_DATABASE_PATH", cfg.Storage.DatabasePath))
}

func validate(cfg *Config) error {
	if cfg.Agent.TickInterval <= 0 {
		return fmt.Errorf("agent.tick_interval must be positive")
	}
	if cfg.Alerts.PreAlertLead <= 0 {
		return fmt.Errorf("alerts.pre_alert_lead must be positive")
	}
	if cfg.Alerts.DueAlertGrace <= 0 {
		return fmt.Errorf("alerts.due_alert_grace must be positive")
	}
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.BotToken == "" {
		return fmt.Errorf("channels.telegram.bot_token is required when telegram is enabled")
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token == "" {
		return fmt.Errorf("channels.discord.token is required when discord is enabled")
	}

	if cfg.Server.AuthEnabled && cfg.Server.Password == "" {
		return fmt.Errorf("server.password is required when auth is enabled")
	}

	// Generate JWT secret if not provided
	if cfg.Server.JWTSecret == "" {
		cfg.Server.JWTSecret = generateRandomString(32)
	}

	return nil
}

func generateRandomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// ListenAddr returns the host:port the tracking backend binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
