package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Booker   BookerConfig   `yaml:"booker"`
	Postgres PostgresConfig `yaml:"postgres"`
	Telegram TelegramConfig `yaml:"telegram"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // optional JSON log file in addition to stdout
}

type BookerConfig struct {
	ProfilePath   string `yaml:"profile_path"`   // selector profile for the target site
	ScreenshotDir string `yaml:"screenshot_dir"` // where per-attempt screenshots land

	Headless  bool   `yaml:"headless"`
	UserAgent string `yaml:"user_agent"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Per-site tunables. Gate values come straight from the workflow design
	// (2 evaluations, 1s apart) but stay configurable for slower sites.
	GateAttempts      int           `yaml:"gate_attempts"`
	GateInterval      time.Duration `yaml:"gate_interval"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	PlacementTimeout  time.Duration `yaml:"placement_timeout"`
	NetworkIdleWindow time.Duration `yaml:"network_idle_window"`

	// Minimum spacing between consecutive booking tasks in a batch.
	TaskInterval time.Duration `yaml:"task_interval"`
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()
	return &config, nil
}

// applyEnv lets secrets come from the environment instead of the yaml file.
func (c *Config) applyEnv() {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("BOOKER_USERNAME"); v != "" {
		c.Booker.Username = v
	}
	if v := os.Getenv("BOOKER_PASSWORD"); v != "" {
		c.Booker.Password = v
	}
}

func (c *Config) applyDefaults() {
	b := &c.Booker
	if b.GateAttempts <= 0 {
		b.GateAttempts = 2
	}
	if b.GateInterval <= 0 {
		b.GateInterval = time.Second
	}
	if b.NavigationTimeout <= 0 {
		b.NavigationTimeout = 30 * time.Second
	}
	if b.ActionTimeout <= 0 {
		b.ActionTimeout = 10 * time.Second
	}
	if b.PlacementTimeout <= 0 {
		b.PlacementTimeout = 20 * time.Second
	}
	if b.NetworkIdleWindow <= 0 {
		b.NetworkIdleWindow = 500 * time.Millisecond
	}
	if b.TaskInterval <= 0 {
		b.TaskInterval = 5 * time.Second
	}
	if b.ScreenshotDir == "" {
		b.ScreenshotDir = "screenshots"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
