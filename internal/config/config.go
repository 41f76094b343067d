package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// Telegram bot configuration
type BotConfig struct {
	Token string `mapstructure:"token"`
	// OperatorChatID receives unhandled errors and missing-config reports; 0 disables it
	OperatorChatID int64         `mapstructure:"operator_chat_id"`
	Webhook        WebhookConfig `mapstructure:"webhook"`
}

// webhook server configuration
type WebhookConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ListenPort  string `mapstructure:"listen_port"`
	DebugPath   string `mapstructure:"debug_path"`
	MetricsPath string `mapstructure:"metrics_path"`
	CertFile    string `mapstructure:"cert_file"`
	KeyFile     string `mapstructure:"key_file"`
}

// logging configuration
type LoggerConfig struct {
	Directory string            `mapstructure:"directory"`
	Rotation  LogRotationConfig `mapstructure:"rotation"`
	Level     string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Path         string `mapstructure:"path"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	Charset      string `mapstructure:"charset"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// poll defaults and bounds, all in seconds
type ModerationConfig struct {
	DefaultExpiry int `mapstructure:"default_expiry"`
	MinExpiry     int `mapstructure:"min_expiry"`
	MaxExpiry     int `mapstructure:"max_expiry"`
}

type SchedulerConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MissedGrace   time.Duration `mapstructure:"missed_grace"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("MODBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	// Unmarshal configuration
	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	return loaded, nil
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	m := c.Moderation
	if m.MinExpiry <= 0 || m.MinExpiry > m.MaxExpiry {
		return fmt.Errorf("invalid expiry bounds [%d, %d]", m.MinExpiry, m.MaxExpiry)
	}
	if m.DefaultExpiry < m.MinExpiry || m.DefaultExpiry > m.MaxExpiry {
		return fmt.Errorf("default expiry %d outside [%d, %d]", m.DefaultExpiry, m.MinExpiry, m.MaxExpiry)
	}

	if c.Scheduler.SweepInterval <= 0 {
		return fmt.Errorf("scheduler sweep interval must be positive")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// keys without a real default are registered so MODBOT_* env overrides reach Unmarshal
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.operator_chat_id", 0)
	v.SetDefault("bot.webhook.endpoint", "")
	v.SetDefault("bot.webhook.listen_port", "8443")
	v.SetDefault("bot.webhook.debug_path", "/debug")
	v.SetDefault("bot.webhook.metrics_path", "/metrics")
	v.SetDefault("bot.webhook.cert_file", "")
	v.SetDefault("bot.webhook.key_file", "")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "modbot.db")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "modbot")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)

	v.SetDefault("moderation.default_expiry", 120)
	v.SetDefault("moderation.min_expiry", 10)
	v.SetDefault("moderation.max_expiry", 600)

	v.SetDefault("scheduler.sweep_interval", 30*time.Second)
	v.SetDefault("scheduler.missed_grace", 5*time.Second)
}
