package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Hub    HubConfig    `mapstructure:"hub"`
	Redis  RedisConfig  `mapstructure:"redis"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Notify NotifyConfig `mapstructure:"notify"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// HubConfig configures the websocket broadcast hub.
type HubConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	KeepAliveSpec  string        `mapstructure:"keepalive_spec"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuthConfig struct {
	SecretKey   string        `mapstructure:"secret_key"`
	TokenExpire time.Duration `mapstructure:"token_expire"`
}

// NotifyConfig configures the client side notification channel.
type NotifyConfig struct {
	URL              string        `mapstructure:"url"`
	Role             string        `mapstructure:"role"`
	Token            string        `mapstructure:"token"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var bindings = map[string]string{
	"server.port":              "SERVER_PORT",
	"server.host":              "SERVER_HOST",
	"hub.port":                 "HUB_PORT",
	"hub.host":                 "HUB_HOST",
	"hub.keepalive_spec":       "HUB_KEEPALIVE_SPEC",
	"hub.write_timeout":        "HUB_WRITE_TIMEOUT",
	"hub.max_message_size":     "HUB_MAX_MESSAGE_SIZE",
	"hub.allowed_origins":      "HUB_ALLOWED_ORIGINS",
	"redis.address":            "REDIS_ADDRESS",
	"redis.password":           "REDIS_PASSWORD",
	"redis.db":                 "REDIS_DB",
	"redis.channel":            "REDIS_CHANNEL",
	"mysql.dsn":                "MYSQL_DSN",
	"mysql.max_open_conns":     "MYSQL_MAX_OPEN_CONNS",
	"mysql.max_idle_conns":     "MYSQL_MAX_IDLE_CONNS",
	"mysql.conn_max_lifetime":  "MYSQL_CONN_MAX_LIFETIME",
	"auth.secret_key":          "AUTH_SECRET_KEY",
	"auth.token_expire":        "AUTH_TOKEN_EXPIRE",
	"notify.url":               "NOTIFY_URL",
	"notify.role":              "NOTIFY_ROLE",
	"notify.token":             "NOTIFY_TOKEN",
	"notify.handshake_timeout": "NOTIFY_HANDSHAKE_TIMEOUT",
	"notify.max_message_size":  "NOTIFY_MAX_MESSAGE_SIZE",
	"log.level":                "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("hub.port", 8001)
	v.SetDefault("hub.host", "0.0.0.0")
	v.SetDefault("hub.keepalive_spec", "@every 30s")
	v.SetDefault("hub.write_timeout", 10*time.Second)
	v.SetDefault("hub.max_message_size", 512*1024)
	v.SetDefault("hub.allowed_origins", []string{})
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "purchase_events")
	v.SetDefault("mysql.dsn", "store_user:store_pass@tcp(localhost:3306)/store_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.token_expire", 24*time.Hour)
	v.SetDefault("notify.url", "ws://localhost:8001/ws")
	v.SetDefault("notify.role", "")
	v.SetDefault("notify.token", "")
	v.SetDefault("notify.handshake_timeout", 10*time.Second)
	v.SetDefault("notify.max_message_size", 64*1024)
	v.SetDefault("log.level", "info")
}

// Load reads .env (if present), then config.yaml (optional), then environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/storefront-notify/")

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if err := bindEnv(v); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func bindEnv(v *viper.Viper) error {
	v.AutomaticEnv()
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Hub: %s:%d, Redis: %s (%s), Notify: %s as %q",
		c.Server.Host,
		c.Server.Port,
		c.Hub.Host,
		c.Hub.Port,
		c.Redis.Address,
		c.Redis.Channel,
		c.Notify.URL,
		c.Notify.Role,
	)
}
