// Package config loads registrar settings from defaults, an optional YAML
// file, a .env file and REGISTRAR_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: capacity.ceiling is
// read from REGISTRAR_CAPACITY_CEILING.
const EnvPrefix = "REGISTRAR"

type Config struct {
	Database DatabaseConfig
	Log      LogConfig
	Capacity CapacityConfig
	Triggers TriggersConfig
	HTTP     HTTPConfig
	Redis    RedisConfig
}

type DatabaseConfig struct {
	Path string
}

type LogConfig struct {
	Level  string
	Format string
}

// CapacityConfig sets the admission ceiling and where it is enforced.
type CapacityConfig struct {
	Ceiling int
	Mode    string
}

// TriggersConfig tunes the trigger engine.
type TriggersConfig struct {
	PollInterval time.Duration
	RetryDelay   time.Duration
	BatchSize    int
	MaxDepth     int
}

type HTTPConfig struct {
	Addr string
}

// RedisConfig enables publishing risk alerts over Redis pub/sub.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Load reads the configuration. file names a YAML config file; when empty,
// registrar.yaml in the working directory is used if present.
func Load(file string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("registrar")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Capacity: CapacityConfig{
			Ceiling: v.GetInt("capacity.ceiling"),
			Mode:    v.GetString("capacity.mode"),
		},
		Triggers: TriggersConfig{
			PollInterval: v.GetDuration("triggers.poll_interval"),
			RetryDelay:   v.GetDuration("triggers.retry_delay"),
			BatchSize:    v.GetInt("triggers.batch_size"),
			MaxDepth:     v.GetInt("triggers.max_depth"),
		},
		HTTP: HTTPConfig{
			Addr: v.GetString("http.addr"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  v.GetString("redis.channel"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "registrar.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("capacity.ceiling", 30)
	v.SetDefault("capacity.mode", "hard")

	v.SetDefault("triggers.poll_interval", "250ms")
	v.SetDefault("triggers.retry_delay", "1s")
	v.SetDefault("triggers.batch_size", 100)
	v.SetDefault("triggers.max_depth", 8)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "registrar:risk-alerts")
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	if c.Capacity.Ceiling <= 0 {
		errs = append(errs, fmt.Errorf("capacity.ceiling must be positive, got %d", c.Capacity.Ceiling))
	}
	if c.Capacity.Mode != "hard" && c.Capacity.Mode != "soft" {
		errs = append(errs, fmt.Errorf("capacity.mode %q: want hard or soft", c.Capacity.Mode))
	}
	if c.Triggers.PollInterval <= 0 {
		errs = append(errs, errors.New("triggers.poll_interval must be positive"))
	}
	if c.Triggers.RetryDelay < 0 {
		errs = append(errs, errors.New("triggers.retry_delay must not be negative"))
	}
	if c.Triggers.BatchSize <= 0 {
		errs = append(errs, errors.New("triggers.batch_size must be positive"))
	}
	if c.Triggers.MaxDepth <= 0 {
		errs = append(errs, errors.New("triggers.max_depth must be positive"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q: want debug, info, warn or error", s)
	}
}
