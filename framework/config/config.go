// Package config loads typed application configuration.
//
// Values come, lowest precedence first, from built-in defaults, an optional
// config file named by CONFIG_FILE (yaml, json or toml), .env files and the
// process environment. Keys are dotted ("db.host") and map onto upper-case
// environment variables ("DB_HOST").
//
//	cfg, err := config.Load()
//	port := cfg.App.Port
//	ttl := cfg.Repository().Duration("cache.ttl")
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/km-arc/go-spiral/framework/errs"
)

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	DB        DBConfig        `mapstructure:"db"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	repo *Repository
}

type AppConfig struct {
	Name  string `mapstructure:"name" validate:"required"`
	Env   string `mapstructure:"env" validate:"required"` // local | production | testing
	Debug bool   `mapstructure:"debug"`
	URL   string `mapstructure:"url"`
	Port  string `mapstructure:"port" validate:"required,numeric"`
	Key   string `mapstructure:"key"`
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type CacheConfig struct {
	Driver        string        `mapstructure:"driver" validate:"oneof=memory redis"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
}

type DBConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=mysql postgres"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DSN      string `mapstructure:"dsn"` // overrides the fields above when set
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Exporter    string `mapstructure:"exporter" validate:"oneof=none stdout"`
}

// defaults keyed the way viper sees them.
var defaults = map[string]any{
	"app.name":  "Spiral",
	"app.env":   "local",
	"app.debug": true,
	"app.url":   "http://localhost",
	"app.port":  "8000",
	"app.key":   "",

	"http.read_timeout":     "15s",
	"http.write_timeout":    "15s",
	"http.shutdown_timeout": "10s",

	"log.level":  "info",
	"log.format": "json",

	"cache.driver":         "memory",
	"cache.ttl":            "5m",
	"cache.redis_addr":     "127.0.0.1:6379",
	"cache.redis_password": "",
	"cache.redis_db":       0,

	"db.driver":   "mysql",
	"db.host":     "127.0.0.1",
	"db.port":     "3306",
	"db.database": "",
	"db.username": "root",
	"db.password": "",
	"db.dsn":      "",

	"telemetry.enabled":      false,
	"telemetry.service_name": "spiral",
	"telemetry.exporter":     "none",
}

var validate = validator.New()

// Load reads .env files (if present), the environment and CONFIG_FILE into
// a validated Config. Call once at bootstrap.
func Load(envFiles ...string) (*Config, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(errs.Config, "config.Load", path, err)
		}
	}

	cfg := &Config{repo: &Repository{v: v}}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.Wrap(errs.Config, "config.Load", "", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errs.Wrap(errs.Config, "config.Load", "", err)
	}
	return cfg, nil
}

// Repository returns the key/value view the Config was loaded from. A Config
// built in code gets a view over its own fields.
func (c *Config) Repository() *Repository {
	if c.repo == nil {
		c.repo = NewRepository(c.settings())
	}
	return c.repo
}

// settings flattens the typed sections into dotted keys.
func (c *Config) settings() map[string]any {
	out := map[string]any{}
	rv := reflect.ValueOf(c).Elem()
	for i := 0; i < rv.NumField(); i++ {
		section, ok := rv.Type().Field(i).Tag.Lookup("mapstructure")
		if !ok {
			continue
		}
		sv := rv.Field(i)
		for j := 0; j < sv.NumField(); j++ {
			if key, ok := sv.Type().Field(j).Tag.Lookup("mapstructure"); ok {
				out[section+"."+key] = sv.Field(j).Interface()
			}
		}
	}
	return out
}

// IsProduction reports whether App.Env is "production".
func (c *Config) IsProduction() bool { return c.App.Env == "production" }

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
