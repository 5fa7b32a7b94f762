package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by store.driver.
const (
	driverFile      = "file"
	driverRedis     = "redis"
	driverPostgres  = "postgres"
	driverMiniredis = "miniredis"
	driverMemory    = "memory"
)

type settings struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration

	PasswordMemoryKiB uint32
	PasswordTime      uint32

	Store   storeSettings
	HTTP    httpSettings
	Log     logSettings
	Metrics bool

	CleanupInterval time.Duration
	LogResetTokens  bool
	Throttle        throttleSettings
}

type throttleSettings struct {
	Enabled          bool
	RedisAddr        string
	MaxLoginAttempts int
	LoginWindow      time.Duration
	PerIP            bool
	MaxResetRequests int
	ResetWindow      time.Duration
}

type storeSettings struct {
	Driver      string
	Path        string
	RedisAddr   string
	RedisKey    string
	PostgresDSN string
	Document    string
}

type httpSettings struct {
	Addr     string
	BasePath string
}

type logSettings struct {
	Level  string
	Format string
}

// newViper reads CREDSTORE_* variables, with "." in keys mapped to "_"
// (store.driver is CREDSTORE_STORE_DRIVER). The secret also falls back to
// JWT_SECRET.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CREDSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("secret", "CREDSTORE_SECRET", "JWT_SECRET")

	v.SetDefault("access_ttl", "900")
	v.SetDefault("refresh_ttl", "604800")
	v.SetDefault("reset_ttl", "3600")
	v.SetDefault("password.memory_kib", 64*1024)
	v.SetDefault("password.time", 3)
	v.SetDefault("store.driver", driverFile)
	v.SetDefault("store.path", "credstore.json")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_key", "credstore:document")
	v.SetDefault("store.document", "default")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.base_path", "/api/auth")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("cleanup.interval", "10m")
	v.SetDefault("reset.log_tokens", false)
	v.SetDefault("throttle.enabled", false)
	v.SetDefault("throttle.max_login_attempts", 5)
	v.SetDefault("throttle.login_window", "15m")
	v.SetDefault("throttle.per_ip", false)
	v.SetDefault("throttle.max_reset_requests", 3)
	v.SetDefault("throttle.reset_window", "1h")
	return v
}

// readConfig merges the config file at path over the defaults. Environment
// variables still win over the file.
func readConfig(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// loadSettings resolves and validates every setting from v.
func loadSettings(v *viper.Viper) (settings, error) {
	s := settings{
		Secret:            v.GetString("secret"),
		PasswordMemoryKiB: v.GetUint32("password.memory_kib"),
		PasswordTime:      v.GetUint32("password.time"),
		Store: storeSettings{
			Driver:      strings.ToLower(v.GetString("store.driver")),
			Path:        v.GetString("store.path"),
			RedisAddr:   v.GetString("store.redis_addr"),
			RedisKey:    v.GetString("store.redis_key"),
			PostgresDSN: v.GetString("store.postgres_dsn"),
			Document:    v.GetString("store.document"),
		},
		HTTP: httpSettings{
			Addr:     v.GetString("http.addr"),
			BasePath: v.GetString("http.base_path"),
		},
		Log: logSettings{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Metrics:        v.GetBool("metrics.enabled"),
		LogResetTokens: v.GetBool("reset.log_tokens"),
		Throttle: throttleSettings{
			Enabled:          v.GetBool("throttle.enabled"),
			RedisAddr:        v.GetString("throttle.redis_addr"),
			MaxLoginAttempts: v.GetInt("throttle.max_login_attempts"),
			PerIP:            v.GetBool("throttle.per_ip"),
			MaxResetRequests: v.GetInt("throttle.max_reset_requests"),
		},
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"access_ttl", &s.AccessTTL},
		{"refresh_ttl", &s.RefreshTTL},
		{"reset_ttl", &s.ResetTTL},
		{"cleanup.interval", &s.CleanupInterval},
		{"throttle.login_window", &s.Throttle.LoginWindow},
		{"throttle.reset_window", &s.Throttle.ResetWindow},
	}
	for _, d := range durations {
		parsed, err := parseDuration(v.GetString(d.key))
		if err != nil {
			return settings{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	switch s.Store.Driver {
	case driverFile, driverRedis, driverPostgres, driverMiniredis, driverMemory:
	default:
		return settings{}, fmt.Errorf("store.driver: unknown driver %q", s.Store.Driver)
	}
	if s.Store.Driver == driverPostgres && s.Store.PostgresDSN == "" {
		return settings{}, fmt.Errorf("store.postgres_dsn is required for the postgres driver")
	}

	return s, nil
}

// parseDuration accepts Go durations ("15m") and bare integers, which are
// read as seconds.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
