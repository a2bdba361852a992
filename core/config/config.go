package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	GoogleAPI GoogleAPIConfig `mapstructure:"google_api"`
	Nylas     NylasConfig     `mapstructure:"nylas"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type GoogleAPIConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type NylasConfig struct {
	APIKey string `mapstructure:"api_key"`
	APIURI string `mapstructure:"api_uri"`
}

type SyncConfig struct {
	Provider           string `mapstructure:"provider"` // nylas | google
	CredentialID       string `mapstructure:"credential_id"`
	CalendarID         string `mapstructure:"calendar_id"`
	IntervalMinutes    int    `mapstructure:"interval_minutes"`
	WindowDays         int    `mapstructure:"window_days"`
	EventLimit         int    `mapstructure:"event_limit"`
	PassTimeoutMinutes int    `mapstructure:"pass_timeout_minutes"`
	LockTTLMinutes     int    `mapstructure:"lock_ttl_minutes"`
	Timezone           string `mapstructure:"timezone"`
	TaskTitlePrefix    string `mapstructure:"task_title_prefix"`
	NotifyUsers        bool   `mapstructure:"notify_users"`
}

type StorageConfig struct {
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Prefix    string `mapstructure:"s3_prefix"`
}

var (
	mu       sync.RWMutex
	instance *Config
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("nylas.api_uri", "https://api.us.nylas.com")
	v.SetDefault("sync.provider", "nylas")
	v.SetDefault("sync.calendar_id", "primary")
	v.SetDefault("sync.interval_minutes", 15)
	v.SetDefault("sync.window_days", 30)
	v.SetDefault("sync.event_limit", 100)
	v.SetDefault("sync.pass_timeout_minutes", 10)
	v.SetDefault("sync.lock_ttl_minutes", 10)
	v.SetDefault("sync.timezone", "Local")
	v.SetDefault("sync.task_title_prefix", "[Task]")
	v.SetDefault("sync.notify_users", true)
	v.SetDefault("storage.s3_prefix", "sync-reports")
}

// Load reads .env (if present) and the process environment. Keys map as
// SECTION_FIELD, e.g. SYNC_INTERVAL_MINUTES or NYLAS_API_KEY.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	Set(&cfg)
	return &cfg, nil
}

// AutomaticEnv only resolves keys viper already knows about, so every
// field without a default is registered explicitly.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"log.file",
		"database.user", "database.password", "database.name",
		"redis.addr", "redis.password", "redis.db",
		"jwt.secret",
		"google_api.client_id", "google_api.client_secret", "google_api.redirect_uri",
		"nylas.api_key",
		"sync.credential_id",
		"storage.s3_bucket", "storage.s3_region", "storage.s3_endpoint",
		"storage.s3_access_key", "storage.s3_secret_key",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}
