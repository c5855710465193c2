// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port           int           `yaml:"port"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	Driver      string `yaml:"driver"` // postgres | memory
	URL         string `yaml:"url"`
	MaxConns    int32  `yaml:"max_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SchedulerConfig struct {
	ExpiryInterval      time.Duration `yaml:"expiry_interval"`
	LockTTL             time.Duration `yaml:"lock_ttl"`
	ReleaseExpiredSlots bool          `yaml:"release_expired_slots"`
	CleanupBatch        int           `yaml:"cleanup_batch"`
}

type WorkersConfig struct {
	Orders    int `yaml:"orders"`     // goroutines serving the order collaborator
	QueueSize int `yaml:"queue_size"` // pending order jobs before callers block
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type RateLimitConfig struct {
	RedeemPerMinute int `yaml:"redeem_per_minute"` // per account
}

type CatalogConfig struct {
	Path string `yaml:"path"` // YAML catalog used by cmd/seed
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Workers   WorkersConfig   `yaml:"workers"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Catalog   CatalogConfig   `yaml:"catalog"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config and -dev from the command line and loads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads the YAML file, applies defaults, overlays the environment (a
// .env file next to the binary is honored) and validates the result.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	applyEnv(&cfg, lookupEnv(".env"))
	cfg.Runtime.Dev = dev
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 12 * time.Hour
	}
	if cfg.Admin.RequestTimeout <= 0 {
		cfg.Admin.RequestTimeout = 15 * time.Second
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = time.Minute
	}
	if cfg.Scheduler.LockTTL <= 0 {
		cfg.Scheduler.LockTTL = 2 * cfg.Scheduler.ExpiryInterval
	}
	if cfg.Scheduler.CleanupBatch <= 0 {
		cfg.Scheduler.CleanupBatch = 100
	}
	if cfg.Workers.Orders <= 0 {
		cfg.Workers.Orders = 4
	}
	if cfg.Workers.QueueSize <= 0 {
		cfg.Workers.QueueSize = 256
	}
	if cfg.RateLimit.RedeemPerMinute <= 0 {
		cfg.RateLimit.RedeemPerMinute = 10
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "catalog.yaml"
	}
}

// lookupEnv returns a getter reading the dotenv file first, then the process env.
func lookupEnv(dotenv string) func(string) string {
	vals, err := godotenv.Read(dotenv)
	if err != nil {
		vals = map[string]string{}
	}
	return func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return vals[key]
	}
}

func applyEnv(cfg *Config, get func(string) string) {
	if v := get("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := get("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := get("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := get("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
	if v := get("ENCRYPTION_KEY"); v != "" {
		cfg.Security.EncryptionKey = v
	}
	if v := get("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required")
	}
	if len(c.Security.EncryptionKey) != 32 {
		return errors.New("security.encryption_key must be 32 bytes")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
