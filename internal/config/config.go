package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultBatchSize is the number of rows processed between progress checkpoints.
const DefaultBatchSize = 50

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres or mysql
	Path            string        `mapstructure:"path"`   // sqlite file path
	URL             string        `mapstructure:"url"`    // full DSN, takes precedence over the fields below
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	default:
		return c.Path
	}
}

type UploadConfig struct {
	StagingDir  string `mapstructure:"staging_dir"`
	MaxFileSize int64  `mapstructure:"max_file_size"` // bytes
	BatchSize   int    `mapstructure:"batch_size"`
}

type StorageConfig struct {
	ArchiveEnabled bool   `mapstructure:"archive_enabled"`
	Type           string `mapstructure:"type"` // local, r2, s3, s3compatible; detected from endpoint when empty
	LocalDir       string `mapstructure:"local_dir"`
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Prefix         string `mapstructure:"prefix"`
}

type NotifyConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type WebhookConfig struct {
	URL        string        `mapstructure:"url"`
	Secret     string        `mapstructure:"secret"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type SweeperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"` // cron expression or descriptor, seconds field optional
	MaxAge   time.Duration `mapstructure:"max_age"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("notify.webhook.url", "WEBHOOK_URL")
	v.BindEnv("notify.webhook.secret", "WEBHOOK_SECRET")
	v.BindEnv("notify.redis.addr", "REDIS_ADDR")
	v.BindEnv("notify.redis.password", "REDIS_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Upload.BatchSize <= 0 {
		cfg.Upload.BatchSize = DefaultBatchSize
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/tally.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("upload.staging_dir", "./data/staging")
	v.SetDefault("upload.max_file_size", 10<<20)
	v.SetDefault("upload.batch_size", DefaultBatchSize)

	v.SetDefault("storage.archive_enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.local_dir", "./data/archive")
	v.SetDefault("storage.bucket", "tally-uploads")
	v.SetDefault("storage.prefix", "uploads")

	v.SetDefault("notify.webhook.timeout", 10*time.Second)
	v.SetDefault("notify.webhook.retry_count", 3)
	v.SetDefault("notify.redis.enabled", false)
	v.SetDefault("notify.redis.addr", "localhost:6379")
	v.SetDefault("notify.redis.channel", "tally:uploads")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.schedule", "@every 15m")
	v.SetDefault("sweeper.max_age", 24*time.Hour)
}
