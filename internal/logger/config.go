package logger

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvConfig is the process-level logger setup, read from LOG_* variables.
type EnvConfig struct {
	Level       string
	Format      string
	ServiceName string
	Environment string // "local" never writes to LogFile

	// Output, when set, replaces stdout and the log file.
	Output io.Writer

	LogFile     string
	LogFileOnly bool
	Rotation    Rotation
}

// Rotation bounds the log file; see lumberjack.Logger.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// LoadFromEnv reads the logger setup. Unset or malformed values fall back to
// the defaults below.
func LoadFromEnv() *EnvConfig {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SERVICE_NAME", "tally")
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("LOG_FILE", "/var/log/tally/app.log")
	v.SetDefault("LOG_FILE_ONLY", false)
	v.SetDefault("LOG_MAX_SIZE", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 7)
	v.SetDefault("LOG_MAX_AGE", 30)
	v.SetDefault("LOG_COMPRESS", true)

	return &EnvConfig{
		Level:       v.GetString("LOG_LEVEL"),
		Format:      v.GetString("LOG_FORMAT"),
		ServiceName: v.GetString("SERVICE_NAME"),
		Environment: strings.ToLower(v.GetString("APP_ENV")),
		LogFile:     v.GetString("LOG_FILE"),
		LogFileOnly: v.GetBool("LOG_FILE_ONLY"),
		Rotation: Rotation{
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE"),
			Compress:   v.GetBool("LOG_COMPRESS"),
		},
	}
}

func (c *EnvConfig) writesFile() bool {
	return c.Environment != "local" && c.LogFile != ""
}

// writer assembles the destination. The returned closer is the rotating file,
// nil when no file is written.
func (c *EnvConfig) writer() (io.Writer, io.Closer) {
	if c.Output != nil {
		return c.Output, nil
	}

	var (
		writers []io.Writer
		file    *lumberjack.Logger
	)
	if !c.writesFile() || !c.LogFileOnly {
		writers = append(writers, os.Stdout)
	}
	if c.writesFile() {
		file = &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    c.Rotation.MaxSizeMB,
			MaxBackups: c.Rotation.MaxBackups,
			MaxAge:     c.Rotation.MaxAgeDays,
			Compress:   c.Rotation.Compress,
		}
		writers = append(writers, file)
	}
	if file == nil {
		return io.MultiWriter(writers...), nil
	}
	return io.MultiWriter(writers...), file
}
