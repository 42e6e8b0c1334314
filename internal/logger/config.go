package logger

import (
	"io"
	"os"
	"strconv"
)

// EnvConfig holds logger configuration loaded from TYPINGPOOL_LOG_* variables.
type EnvConfig struct {
	Level       string
	Format      string
	Output      io.Writer // overrides every other output setting
	ServiceName string
	Environment string // local, dev, prod

	LogFile     string
	LogFileOnly bool

	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// LoadFromEnv reads logger configuration from the environment.
func LoadFromEnv() *EnvConfig {
	return &EnvConfig{
		Level:       getEnv("TYPINGPOOL_LOG_LEVEL", "info"),
		Format:      getEnv("TYPINGPOOL_LOG_FORMAT", "text"),
		ServiceName: getEnv("TYPINGPOOL_SERVICE_NAME", "typingpool"),
		Environment: getEnv("TYPINGPOOL_ENV", "local"),

		LogFile:     getEnv("TYPINGPOOL_LOG_FILE", "typingpool.log"),
		LogFileOnly: getEnvBool("TYPINGPOOL_LOG_FILE_ONLY", false),

		MaxSize:    getEnvInt("TYPINGPOOL_LOG_MAX_SIZE", 20),
		MaxBackups: getEnvInt("TYPINGPOOL_LOG_MAX_BACKUPS", 5),
		MaxAge:     getEnvInt("TYPINGPOOL_LOG_MAX_AGE", 30),
		Compress:   getEnvBool("TYPINGPOOL_LOG_COMPRESS", true),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return i
}
