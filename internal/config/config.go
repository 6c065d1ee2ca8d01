package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	RedisAddr  string
	JWTSecret  string
	LogLevel   string

	// RoomTTL is fixed at creation; it does not slide on activity.
	RoomTTL time.Duration
	// SnapshotFlush is the coalescing window for board persistence.
	SnapshotFlush time.Duration
	// ReapInterval is how often expired rooms are swept from the store.
	ReapInterval time.Duration
}

func Load() *Config {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	return &Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "inkboard"),
		DBPassword:    getEnv("DB_PASSWORD", "inkboard_dev_password"),
		DBName:        getEnv("DB_NAME", "inkboard"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		RoomTTL:       getDuration("ROOM_TTL", 30*24*time.Hour),
		SnapshotFlush: getDuration("SNAPSHOT_FLUSH", 500*time.Millisecond),
		ReapInterval:  getDuration("REAP_INTERVAL", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid duration %q, using %s", val, fallback)
		return fallback
	}
	return d
}
