package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	MySQLHost     string
	MySQLPort     string
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	AllowedOrigins []string

	// Staleness sweep knobs. Membership rows are advisory; rooms idle past
	// RoomTTL are deleted wholesale by the periodic sweep.
	CleanupInterval time.Duration
	RoomTTL         time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func Load() Config {
	// .env is optional; plain environment variables win in production.
	_ = godotenv.Load()

	return Config{
		Env:  getenv("ENV", "development"),
		Port: getenv("PORT", "4000"),

		MySQLHost:     getenv("MYSQL_HOST", "localhost"),
		MySQLPort:     getenv("MYSQL_PORT", "3306"),
		MySQLUser:     getenv("MYSQL_USER", "root"),
		MySQLPassword: os.Getenv("MYSQL_PASSWORD"),
		MySQLDatabase: getenv("MYSQL_DATABASE", "vibewithme"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "room-activity"),

		AllowedOrigins: splitNonEmpty(getenv("ALLOWED_ORIGINS", "http://localhost:19006")),

		CleanupInterval: getduration("CLEANUP_INTERVAL", time.Minute),
		RoomTTL:         getduration("ROOM_TTL", 24*time.Hour),
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
