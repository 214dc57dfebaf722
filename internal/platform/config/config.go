// Package config builds platform configuration from the environment so main
// stays lean. Domain-level capacity settings live in the capacity module's
// own config package; this one covers process wiring only.
package config

import (
	"os"
	"strings"
	"time"

	pstrings "examgate/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	PostgresDSN   string
	Redis         RedisConfig
	KafkaBrokers  []string
	JWTSigningKey string
}

// RedisConfig captures the regional cache connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("EXAMGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("EXAMGATE_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; override in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("EXAMGATE_KAFKA_BROKERS"); raw != "" {
		brokers = pstrings.DedupeAndTrim(strings.Split(raw, ","))
	}

	return Server{
		Addr:          addr,
		PostgresDSN:   os.Getenv("EXAMGATE_POSTGRES_DSN"),
		Redis:         redisFromEnv(),
		KafkaBrokers:  brokers,
		JWTSigningKey: jwtSigningKey,
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("EXAMGATE_REDIS_URL"),
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}
