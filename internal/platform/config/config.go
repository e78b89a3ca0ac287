// Package config reads the server configuration from the environment so
// main stays lean. Every knob has a usable default; a bare `tagd-server`
// starts on :8080 with the in-memory store and the log notifier.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Store backend selectors accepted by TAGD_STORE.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Server captures everything cmd/server needs to wire the service.
type Server struct {
	Addr     string
	LogLevel string

	Store       string
	PostgresDSN string
	SQLitePath  string

	RedisURL     string
	RedisChannel string

	KafkaBrokers []string
	KafkaTopic   string

	TagDelimiter  string
	UntagOnDelete bool
	DeleteUnused  bool
}

// FromEnv builds a Server config from TAGD_* environment variables.
func FromEnv() Server {
	return Server{
		Addr:     envOr("TAGD_HTTP_ADDR", ":8080"),
		LogLevel: envOr("TAGD_LOG_LEVEL", "info"),

		Store:       envOr("TAGD_STORE", StoreMemory),
		PostgresDSN: os.Getenv("TAGD_POSTGRES_DSN"),
		SQLitePath:  envOr("TAGD_SQLITE_PATH", "tagd.db"),

		RedisURL:     os.Getenv("TAGD_REDIS_URL"),
		RedisChannel: envOr("TAGD_REDIS_CHANNEL", "tagd.events"),

		KafkaBrokers: envList("TAGD_KAFKA_BROKERS"),
		KafkaTopic:   envOr("TAGD_KAFKA_TOPIC", "tagd.events"),

		TagDelimiter:  envOr("TAGD_TAG_DELIMITER", ","),
		UntagOnDelete: envBool("TAGD_UNTAG_ON_DELETE", true),
		DeleteUnused:  envBool("TAGD_DELETE_UNUSED_TAGS", false),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// envList splits a comma-separated variable, dropping empty parts.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
