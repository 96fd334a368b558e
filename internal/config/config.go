// Package config reads the server settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	StoreOxiDB  = "oxidb"
	StoreSQLite = "sqlite"
)

type Config struct {
	HTTPAddr   string
	Store      string
	OxiDBHost  string
	OxiDBPort  int
	PoolSize   int
	SQLitePath string
	JWTSecret  string
	AdminEmail string
	AdminPass  string
	GelfAddr   string
	LogLevel   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("config: ignoring unreadable .env")
	}
	cfg := &Config{
		HTTPAddr:   getEnv("DMS_ADDR", ":8080"),
		Store:      strings.ToLower(getEnv("DMS_STORE", StoreOxiDB)),
		OxiDBHost:  getEnv("OXIDB_HOST", "127.0.0.1"),
		OxiDBPort:  getEnvInt("OXIDB_PORT", 4444),
		PoolSize:   getEnvInt("DMS_POOL_SIZE", 3),
		SQLitePath: getEnv("DMS_SQLITE_PATH", "edms.db"),
		JWTSecret:  getEnv("DMS_JWT_SECRET", "edms-dev-secret-change-me"),
		AdminEmail: getEnv("DMS_ADMIN_EMAIL", "admin@edms.local"),
		AdminPass:  getEnv("DMS_ADMIN_PASS", "admin123"),
		GelfAddr:   getEnv("GELF_ADDR", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
	if cfg.Store != StoreOxiDB && cfg.Store != StoreSQLite {
		log.WithField("store", cfg.Store).Warn("config: unknown DMS_STORE, using oxidb")
		cfg.Store = StoreOxiDB
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.WithField(key, v).Warn("config: not a number, using default")
		return fallback
	}
	return n
}
