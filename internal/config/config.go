// Package config loads application settings from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Mirror   MirrorConfig
	Sync     SyncConfig
	Storage  StorageConfig
	Document DocumentConfig
	Server   ServerConfig
	Auth     AuthConfig
}

// MirrorConfig holds the remote endpoint settings used by the client.
type MirrorConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// SyncConfig holds the polling loop settings.
type SyncConfig struct {
	Interval    time.Duration
	MinInterval time.Duration
	MaxErrors   int
	WatchEvery  time.Duration
}

// StorageConfig holds the local database settings.
type StorageConfig struct {
	DSN    string
	Prefix string
}

// DocumentConfig holds the server-side data file settings.
type DocumentConfig struct {
	Path      string
	BackupDir string
	Retain    int
}

// ServerConfig holds the server listen settings.
type ServerConfig struct {
	Addr string
}

// AuthConfig holds the authentication settings.
type AuthConfig struct {
	JWTSecret   string
	TokenTTL    time.Duration
	MaxAttempts int
	LoginWindow time.Duration
	BlockFor    time.Duration
}

// Load reads the configuration from environment variables.
func Load() *Config {
	return &Config{
		Mirror: MirrorConfig{
			BaseURL: getEnv("MIRROR_URL", "http://localhost:8080"),
			Token:   getEnv("MIRROR_TOKEN", "ScoutPlus(WebApp)"),
			Timeout: getEnvAsDuration("MIRROR_TIMEOUT", 10*time.Second),
		},
		Sync: SyncConfig{
			Interval:    getEnvAsDuration("SYNC_INTERVAL", 15*time.Second),
			MinInterval: getEnvAsDuration("SYNC_MIN_INTERVAL", 5*time.Second),
			MaxErrors:   getEnvAsInt("SYNC_MAX_ERRORS", 5),
			WatchEvery:  getEnvAsDuration("SYNC_WATCH_INTERVAL", 2*time.Second),
		},
		Storage: StorageConfig{
			DSN:    getEnv("STORAGE_DSN", "scoutsync.db"),
			Prefix: getEnv("STORAGE_PREFIX", "scoutpluse_"),
		},
		Document: DocumentConfig{
			Path:      getEnv("DATA_FILE", "data.json"),
			BackupDir: getEnv("BACKUP_DIR", "backups"),
			Retain:    getEnvAsInt("BACKUP_RETAIN", 10),
		},
		Server: ServerConfig{
			Addr: getEnv("SERVER_ADDR", ":8080"),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", "change-me"),
			TokenTTL:    getEnvAsDuration("TOKEN_TTL", 24*time.Hour),
			MaxAttempts: getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginWindow: getEnvAsDuration("LOGIN_WINDOW", 15*time.Minute),
			BlockFor:    getEnvAsDuration("LOGIN_BLOCK_FOR", 15*time.Minute),
		},
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
