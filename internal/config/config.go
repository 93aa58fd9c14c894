// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Database    DatabaseConfig
	Server      ServerConfig
	Auth        AuthConfig
	Scoring     ScoringConfig
	Leaderboard LeaderboardConfig
	Competition CompetitionConfig
	Jobs        JobsConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Events      EventsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	DataDir     string // Base directory for the database, auth key and cache
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, pretty, or empty for auto
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	Path string // default: {data}/ironcrew.db
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string // empty allows any origin
}

// AuthConfig holds access token configuration.
type AuthConfig struct {
	KeyPath             string // default: {data}/auth.key
	AccessTokenDuration time.Duration
}

// ScoringConfig holds the points engine constants.
type ScoringConfig struct {
	WorkoutWeight    int64
	WinWeight        int64
	StreakMultiplier float64
}

// LeaderboardConfig holds leaderboard aggregation settings.
type LeaderboardConfig struct {
	CacheDir  string // empty keeps the cache in memory
	CacheTTL  time.Duration
	Snapshots bool
}

// CompetitionConfig holds competition and duel limits.
type CompetitionConfig struct {
	MatchmakingDays int
	MaxDurationDays int
}

// JobsConfig holds periodic job intervals.
type JobsConfig struct {
	Enabled          bool
	FinalizeInterval time.Duration
	PairingInterval  time.Duration
}

// RedisConfig holds the optional Redis connection used for job locks.
// Only Addr is mandatory; an empty Addr selects the in-process lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds per-user limits for mutating endpoints.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// EventsConfig holds event stream limits.
type EventsConfig struct {
	MaxStreamsPerUser int // 0 disables the cap
	Heartbeat         time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return loadConfig(flag.CommandLine, os.Args[1:])
}

func loadConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")
	dataDir := fs.String("data-dir", "", "Base directory for server data")
	dbPath := fs.String("db-path", "", "Path to the SQLite database")
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	redisAddr := fs.String("redis-addr", "", "Redis address for job locks (optional)")
	jobsEnabled := fs.String("jobs", "", "Run periodic jobs (default: true)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %q: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataDir:     getConfigValue(*dataDir, "DATA_DIR", "./data"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Database: DatabaseConfig{
			Path: getConfigValue(*dbPath, "DB_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "")),
		},
		Auth: AuthConfig{
			KeyPath: getConfigValue("", "AUTH_KEY_PATH", ""),
		},
		Leaderboard: LeaderboardConfig{
			CacheDir:  getConfigValue("", "LEADERBOARD_CACHE_DIR", ""),
			Snapshots: getBoolConfigValue("", "LEADERBOARD_SNAPSHOTS", true),
		},
		Competition: CompetitionConfig{
			MatchmakingDays: getIntConfigValue("", "MATCHMAKING_DURATION_DAYS", 7),
			MaxDurationDays: getIntConfigValue("", "MAX_DURATION_DAYS", 30),
		},
		Jobs: JobsConfig{
			Enabled: getBoolConfigValue(*jobsEnabled, "JOBS_ENABLED", true),
		},
		Redis: RedisConfig{
			Addr:     getConfigValue(*redisAddr, "REDIS_ADDR", ""),
			Password: getConfigValue("", "REDIS_PASSWORD", ""),
			DB:       getIntConfigValue("", "REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Burst: getIntConfigValue("", "RATE_LIMIT_BURST", 20),
		},
		Events: EventsConfig{
			MaxStreamsPerUser: getIntConfigValue("", "SSE_MAX_STREAMS_PER_USER", 5),
		},
	}

	var err error
	durations := []struct {
		target *time.Duration
		key    string
		def    string
	}{
		{&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Auth.AccessTokenDuration, "ACCESS_TOKEN_DURATION", "24h"},
		{&cfg.Leaderboard.CacheTTL, "LEADERBOARD_CACHE_TTL", "30s"},
		{&cfg.Jobs.FinalizeInterval, "FINALIZE_INTERVAL", "1m"},
		{&cfg.Jobs.PairingInterval, "PAIRING_INTERVAL", "5m"},
		{&cfg.Events.Heartbeat, "SSE_HEARTBEAT_INTERVAL", "30s"},
	}
	for _, d := range durations {
		raw := getConfigValue("", d.key, d.def)
		if *d.target, err = time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.key, raw, err)
		}
	}

	if cfg.Scoring.WorkoutWeight, err = getInt64EnvValue("POINTS_WORKOUT_WEIGHT", 10); err != nil {
		return nil, err
	}
	if cfg.Scoring.WinWeight, err = getInt64EnvValue("POINTS_WIN_WEIGHT", 50); err != nil {
		return nil, err
	}
	if cfg.Scoring.StreakMultiplier, err = getFloatEnvValue("POINTS_STREAK_MULTIPLIER", 1.1); err != nil {
		return nil, err
	}
	if cfg.RateLimit.RPS, err = getFloatEnvValue("RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Scoring.WorkoutWeight < 0 || c.Scoring.WinWeight < 0 {
		return errors.New("points weights must not be negative")
	}
	if c.Scoring.StreakMultiplier <= 1 {
		return fmt.Errorf("streak multiplier must be greater than 1, got %v", c.Scoring.StreakMultiplier)
	}

	if c.Competition.MatchmakingDays < 1 {
		return errors.New("matchmaking duration must be at least one day")
	}
	if c.Competition.MaxDurationDays < c.Competition.MatchmakingDays {
		return errors.New("max duration must cover the matchmaking duration")
	}

	if c.Events.MaxStreamsPerUser < 0 {
		return errors.New("SSE stream cap must not be negative")
	}
	if c.Events.Heartbeat <= 0 {
		return errors.New("SSE heartbeat interval must be positive")
	}

	return nil
}

// expandPaths makes the data directory absolute and fills derived paths.
func (c *Config) expandPaths() error {
	dir, err := filepath.Abs(c.App.DataDir)
	if err != nil {
		return err
	}
	c.App.DataDir = filepath.Clean(dir)

	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.App.DataDir, "ironcrew.db")
	}
	if c.Auth.KeyPath == "" {
		c.Auth.KeyPath = filepath.Join(c.App.DataDir, "auth.key")
	}
	return nil
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

func getInt64EnvValue(envKey string, defaultValue int64) (int64, error) {
	strValue := os.Getenv(envKey)
	if strValue == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return v, nil
}

func getFloatEnvValue(envKey string, defaultValue float64) (float64, error) {
	strValue := os.Getenv(envKey)
	if strValue == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return v, nil
}
