package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Simplici0/marginlab/internal/margin"
)

const (
	defaultDBPath   = "./dev.db"
	defaultPort     = "8080"
	defaultEnv      = "development"
	defaultLogLevel = "info"
	defaultJWTTTL   = 24 * time.Hour
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env           string
	Port          string
	DBPath        string
	LogLevel      string
	AdminEmail    string
	AdminPassword string
	JWTSecret     string
	JWTTTL        time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DailyCalcLimit caps public calculations per client per day; 0 disables it.
	DailyCalcLimit int
	// RetentionDays removes saved calculations older than this; 0 keeps them forever.
	RetentionDays int

	// Warnings collects problems found while loading, for the caller to log.
	Warnings []string

	thresholds margin.Thresholds
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	var warnings []string
	// Best-effort: production should use real env injection.
	if err := loadDotEnv(".env"); err != nil {
		warnings = append(warnings, fmt.Sprintf("could not read .env: %v", err))
	}

	cfg := Config{
		Warnings:       warnings,
		Env:            getEnv("APP_ENV", defaultEnv),
		Port:           getEnv("PORT", defaultPort),
		DBPath:         getEnv("DB_PATH", defaultDBPath),
		LogLevel:       getEnv("LOG_LEVEL", defaultLogLevel),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         getEnvDuration("JWT_TTL", defaultJWTTTL),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		DailyCalcLimit: getEnvInt("DAILY_CALC_LIMIT", 100),
		RetentionDays:  getEnvInt("RETENTION_DAYS", 0),
	}

	defaults := margin.DefaultThresholds()
	cfg.thresholds = margin.Thresholds{
		MinMarginRate:     getEnvFloat("MIN_MARGIN_RATE", defaults.MinMarginRate),
		TargetMarginRate:  getEnvFloat("TARGET_MARGIN_RATE", defaults.TargetMarginRate),
		MaxShippingShare:  getEnvFloat("MAX_SHIPPING_SHARE", defaults.MaxShippingShare),
		MaxFeeRate:        getEnvFloat("MAX_FEE_RATE", defaults.MaxFeeRate),
		MaxMarketingShare: getEnvFloat("MAX_MARKETING_SHARE", defaults.MaxMarketingShare),
		MaxReturnRate:     getEnvFloat("MAX_RETURN_RATE", defaults.MaxReturnRate),
		MaxPaybackMonths:  getEnvFloat("MAX_PAYBACK_MONTHS", defaults.MaxPaybackMonths),
	}
	if err := cfg.thresholds.Validate(); err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("%v; using default thresholds", err))
		cfg.thresholds = defaults
	}

	if cfg.AdminEmail == "" {
		cfg.Warnings = append(cfg.Warnings, "ADMIN_EMAIL is not set")
	}
	if cfg.AdminPassword == "" {
		cfg.Warnings = append(cfg.Warnings, "ADMIN_PASSWORD is not set")
	}
	if cfg.JWTSecret == "" {
		cfg.Warnings = append(cfg.Warnings, "JWT_SECRET is not set")
	}

	return cfg
}

// IsDev reports whether the app runs in development mode.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	}
	return false
}

// Thresholds returns the recommendation thresholds used to seed the database.
func (c Config) Thresholds() margin.Thresholds {
	return c.thresholds
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
