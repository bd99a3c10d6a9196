package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/kjannette/openarb-backend/internal/logging"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

type Config struct {
	// API
	APIPort         int
	APIKey          string
	CORSAllowOrigin string

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Persistence
	StateBackend            string
	SnapshotIntervalSeconds int
	BadgerPath              string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Notifications
	WebhookURL string
	BotName    string

	// Identity
	IdentityRequireSignature bool
	IdentityChallenge        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:         envInt("API_PORT", 8080),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		LogLevel:      envStr("LOG_LEVEL", "info"),
		LogFormat:     strings.ToLower(envStr("LOG_FORMAT", "text")),
		LogFile:       envStr("LOG_FILE", ""),
		LogMaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: envInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 28),

		StateBackend:            strings.ToLower(envStr("STATE_BACKEND", BackendMemory)),
		SnapshotIntervalSeconds: envInt("SNAPSHOT_INTERVAL_SECONDS", 30),
		BadgerPath:              envStr("BADGER_PATH", "./data/openarb"),

		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "openarb"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		WebhookURL: envStr("WEBHOOK_URL", ""),
		BotName:    envStr("BOT_NAME", "OpenArb"),

		IdentityRequireSignature: envBool("IDENTITY_REQUIRE_SIGNATURE", false),
		IdentityChallenge:        envStr("IDENTITY_CHALLENGE", "openarb"),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Sprintf("API_PORT %d is out of range", c.APIPort))
	}

	switch c.StateBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DBUser == "" {
			errs = append(errs, "DB_USER is required when STATE_BACKEND=postgres")
		}
	case BackendBadger:
		if c.BadgerPath == "" {
			errs = append(errs, "BADGER_PATH is required when STATE_BACKEND=badger")
		}
	default:
		errs = append(errs, fmt.Sprintf("STATE_BACKEND %q must be one of memory, postgres, badger", c.StateBackend))
	}

	if c.StateBackend != BackendMemory && c.SnapshotIntervalSeconds <= 0 {
		errs = append(errs, "SNAPSHOT_INTERVAL_SECONDS must be positive")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT %q must be text or json", c.LogFormat))
	}

	if c.IdentityRequireSignature && c.IdentityChallenge == "" {
		errs = append(errs, "IDENTITY_CHALLENGE is required when IDENTITY_REQUIRE_SIGNATURE=true")
	}

	if c.APIKey == "" {
		color.Yellow("[WARN] API_KEY not set, REST API has no authentication")
	}
	if c.StateBackend == BackendMemory {
		color.Yellow("[WARN] STATE_BACKEND=memory, accounts and trades are lost on restart")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgHiBlack)

	title.Println("=== OpenArb Backend Configuration ===")
	label.Print("API Port: ")
	fmt.Println(c.APIPort)
	label.Print("API Auth: ")
	fmt.Println(boolLabel(c.APIKey != "", "enabled (Bearer token)", "disabled"))
	label.Print("CORS Origin: ")
	fmt.Println(c.CORSAllowOrigin)
	fmt.Println("--------------------------------------")
	label.Print("State Backend: ")
	fmt.Println(c.StateBackend)
	switch c.StateBackend {
	case BackendPostgres:
		label.Print("  Database: ")
		fmt.Printf("%s@%s:%d/%s\n", c.DBUser, c.DBHost, c.DBPort, c.DBName)
	case BackendBadger:
		label.Print("  Path: ")
		fmt.Println(c.BadgerPath)
	}
	if c.StateBackend != BackendMemory {
		label.Print("  Snapshot Interval: ")
		fmt.Printf("%ds\n", c.SnapshotIntervalSeconds)
	}
	fmt.Println("--------------------------------------")
	label.Print("Identity Signatures: ")
	fmt.Println(boolLabel(c.IdentityRequireSignature, "required", "not required"))
	label.Print("Webhook: ")
	fmt.Println(boolLabel(c.WebhookURL != "", "configured", "not set"))
	label.Print("Logging: ")
	fmt.Printf("%s/%s%s\n", c.LogLevel, c.LogFormat, boolLabel(c.LogFile != "", " -> "+c.LogFile, ""))
	title.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSeconds) * time.Second
}

func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
		Compress:   true,
	}
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
