package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	AdminKeySalt  string
	EnvFile       string
	SweepInterval time.Duration

	// Defaults applied to auctions created without an explicit policy
	ExtensionWindow time.Duration
	ExtensionAmount time.Duration

	RankTopN         int
	SubscriberBuffer int
}

// ParseFlags validates flags and fills the rest from the environment.
// CLI flags win over env variables, env variables win over defaults.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("lowbid", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.EnvFile, "env-file", ".env", "Optional env file")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")

	// Engine tuning
	fs.DurationVar(&cfg.SweepInterval, "sweep", 0, "Session sweep interval")
	fs.DurationVar(&cfg.ExtensionWindow, "extension-window", 0, "Default auto-extension window")
	fs.DurationVar(&cfg.ExtensionAmount, "extension-amount", 0, "Default auto-extension amount")
	fs.IntVar(&cfg.RankTopN, "rank-top", 0, "Rank entries included in state deltas")
	fs.IntVar(&cfg.SubscriberBuffer, "subscriber-buffer", 0, "Buffered deltas per stream subscriber")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadEnvFile(cfg.EnvFile); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		port, err := envInt("PORT", 3318)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	var err error
	if cfg.SweepInterval == 0 {
		if cfg.SweepInterval, err = envDuration("SWEEP_INTERVAL", time.Second); err != nil {
			return Config{}, err
		}
	}
	if cfg.ExtensionWindow == 0 {
		if cfg.ExtensionWindow, err = envDuration("EXTENSION_WINDOW", 3*time.Minute); err != nil {
			return Config{}, err
		}
	}
	if cfg.ExtensionAmount == 0 {
		if cfg.ExtensionAmount, err = envDuration("EXTENSION_AMOUNT", 3*time.Minute); err != nil {
			return Config{}, err
		}
	}
	if cfg.RankTopN == 0 {
		if cfg.RankTopN, err = envInt("RANK_TOP_N", 10); err != nil {
			return Config{}, err
		}
	}
	if cfg.SubscriberBuffer == 0 {
		if cfg.SubscriberBuffer, err = envInt("SUBSCRIBER_BUFFER", 64); err != nil {
			return Config{}, err
		}
	}

	if cfg.SweepInterval < 0 || cfg.ExtensionWindow < 0 || cfg.ExtensionAmount < 0 {
		return Config{}, errors.New("durations must not be negative")
	}

	return cfg, nil
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return d, nil
}
