// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: SQLite or PostgreSQL connection string (required)
  - DatabaseType: sqlite (default) or postgres
  - AdminKeySalt: Secret for admin key HMAC (required)
  - SweepInterval: How often sessions are checked against the clock (default: 1s)
  - ExtensionWindow / ExtensionAmount: Default anti-sniping policy (default: 3m / 3m)
  - RankTopN: Rank entries in state deltas (default: 10)
  - SubscriberBuffer: Deltas buffered per stream subscriber (default: 64)

# CLI Flags

	-p                  Port
	-d                  Database URL
	-t                  Database type
	-env-file           Env file to load first (default: .env, optional)
	-admin-salt         Admin key salt
	-sweep              Sweep interval
	-extension-window   Default extension window
	-extension-amount   Default extension amount
	-rank-top           Rank entries in deltas
	-subscriber-buffer  Buffered deltas per subscriber

# Environment Variables

	PORT, DATABASE_URL, DATABASE_TYPE, ADMIN_KEY_SALT, SWEEP_INTERVAL,
	EXTENSION_WINDOW, EXTENSION_AMOUNT, RANK_TOP_N, SUBSCRIBER_BUFFER

CLI flags take precedence over environment variables. Variables from the env
file never override ones already set in the process environment.
*/
package cliparse
