// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Open connects to the database and verifies the connection.
// SQLite is limited to one connection so writers never see SQLITE_BUSY.
func Open(dbType, url string) (*sql.DB, error) {
	var driver string
	switch dbType {
	case TypeSQLite, "":
		driver = "sqlite"
	case TypePostgres:
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	conn, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Timestamps are unix nanoseconds, amounts are decimal strings.
const schema = `
-- Auctions
CREATE TABLE IF NOT EXISTS auction (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    scheduled_start BIGINT NOT NULL,
    base_duration_seconds BIGINT NOT NULL CHECK (base_duration_seconds > 0),
    decremental_step TEXT NOT NULL,
    starting_price TEXT NOT NULL,
    currency TEXT NOT NULL,
    phase TEXT NOT NULL DEFAULT 'upcoming' CHECK (phase IN ('upcoming', 'live', 'completed', 'cancelled')),
    access TEXT NOT NULL DEFAULT 'open' CHECK (access IN ('open', 'invited')),
    extension_window_seconds BIGINT NOT NULL,
    extension_amount_seconds BIGINT NOT NULL,
    allow_pre_bids BOOLEAN NOT NULL DEFAULT FALSE,
    cancelled_at BIGINT,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auction_phase ON auction(phase);

-- Extensions (append-only, ordered by ordinal)
CREATE TABLE IF NOT EXISTS auction_extension (
    auction_id TEXT NOT NULL REFERENCES auction(id) ON DELETE CASCADE,
    ordinal INTEGER NOT NULL,
    granted_at BIGINT NOT NULL,
    added_seconds BIGINT NOT NULL CHECK (added_seconds > 0),
    reason TEXT NOT NULL,
    automatic BOOLEAN NOT NULL,
    PRIMARY KEY (auction_id, ordinal)
);

-- Participants
CREATE TABLE IF NOT EXISTS participant (
    auction_id TEXT NOT NULL REFERENCES auction(id) ON DELETE CASCADE,
    participant_id TEXT NOT NULL,
    display_identity TEXT NOT NULL DEFAULT '',
    joined_at BIGINT,
    eligibility TEXT NOT NULL CHECK (eligibility IN ('invited', 'open')),
    PRIMARY KEY (auction_id, participant_id)
);

-- Bids (append-only audit log)
CREATE TABLE IF NOT EXISTS bid (
    id TEXT PRIMARY KEY,
    auction_id TEXT NOT NULL REFERENCES auction(id) ON DELETE CASCADE,
    seq BIGINT NOT NULL,
    participant_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    submitted_at BIGINT NOT NULL,
    accepted BOOLEAN NOT NULL,
    rejection_reason TEXT,
    UNIQUE (auction_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_bid_auction_submitted ON bid(auction_id, submitted_at);

-- Final rank snapshots
CREATE TABLE IF NOT EXISTS rank_snapshot (
    auction_id TEXT PRIMARY KEY REFERENCES auction(id) ON DELETE CASCADE,
    phase TEXT NOT NULL,
    computed_at BIGINT NOT NULL,
    best_amount TEXT,
    bid_count INTEGER NOT NULL,
    payload TEXT NOT NULL
);
`
