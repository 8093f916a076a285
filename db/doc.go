// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Connecting

Open picks the driver from the database type (sqlite via modernc.org/sqlite,
postgres via lib/pq) and pings the connection:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same statements run on SQLite and PostgreSQL.

# Tables

  - auction: schedule, price rules, access mode, cached phase
  - auction_extension: granted extensions in order
  - participant: one row per participant per auction
  - bid: append-only bid log, accepted and rejected
  - rank_snapshot: ranking materialized when an auction closes

# Relationships

	auction 1──* auction_extension
	auction 1──* participant
	auction 1──* bid
	auction 1──1 rank_snapshot

Timestamps are stored as unix nanoseconds so both drivers agree on them.
*/
package db
