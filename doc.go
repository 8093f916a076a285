// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the lowbid API server.

lowbid runs reverse auctions: suppliers compete to offer the lowest price,
each bid must undercut the current best by a fixed step, and a bid in the
final minutes pushes the close time back so nobody wins by sniping.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=file:lowbid.db ADMIN_KEY_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

A .env file in the working directory is loaded if present. Variables that are
already set in the environment win over the file.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL connection string
  - ADMIN_KEY_SALT (-admin-salt): Secret for admin key HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - SWEEP_INTERVAL (-sweep): How often finished sessions are retired (default: 1s)
  - EXTENSION_WINDOW (-extension-window): Default auto-extension window (default: 3m)
  - EXTENSION_AMOUNT (-extension-amount): Default auto-extension amount (default: 3m)
  - RANK_TOP_N (-rank-top): Ranks included in state and deltas (default: 10)
  - SUBSCRIBER_BUFFER (-subscriber-buffer): Deltas buffered per stream (default: 64)

# Architecture

  - engine: Auction clock, bid validation, ranking, extensions, sessions
  - store: engine.Store on database/sql
  - handlers: HTTP request handlers (auctions, bidding, admin, streaming)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response and domain types
  - auth: Admin key generation and validation
  - db: Connection and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
