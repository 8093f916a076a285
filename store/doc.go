// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package store implements engine.Store on database/sql.
//
// Bids and extensions are only ever inserted. An accepted bid and the
// extension it triggers are written in one transaction, so the bid log and the
// auction's close time can never disagree after a crash.
package store
