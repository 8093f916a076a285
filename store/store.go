// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/lowbid/engine"
	"github.com/danielhkuo/lowbid/models"
)

// ErrSnapshotNotFound is returned when an auction has no final ranking yet.
var ErrSnapshotNotFound = errors.New("rank snapshot not found")

// SQLStore persists auctions, participants, bids and snapshots through database/sql.
// The queries run unchanged on SQLite and PostgreSQL.
type SQLStore struct {
	db *sql.DB
}

var _ engine.Store = (*SQLStore)(nil)

func New(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// CreateAuction inserts a new auction together with any extensions it already carries.
func (s *SQLStore) CreateAuction(ctx context.Context, a models.Auction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO auction (id, title, scheduled_start, base_duration_seconds, decremental_step,
		                     starting_price, currency, phase, access, extension_window_seconds,
		                     extension_amount_seconds, allow_pre_bids, cancelled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, a.ID, a.Title, toNanos(a.ScheduledStart), a.BaseDurationSeconds, a.DecrementalStep.String(),
		a.StartingPrice.String(), a.Currency, string(a.Phase), a.Access, a.ExtensionWindowSeconds,
		a.ExtensionAmountSeconds, a.AllowPreBids, nullableNanos(a.CancelledAt), toNanos(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert auction: %w", err)
	}

	for i, ext := range a.Extensions {
		if err := insertExtension(ctx, tx, a.ID, i+1, ext); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit auction: %w", err)
	}
	return nil
}

func (s *SQLStore) LoadAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	var (
		a           models.Auction
		start       int64
		created     int64
		cancelledAt sql.NullInt64
		step, price string
		phase       string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, scheduled_start, base_duration_seconds, decremental_step, starting_price,
		       currency, phase, access, extension_window_seconds, extension_amount_seconds,
		       allow_pre_bids, cancelled_at, created_at
		FROM auction
		WHERE id = $1
	`, auctionID).Scan(
		&a.ID, &a.Title, &start, &a.BaseDurationSeconds, &step, &price,
		&a.Currency, &phase, &a.Access, &a.ExtensionWindowSeconds, &a.ExtensionAmountSeconds,
		&a.AllowPreBids, &cancelledAt, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Auction{}, engine.ErrAuctionNotFound
	}
	if err != nil {
		return models.Auction{}, fmt.Errorf("query auction: %w", err)
	}

	a.ScheduledStart = fromNanos(start)
	a.CreatedAt = fromNanos(created)
	a.CancelledAt = timePtr(cancelledAt)
	a.Phase = models.Phase(phase)
	if a.DecrementalStep, err = decimal.NewFromString(step); err != nil {
		return models.Auction{}, fmt.Errorf("parse decremental step: %w", err)
	}
	if a.StartingPrice, err = decimal.NewFromString(price); err != nil {
		return models.Auction{}, fmt.Errorf("parse starting price: %w", err)
	}

	a.Extensions, err = s.loadExtensions(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	return a, nil
}

func (s *SQLStore) loadExtensions(ctx context.Context, auctionID string) ([]models.Extension, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT granted_at, added_seconds, reason, automatic
		FROM auction_extension
		WHERE auction_id = $1
		ORDER BY ordinal
	`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("query extensions: %w", err)
	}
	defer rows.Close()

	extensions := []models.Extension{}
	for rows.Next() {
		var ext models.Extension
		var granted int64
		if err := rows.Scan(&granted, &ext.AddedSeconds, &ext.Reason, &ext.Automatic); err != nil {
			return nil, fmt.Errorf("scan extension: %w", err)
		}
		ext.GrantedAt = fromNanos(granted)
		extensions = append(extensions, ext)
	}
	return extensions, rows.Err()
}

func (s *SQLStore) LoadParticipants(ctx context.Context, auctionID string) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_id, auction_id, display_identity, joined_at, eligibility
		FROM participant
		WHERE auction_id = $1
		ORDER BY participant_id
	`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	participants := []models.Participant{}
	for rows.Next() {
		var p models.Participant
		var joined sql.NullInt64
		if err := rows.Scan(&p.ParticipantID, &p.AuctionID, &p.DisplayIdentity, &joined, &p.Eligibility); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.JoinedAt = timePtr(joined)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *SQLStore) LoadBids(ctx context.Context, auctionID string) ([]models.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, auction_id, seq, participant_id, amount, submitted_at, accepted, rejection_reason
		FROM bid
		WHERE auction_id = $1
		ORDER BY seq
	`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("query bids: %w", err)
	}
	defer rows.Close()

	bids := []models.Bid{}
	for rows.Next() {
		var (
			b         models.Bid
			amount    string
			submitted int64
			reason    sql.NullString
		)
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.Seq, &b.ParticipantID, &amount, &submitted, &b.Accepted, &reason); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse bid amount: %w", err)
		}
		b.SubmittedAt = fromNanos(submitted)
		if reason.Valid {
			r := models.RejectReason(reason.String)
			b.RejectionReason = &r
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func (s *SQLStore) AppendBid(ctx context.Context, bid models.Bid, grant *models.Extension, joined *models.Participant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if joined != nil {
		if err := saveParticipant(ctx, tx, *joined); err != nil {
			return err
		}
	}

	var reason sql.NullString
	if bid.RejectionReason != nil {
		reason = sql.NullString{String: string(*bid.RejectionReason), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bid (id, auction_id, seq, participant_id, amount, submitted_at, accepted, rejection_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, bid.BidID, bid.AuctionID, bid.Seq, bid.ParticipantID, bid.Amount.String(), toNanos(bid.SubmittedAt), bid.Accepted, reason)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}

	if grant != nil {
		if err := appendExtension(ctx, tx, bid.AuctionID, *grant); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bid: %w", err)
	}
	return nil
}

func (s *SQLStore) AppendExtension(ctx context.Context, auctionID string, ext models.Extension) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendExtension(ctx, tx, auctionID, ext); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit extension: %w", err)
	}
	return nil
}

func appendExtension(ctx context.Context, tx *sql.Tx, auctionID string, ext models.Extension) error {
	var count int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM auction_extension WHERE auction_id = $1
	`, auctionID).Scan(&count)
	if err != nil {
		return fmt.Errorf("count extensions: %w", err)
	}
	return insertExtension(ctx, tx, auctionID, count+1, ext)
}

func insertExtension(ctx context.Context, tx *sql.Tx, auctionID string, ordinal int, ext models.Extension) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO auction_extension (auction_id, ordinal, granted_at, added_seconds, reason, automatic)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, auctionID, ordinal, toNanos(ext.GrantedAt), ext.AddedSeconds, ext.Reason, ext.Automatic)
	if err != nil {
		return fmt.Errorf("insert extension: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) SaveParticipant(ctx context.Context, p models.Participant) error {
	return saveParticipant(ctx, s.db, p)
}

func saveParticipant(ctx context.Context, db execer, p models.Participant) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO participant (auction_id, participant_id, display_identity, joined_at, eligibility)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (auction_id, participant_id) DO UPDATE
		SET display_identity = excluded.display_identity,
		    joined_at = excluded.joined_at,
		    eligibility = excluded.eligibility
	`, p.AuctionID, p.ParticipantID, p.DisplayIdentity, nullableNanos(p.JoinedAt), p.Eligibility)
	if err != nil {
		return fmt.Errorf("save participant: %w", err)
	}
	return nil
}

func (s *SQLStore) SetPhase(ctx context.Context, auctionID string, phase models.Phase) error {
	_, err := s.db.ExecContext(ctx, `UPDATE auction SET phase = $1 WHERE id = $2`, string(phase), auctionID)
	if err != nil {
		return fmt.Errorf("update phase: %w", err)
	}
	return nil
}

func (s *SQLStore) MarkCancelled(ctx context.Context, auctionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auction SET cancelled_at = $1 WHERE id = $2 AND cancelled_at IS NULL
	`, toNanos(at), auctionID)
	if err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark cancelled %s: %w", auctionID, engine.ErrAlreadyClosed)
	}
	return nil
}

func (s *SQLStore) SaveRankSnapshot(ctx context.Context, snap models.RankSnapshot) error {
	payload, err := json.Marshal(snap.Entries)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	var best sql.NullString
	if snap.BestAmount.Valid {
		best = sql.NullString{String: snap.BestAmount.Decimal.String(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rank_snapshot (auction_id, phase, computed_at, best_amount, bid_count, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (auction_id) DO UPDATE
		SET phase = excluded.phase,
		    computed_at = excluded.computed_at,
		    best_amount = excluded.best_amount,
		    bid_count = excluded.bid_count,
		    payload = excluded.payload
	`, snap.AuctionID, string(snap.Phase), toNanos(snap.ComputedAt), best, snap.BidCount, string(payload))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadRankSnapshot returns the ranking written when the auction closed.
func (s *SQLStore) LoadRankSnapshot(ctx context.Context, auctionID string) (models.RankSnapshot, error) {
	var (
		snap     models.RankSnapshot
		phase    string
		computed int64
		best     sql.NullString
		payload  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT auction_id, phase, computed_at, best_amount, bid_count, payload
		FROM rank_snapshot
		WHERE auction_id = $1
	`, auctionID).Scan(&snap.AuctionID, &phase, &computed, &best, &snap.BidCount, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RankSnapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return models.RankSnapshot{}, fmt.Errorf("query snapshot: %w", err)
	}

	snap.Phase = models.Phase(phase)
	snap.ComputedAt = fromNanos(computed)
	if best.Valid {
		d, err := decimal.NewFromString(best.String)
		if err != nil {
			return models.RankSnapshot{}, fmt.Errorf("parse best amount: %w", err)
		}
		snap.BestAmount = decimal.NewNullDecimal(d)
	}
	if err := json.Unmarshal([]byte(payload), &snap.Entries); err != nil {
		return models.RankSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *SQLStore) OpenAuctionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM auction WHERE phase IN ($1, $2) ORDER BY scheduled_start
	`, string(models.PhaseUpcoming), string(models.PhaseLive))
	if err != nil {
		return nil, fmt.Errorf("query open auctions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan auction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
