// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/danielhkuo/lowbid/models"
)

var (
	// ErrAuctionNotFound is returned when the store has no such auction.
	ErrAuctionNotFound = errors.New("auction not found")
	// ErrSessionUnavailable wraps transient store failures. Callers may retry.
	ErrSessionUnavailable = errors.New("session unavailable")
	// ErrSessionRetired means the auction has finished and only durable history remains.
	ErrSessionRetired = errors.New("session retired")
	// ErrAlreadyClosed is returned by administrative actions on finished auctions.
	ErrAlreadyClosed = errors.New("auction already closed")
	// ErrInvalidExtension rejects manual extensions that do not move the close forward.
	ErrInvalidExtension = errors.New("extension must move the close forward")
)

// Store is the durable side of the engine. Bids and extensions are append-only;
// a Session can always be rebuilt from LoadAuction, LoadParticipants and LoadBids.
type Store interface {
	LoadAuction(ctx context.Context, auctionID string) (models.Auction, error)
	LoadParticipants(ctx context.Context, auctionID string) ([]models.Participant, error)
	// LoadBids returns the full bid log ordered by seq.
	LoadBids(ctx context.Context, auctionID string) ([]models.Bid, error)

	// AppendBid records a bid and, atomically with it, the extension it
	// triggered and the participant it registered. grant and joined may be nil.
	AppendBid(ctx context.Context, bid models.Bid, grant *models.Extension, joined *models.Participant) error
	AppendExtension(ctx context.Context, auctionID string, ext models.Extension) error
	// SaveParticipant inserts or updates the participant's row.
	SaveParticipant(ctx context.Context, p models.Participant) error

	SetPhase(ctx context.Context, auctionID string, phase models.Phase) error
	MarkCancelled(ctx context.Context, auctionID string, at time.Time) error
	SaveRankSnapshot(ctx context.Context, snap models.RankSnapshot) error

	// OpenAuctionIDs lists auctions whose cached phase is upcoming or live.
	OpenAuctionIDs(ctx context.Context) ([]string, error)
}
