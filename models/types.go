// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is the lifecycle phase of an auction. It is derived from the clock
// except for PhaseCancelled, which only an administrator can set.
type Phase string

const (
	PhaseUpcoming  Phase = "upcoming"
	PhaseLive      Phase = "live"
	PhaseCompleted Phase = "completed"
	PhaseCancelled Phase = "cancelled"
)

// Open reports whether a session may exist for the phase.
func (p Phase) Open() bool {
	return p == PhaseUpcoming || p == PhaseLive
}

// Access modes
const (
	AccessOpen    = "open"
	AccessInvited = "invited"
)

// Participant eligibility
const (
	EligibilityInvited = "invited"
	EligibilityOpen    = "open"
)

// RejectReason explains why a bid or join was not accepted.
type RejectReason string

const (
	ReasonNotOpen               RejectReason = "not_open"
	ReasonInvalidAmount         RejectReason = "invalid_amount"
	ReasonAboveStartingPrice    RejectReason = "above_starting_price"
	ReasonInsufficientDecrement RejectReason = "insufficient_decrement"
	ReasonAuctionCancelled      RejectReason = "auction_cancelled"
	ReasonNotAParticipant       RejectReason = "not_a_participant"
	ReasonSessionUnavailable    RejectReason = "session_unavailable"
)

// Delta events
const (
	EventSnapshot    = "snapshot"
	EventJoined      = "joined"
	EventBidAccepted = "bid_accepted"
	EventExtended    = "extended"
	EventPhase       = "phase_changed"
	EventCancelled   = "cancelled"
	EventClosed      = "closed"
)

// Defaults for the anti-sniping policy.
const (
	DefaultExtensionWindowSeconds = 180
	DefaultExtensionAmountSeconds = 180
)

// MaxDurationSeconds bounds the base duration, the extension policy and each
// manual extension.
const MaxDurationSeconds = 366 * 24 * 60 * 60

// ExtensionReasonAuto marks grants made by the auto-extension controller.
const ExtensionReasonAuto = "auto_extension"

// Request types

type CreateAuctionRequest struct {
	Title                  string          `json:"title"`
	ScheduledStart         time.Time       `json:"scheduled_start"`
	BaseDurationSeconds    int64           `json:"base_duration_seconds"`
	StartingPrice          decimal.Decimal `json:"starting_price"`
	DecrementalStep        decimal.Decimal `json:"decremental_step"`
	Currency               string          `json:"currency"`
	Access                 string          `json:"access"`
	ExtensionWindowSeconds int64           `json:"extension_window_seconds"`
	ExtensionAmountSeconds int64           `json:"extension_amount_seconds"`
	AllowPreBids           bool            `json:"allow_pre_bids"`
}

type JoinRequest struct {
	ParticipantID   string `json:"participant_id"`
	DisplayIdentity string `json:"display_identity"`
}

type PlaceBidRequest struct {
	ParticipantID string          `json:"participant_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type ExtendRequest struct {
	Seconds int64  `json:"seconds"`
	Reason  string `json:"reason"`
}

type InviteRequest struct {
	ParticipantID   string `json:"participant_id"`
	DisplayIdentity string `json:"display_identity"`
}

// Response types

type CreateAuctionResponse struct {
	AuctionID string `json:"auction_id"`
	AdminKey  string `json:"admin_key"`
}

type JoinResponse struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
}

type PlaceBidResponse struct {
	Accepted     bool                `json:"accepted"`
	Reason       RejectReason        `json:"reason,omitempty"`
	BidID        string              `json:"bid_id,omitempty"`
	CurrentBest  decimal.NullDecimal `json:"current_best"`
	RankPosition int                 `json:"rank_position,omitempty"`
	ClosesAt     time.Time           `json:"closes_at"`
}

type StateResponse struct {
	AuctionID         string              `json:"auction_id"`
	Phase             Phase               `json:"phase"`
	RemainingMS       int64               `json:"remaining_ms"`
	ClosesAt          time.Time           `json:"closes_at"`
	BestAmount        decimal.NullDecimal `json:"best_amount"`
	RankTop           []RankEntry         `json:"rank_top"`
	ExtensionsGranted int                 `json:"extensions_granted"`
	LastExtensionAt   *time.Time          `json:"last_extension_at,omitempty"`
	Currency          string              `json:"currency"`
}

type BidLogResponse struct {
	AuctionID string `json:"auction_id"`
	Bids      []Bid  `json:"bids"`
}

type ActionResponse struct {
	AuctionID string    `json:"auction_id"`
	Phase     Phase     `json:"phase"`
	ClosesAt  time.Time `json:"closes_at"`
}

// Domain types

type Extension struct {
	GrantedAt    time.Time `json:"granted_at"`
	AddedSeconds int64     `json:"added_seconds"`
	Reason       string    `json:"reason"`
	Automatic    bool      `json:"automatic"`
}

type Auction struct {
	ID                     string          `json:"id"`
	Title                  string          `json:"title"`
	ScheduledStart         time.Time       `json:"scheduled_start"`
	BaseDurationSeconds    int64           `json:"base_duration_seconds"`
	Extensions             []Extension     `json:"extensions"`
	DecrementalStep        decimal.Decimal `json:"decremental_step"`
	StartingPrice          decimal.Decimal `json:"starting_price"`
	Currency               string          `json:"currency"`
	Phase                  Phase           `json:"phase"` // cached, see engine.PhaseAt
	Access                 string          `json:"access"`
	ExtensionWindowSeconds int64           `json:"extension_window_seconds"`
	ExtensionAmountSeconds int64           `json:"extension_amount_seconds"`
	AllowPreBids           bool            `json:"allow_pre_bids"`
	CancelledAt            *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}

type Participant struct {
	ParticipantID   string     `json:"participant_id"`
	AuctionID       string     `json:"auction_id"`
	DisplayIdentity string     `json:"display_identity"`
	JoinedAt        *time.Time `json:"joined_at,omitempty"`
	Eligibility     string     `json:"eligibility"`
}

type Bid struct {
	BidID           string          `json:"bid_id"`
	AuctionID       string          `json:"auction_id"`
	ParticipantID   string          `json:"participant_id"`
	Amount          decimal.Decimal `json:"amount"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	Accepted        bool            `json:"accepted"`
	RejectionReason *RejectReason   `json:"rejection_reason,omitempty"`
	Seq             int64           `json:"seq"`
}

type RankEntry struct {
	Rank          int             `json:"rank"` // 1 = best (L1)
	ParticipantID string          `json:"participant_id"`
	Amount        decimal.Decimal `json:"amount"`
	AsOf          time.Time       `json:"as_of"`
}

// RankSnapshot is the materialized ranking written when a session closes.
type RankSnapshot struct {
	AuctionID  string              `json:"auction_id"`
	Phase      Phase               `json:"phase"`
	ComputedAt time.Time           `json:"computed_at"`
	BestAmount decimal.NullDecimal `json:"best_amount"`
	Entries    []RankEntry         `json:"entries"`
	BidCount   int                 `json:"bid_count"`
}

// StateDelta is pushed to stream subscribers after every state change.
// Seq increases by one per delta within an auction so gaps are detectable.
type StateDelta struct {
	Seq               int64               `json:"seq"`
	AuctionID         string              `json:"auction_id"`
	Event             string              `json:"event"`
	Phase             Phase               `json:"phase"`
	RemainingMS       int64               `json:"remaining_ms"`
	ClosesAt          time.Time           `json:"closes_at"`
	BestAmount        decimal.NullDecimal `json:"best_amount"`
	RankTop           []RankEntry         `json:"rank_top"`
	ExtensionsGranted int                 `json:"extensions_granted"`
	LastExtensionAt   *time.Time          `json:"last_extension_at,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
