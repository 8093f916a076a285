// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateAuctionRequest: schedule, prices, access mode, extension policy
  - JoinRequest / InviteRequest: participant_id, display_identity
  - PlaceBidRequest: participant_id, amount
  - CancelRequest: reason
  - ExtendRequest: seconds, reason

# Response Types

  - CreateAuctionResponse: auction_id, admin_key
  - JoinResponse: accepted, reason
  - PlaceBidResponse: accepted, reason, current_best, rank_position
  - StateResponse: point-in-time auction state for reconnecting clients
  - BidLogResponse: the append-only bid log
  - ErrorResponse: error, message

# Domain Types

  - Auction: schedule, price rules and granted extensions
  - Participant: one registration per participant per auction
  - Bid: immutable audit log entry, accepted or rejected
  - RankEntry: derived L1/L2/... position
  - RankSnapshot: ranking materialized at close
  - StateDelta: broadcast payload

Amounts use decimal.Decimal and serialize as JSON strings.

# Constants

Phases:

	PhaseUpcoming  = "upcoming"
	PhaseLive      = "live"
	PhaseCompleted = "completed"
	PhaseCancelled = "cancelled"

Rejection reasons are RejectReason values such as ReasonInsufficientDecrement.
*/
package models
