// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/lowbid/models"
)

// Decision is the outcome of Validate. Reason is empty when Accepted.
type Decision struct {
	Accepted bool
	Reason   models.RejectReason
}

func accept() Decision { return Decision{Accepted: true} }

func reject(reason models.RejectReason) Decision {
	return Decision{Reason: reason}
}

// Biddable reports whether bids may be placed in phase. Upcoming auctions
// take pre-bids only when the auction allows them.
func Biddable(a *models.Auction, phase models.Phase) bool {
	return phase == models.PhaseLive || (phase == models.PhaseUpcoming && a.AllowPreBids)
}

// Validate decides whether candidate may become the new best price.
// best is invalid when no bid has been accepted yet.
//
// Rules, in order:
//  1. cancelled auctions reject with ReasonAuctionCancelled
//  2. phases that are not biddable reject with ReasonNotOpen
//  3. non-positive amounts reject with ReasonInvalidAmount
//  4. the first bid must not exceed the starting price
//  5. later bids must be strictly lower than best by at least the decremental step
func Validate(a *models.Auction, best decimal.NullDecimal, candidate decimal.Decimal, phase models.Phase) Decision {
	if phase == models.PhaseCancelled {
		return reject(models.ReasonAuctionCancelled)
	}
	if !Biddable(a, phase) {
		return reject(models.ReasonNotOpen)
	}
	if !candidate.IsPositive() {
		return reject(models.ReasonInvalidAmount)
	}

	if !best.Valid {
		if candidate.GreaterThan(a.StartingPrice) {
			return reject(models.ReasonAboveStartingPrice)
		}
		return accept()
	}

	if !candidate.LessThan(best.Decimal) {
		return reject(models.ReasonInsufficientDecrement)
	}
	if a.DecrementalStep.IsPositive() && best.Decimal.Sub(candidate).LessThan(a.DecrementalStep) {
		return reject(models.ReasonInsufficientDecrement)
	}
	return accept()
}
