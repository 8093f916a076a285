// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine is the authoritative reverse auction engine: lifecycle,
bid acceptance, ranking, auto-extension and broadcast.

# Pure Parts

The clock, validator, ranking and extension controller have no I/O:

	phase := engine.PhaseAt(&auction, now)
	decision := engine.Validate(&auction, best, amount, phase)
	grant, ok := engine.ShouldExtend(&auction, bid, now)

PhaseAt is the only definition of an auction's phase. The effective close is
scheduled start + base duration + every granted extension.

# Sessions

A Session owns one auction while it is upcoming or live. All calls are
serialized by the session:

	sess, err := registry.Get(ctx, auctionID)
	res, err := sess.SubmitBid(ctx, participantID, amount, registry.Now())

Rejections come back in BidResult.Reason. A non-nil error always wraps
ErrSessionUnavailable and the caller may retry.

Sessions move Forming → Open → Closing → Closed. The final ranking is written
to the store on the way to Closed, and the Registry retires the session.
A crashed process recovers every session with Rebuild from the bid log.

# Broadcast

Hub fans out StateDelta values per auction. Publishing never blocks; slow
subscribers miss deltas and re-sync from the state endpoint.
*/
package engine
