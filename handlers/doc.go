// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the lowbid API.

# Handler Types

Each handler is a struct over the session registry, the SQL store and config:

  - AuctionHandler: Auction creation, live state, ranking and bid log
  - BiddingHandler: Participant joins and bid submission
  - AdminHandler: Cancel, manual extension and invitations
  - StreamHandler: Websocket stream of state deltas

Handlers are created via constructor functions:

	auctionHandler := handlers.NewAuctionHandler(registry, st, cfg)

All reads and writes of a live auction go through its engine.Session. The
store is only read directly for auctions that have already been retired.

# Bidding

	POST /auctions/{id}/join → Join
	POST /auctions/{id}/bids → PlaceBid

An accepted bid returns 201. A rejected bid returns 409 (403 for bidders who
are not invited) with the reason, the current best price and the bidder's
standing rank, so the client can retry right away. If the bid could not be
recorded the response is 503 with Retry-After and the bid can be resent
unchanged.

# Admin Operations

	POST /auctions/{id}/cancel       → Cancel
	POST /auctions/{id}/extend       → Extend
	POST /auctions/{id}/participants → Invite

Admin operations require the X-Admin-Key header returned by CreateAuction.

# Streaming

	GET /auctions/{id}/stream

The first message is a snapshot of the current state. Every later delta has a
seq one higher than the one before. Slow subscribers lose deltas rather than
slow the auction down; a client that sees a gap re-reads /state.
*/
package handlers
