// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the lowbid API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(registry, st, cfg)

# Endpoints

Health:

	GET /health

Auctions (public):

	POST /auctions              - Create auction (returns admin_key)
	GET  /auctions/{id}/state   - Current phase, price, close time and top ranks
	GET  /auctions/{id}/ranking - Full ranking
	GET  /auctions/{id}/bids    - Bid log, accepted and rejected
	GET  /auctions/{id}/stream  - Websocket of state deltas

Bidding:

	POST /auctions/{id}/join - Join as a participant
	POST /auctions/{id}/bids - Submit a bid

Admin (requires X-Admin-Key):

	POST /auctions/{id}/cancel       - Cancel the auction
	POST /auctions/{id}/extend       - Grant a manual extension
	POST /auctions/{id}/participants - Invite a participant
*/
package router
