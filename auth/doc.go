// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth guards administrative routes with per-auction admin keys.

# Admin Keys

Admin keys use HMAC-SHA256 to create deterministic, verifiable keys:

	adminKey := auth.GenerateAdminKey(auctionID, salt)
	err := auth.ValidateAdminKey(auctionID, adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same auction ID and salt always produce the same key. This allows validation
without storing the key in the database.

Clients send the key in the X-Admin-Key header when cancelling, extending or
inviting participants to an auction.
*/
package auth
