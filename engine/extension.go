// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"time"

	"github.com/danielhkuo/lowbid/models"
)

// ExtensionWindow is how close to the effective close a bid must land to
// trigger an automatic extension.
func ExtensionWindow(a *models.Auction) time.Duration {
	return time.Duration(a.ExtensionWindowSeconds) * time.Second
}

// ExtensionAmount is how far an automatic grant moves the close.
func ExtensionAmount(a *models.Auction) time.Duration {
	return time.Duration(a.ExtensionAmountSeconds) * time.Second
}

// ShouldExtend decides whether an accepted bid earns an automatic extension.
//
// A bid qualifies when it lands within the extension window of the current
// effective close. After any extension, the window it protected has to be
// consumed first: bids submitted before the close that the last extension
// moved never trigger another grant. A burst of bids inside one window
// therefore yields exactly one grant.
func ShouldExtend(a *models.Auction, bid models.Bid, now time.Time) (models.Extension, bool) {
	window := ExtensionWindow(a)
	amount := a.ExtensionAmountSeconds
	if window <= 0 || amount <= 0 {
		return models.Extension{}, false
	}

	closeAt := EffectiveClose(a)
	if bid.SubmittedAt.After(closeAt) {
		return models.Extension{}, false
	}
	if closeAt.Sub(bid.SubmittedAt) > window {
		return models.Extension{}, false
	}

	if n := len(a.Extensions); n > 0 {
		last := a.Extensions[n-1]
		previousClose := closeAt.Add(-time.Duration(last.AddedSeconds) * time.Second)
		if bid.SubmittedAt.Before(previousClose) {
			return models.Extension{}, false
		}
	}

	return models.Extension{
		GrantedAt:    now,
		AddedSeconds: amount,
		Reason:       models.ExtensionReasonAuto,
		Automatic:    true,
	}, true
}
