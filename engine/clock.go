// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"time"

	"github.com/danielhkuo/lowbid/models"
)

// EffectiveClose returns scheduled start + base duration + every granted extension.
func EffectiveClose(a *models.Auction) time.Time {
	total := a.BaseDurationSeconds
	for _, ext := range a.Extensions {
		total += ext.AddedSeconds
	}
	return a.ScheduledStart.Add(time.Duration(total) * time.Second)
}

// PhaseAt is the single definition of an auction's phase at now.
// Cancellation is sticky; everything else follows from the clock.
func PhaseAt(a *models.Auction, now time.Time) models.Phase {
	if a.CancelledAt != nil {
		return models.PhaseCancelled
	}
	if !now.Before(EffectiveClose(a)) {
		return models.PhaseCompleted
	}
	if !now.Before(a.ScheduledStart) {
		return models.PhaseLive
	}
	return models.PhaseUpcoming
}

// Remaining returns the time left until close while live, until start while
// upcoming, and zero otherwise.
func Remaining(a *models.Auction, now time.Time) time.Duration {
	var d time.Duration
	switch PhaseAt(a, now) {
	case models.PhaseLive:
		d = EffectiveClose(a).Sub(now)
	case models.PhaseUpcoming:
		d = a.ScheduledStart.Sub(now)
	}
	if d < 0 {
		return 0
	}
	return d
}

// lastExtensionAt returns when the most recent extension was granted.
func lastExtensionAt(a *models.Auction) *time.Time {
	if len(a.Extensions) == 0 {
		return nil
	}
	at := a.Extensions[len(a.Extensions)-1].GrantedAt
	return &at
}
