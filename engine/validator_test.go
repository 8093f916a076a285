// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/lowbid/models"
)

func best(n int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(n))
}

func TestValidate(t *testing.T) {
	a := testAuction()

	tests := []struct {
		name   string
		best   decimal.NullDecimal
		amount decimal.Decimal
		phase  models.Phase
		want   models.RejectReason
	}{
		{"first bid above starting price", decimal.NullDecimal{}, decimal.NewFromInt(10500), models.PhaseLive, models.ReasonAboveStartingPrice},
		{"first bid at starting price", decimal.NullDecimal{}, decimal.NewFromInt(10000), models.PhaseLive, ""},
		{"first bid below starting price", decimal.NullDecimal{}, decimal.NewFromInt(7000), models.PhaseLive, ""},
		{"decrement smaller than step", best(10000), decimal.NewFromInt(9700), models.PhaseLive, models.ReasonInsufficientDecrement},
		{"decrement equal to step", best(10000), decimal.NewFromInt(9500), models.PhaseLive, ""},
		{"decrement larger than step", best(10000), decimal.NewFromInt(8000), models.PhaseLive, ""},
		{"equal to best", best(9500), decimal.NewFromInt(9500), models.PhaseLive, models.ReasonInsufficientDecrement},
		{"above best", best(9500), decimal.NewFromInt(9800), models.PhaseLive, models.ReasonInsufficientDecrement},
		{"fractional decrement", best(10000), decimal.RequireFromString("9499.99"), models.PhaseLive, ""},
		{"fractional shortfall", best(10000), decimal.RequireFromString("9500.01"), models.PhaseLive, models.ReasonInsufficientDecrement},
		{"zero", decimal.NullDecimal{}, decimal.Zero, models.PhaseLive, models.ReasonInvalidAmount},
		{"negative", best(9500), decimal.NewFromInt(-1), models.PhaseLive, models.ReasonInvalidAmount},
		{"upcoming", decimal.NullDecimal{}, decimal.NewFromInt(9000), models.PhaseUpcoming, models.ReasonNotOpen},
		{"completed", best(9500), decimal.NewFromInt(9000), models.PhaseCompleted, models.ReasonNotOpen},
		{"cancelled", best(9500), decimal.NewFromInt(9000), models.PhaseCancelled, models.ReasonAuctionCancelled},
		{"cancelled wins over invalid amount", decimal.NullDecimal{}, decimal.Zero, models.PhaseCancelled, models.ReasonAuctionCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Validate(&a, tt.best, tt.amount, tt.phase)
			check.Equal(t, tt.want == "", d.Accepted)
			check.Equal(t, tt.want, d.Reason)
		})
	}
}

func TestValidateZeroStep(t *testing.T) {
	a := testAuction()
	a.DecrementalStep = decimal.Zero

	check.True(t, Validate(&a, best(9500), decimal.RequireFromString("9499.99"), models.PhaseLive).Accepted)
	check.False(t, Validate(&a, best(9500), decimal.NewFromInt(9500), models.PhaseLive).Accepted)
}

func TestValidatePreBids(t *testing.T) {
	a := testAuction()
	a.AllowPreBids = true

	check.True(t, Biddable(&a, models.PhaseUpcoming))
	check.True(t, Validate(&a, decimal.NullDecimal{}, decimal.NewFromInt(9000), models.PhaseUpcoming).Accepted)
	check.Equal(t, models.ReasonAboveStartingPrice,
		Validate(&a, decimal.NullDecimal{}, decimal.NewFromInt(11000), models.PhaseUpcoming).Reason)
	check.False(t, Biddable(&a, models.PhaseCompleted))
}

// TestValidateScenario replays the 10000 / step 500 example in order.
func TestValidateScenario(t *testing.T) {
	a := testAuction()
	current := decimal.NullDecimal{}

	steps := []struct {
		amount   int64
		accepted bool
	}{
		{10500, false},
		{10000, true},
		{9700, false},
		{9500, true},
	}
	for _, s := range steps {
		d := Validate(&a, current, decimal.NewFromInt(s.amount), models.PhaseLive)
		check.Equal(t, s.accepted, d.Accepted)
		if d.Accepted {
			current = best(s.amount)
		}
	}
	check.True(t, current.Decimal.Equal(decimal.NewFromInt(9500)))
}
