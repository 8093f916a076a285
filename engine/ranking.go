// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/lowbid/models"
)

// Ranking keeps the latest accepted bid per participant and the ordered
// L1/L2/... positions derived from them. It is not safe for concurrent use;
// the owning Session serializes access.
type Ranking struct {
	latest  map[string]models.Bid
	entries []models.RankEntry
	ranks   map[string]int
}

func NewRanking() *Ranking {
	return &Ranking{
		latest: make(map[string]models.Bid),
		ranks:  make(map[string]int),
	}
}

// Apply supersedes the participant's previous bid and recomputes the order.
// Rejected bids are ignored.
func (r *Ranking) Apply(bid models.Bid) {
	if !bid.Accepted {
		return
	}
	r.latest[bid.ParticipantID] = bid
	r.rebuild()
}

func (r *Ranking) rebuild() {
	bids := make([]models.Bid, 0, len(r.latest))
	for _, b := range r.latest {
		bids = append(bids, b)
	}

	// Lowest amount first, ties go to whoever got there first
	sort.Slice(bids, func(i, j int) bool {
		if c := bids[i].Amount.Cmp(bids[j].Amount); c != 0 {
			return c < 0
		}
		if !bids[i].SubmittedAt.Equal(bids[j].SubmittedAt) {
			return bids[i].SubmittedAt.Before(bids[j].SubmittedAt)
		}
		return bids[i].Seq < bids[j].Seq
	})

	r.entries = make([]models.RankEntry, len(bids))
	r.ranks = make(map[string]int, len(bids))
	for i, b := range bids {
		rank := i + 1
		r.entries[i] = models.RankEntry{
			Rank:          rank,
			ParticipantID: b.ParticipantID,
			Amount:        b.Amount,
			AsOf:          b.SubmittedAt,
		}
		r.ranks[b.ParticipantID] = rank
	}
}

// Best returns the L1 amount, invalid when nothing has been accepted.
func (r *Ranking) Best() decimal.NullDecimal {
	if len(r.entries) == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(r.entries[0].Amount)
}

// TopN returns a copy of the first n positions. n <= 0 returns all of them.
func (r *Ranking) TopN(n int) []models.RankEntry {
	if n <= 0 || n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]models.RankEntry, n)
	copy(out, r.entries[:n])
	return out
}

// PositionOf returns the participant's rank, or false if they hold no position.
func (r *Ranking) PositionOf(participantID string) (int, bool) {
	rank, ok := r.ranks[participantID]
	return rank, ok
}

func (r *Ranking) Len() int {
	return len(r.entries)
}

// Entries returns every position.
func (r *Ranking) Entries() []models.RankEntry {
	return r.TopN(0)
}
