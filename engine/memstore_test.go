// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/lowbid/models"
)

// t0 is when test auctions go live.
var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

var errStoreDown = errors.New("store down")

// testAuction is live from t0 for an hour, starts at 10000 with steps of 500
// and extends by 180s for bids in the last 180s.
func testAuction() models.Auction {
	return models.Auction{
		ID:                     uuid.NewString(),
		Title:                  "engine test",
		ScheduledStart:         t0,
		BaseDurationSeconds:    3600,
		DecrementalStep:        decimal.NewFromInt(500),
		StartingPrice:          decimal.NewFromInt(10000),
		Currency:               "INR",
		Phase:                  models.PhaseUpcoming,
		Access:                 models.AccessOpen,
		ExtensionWindowSeconds: 180,
		ExtensionAmountSeconds: 180,
	}
}

// memStore is an in-memory Store. Setting fail makes every write return it.
type memStore struct {
	mu           sync.Mutex
	auctions     map[string]models.Auction
	participants map[string]map[string]models.Participant
	bids         map[string][]models.Bid
	snapshots    map[string]models.RankSnapshot
	loads        int
	fail         error
	failSnapshot error
	failLoad     error
}

func newMemStore() *memStore {
	return &memStore{
		auctions:     make(map[string]models.Auction),
		participants: make(map[string]map[string]models.Participant),
		bids:         make(map[string][]models.Bid),
		snapshots:    make(map[string]models.RankSnapshot),
	}
}

func (m *memStore) put(a models.Auction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auctions[a.ID] = a
}

func (m *memStore) setFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *memStore) setFailSnapshot(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSnapshot = err
}

func (m *memStore) setFailLoad(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = err
}

func (m *memStore) auction(id string) models.Auction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auctions[id]
}

func (m *memStore) snapshot(id string) (models.RankSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[id]
	return s, ok
}

func (m *memStore) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func (m *memStore) LoadAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.failLoad != nil {
		return models.Auction{}, m.failLoad
	}
	a, ok := m.auctions[auctionID]
	if !ok {
		return models.Auction{}, ErrAuctionNotFound
	}
	a.Extensions = append([]models.Extension(nil), a.Extensions...)
	return a, nil
}

func (m *memStore) LoadParticipants(ctx context.Context, auctionID string) ([]models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Participant{}
	for _, p := range m.participants[auctionID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

func (m *memStore) LoadBids(ctx context.Context, auctionID string) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Bid(nil), m.bids[auctionID]...), nil
}

func (m *memStore) AppendBid(ctx context.Context, bid models.Bid, grant *models.Extension, joined *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.bids[bid.AuctionID] = append(m.bids[bid.AuctionID], bid)
	if joined != nil {
		m.saveParticipant(*joined)
	}
	if grant != nil {
		a := m.auctions[bid.AuctionID]
		a.Extensions = append(a.Extensions, *grant)
		m.auctions[bid.AuctionID] = a
	}
	return nil
}

func (m *memStore) AppendExtension(ctx context.Context, auctionID string, ext models.Extension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	a := m.auctions[auctionID]
	a.Extensions = append(a.Extensions, ext)
	m.auctions[auctionID] = a
	return nil
}

func (m *memStore) SaveParticipant(ctx context.Context, p models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.saveParticipant(p)
	return nil
}

func (m *memStore) saveParticipant(p models.Participant) {
	if m.participants[p.AuctionID] == nil {
		m.participants[p.AuctionID] = make(map[string]models.Participant)
	}
	m.participants[p.AuctionID][p.ParticipantID] = p
}

func (m *memStore) SetPhase(ctx context.Context, auctionID string, phase models.Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	a := m.auctions[auctionID]
	a.Phase = phase
	m.auctions[auctionID] = a
	return nil
}

func (m *memStore) MarkCancelled(ctx context.Context, auctionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	a := m.auctions[auctionID]
	if a.CancelledAt != nil {
		return ErrAlreadyClosed
	}
	a.CancelledAt = &at
	m.auctions[auctionID] = a
	return nil
}

func (m *memStore) SaveRankSnapshot(ctx context.Context, snap models.RankSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if m.failSnapshot != nil {
		return m.failSnapshot
	}
	m.snapshots[snap.AuctionID] = snap
	return nil
}

func (m *memStore) OpenAuctionIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id, a := range m.auctions {
		if a.Phase.Open() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// fakeClock is safe for use from the registry and test goroutines.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
