// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

type RegistryOptions struct {
	TopN   int
	Now    func() time.Time
	Logger *slog.Logger
}

// Registry is the process-wide table of live sessions, at most one per auction.
// Sessions exist only while their auction is upcoming or live.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	loads    singleflight.Group

	store  Store
	hub    *Hub
	topN   int
	now    func() time.Time
	logger *slog.Logger
}

func NewRegistry(store Store, hub *Hub, opts RegistryOptions) *Registry {
	if hub == nil {
		hub = NewHub(0)
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		store:    store,
		hub:      hub,
		topN:     opts.TopN,
		now:      now,
		logger:   logger,
	}
}

// Now is the clock every session operation is evaluated against.
func (r *Registry) Now() time.Time {
	return r.now()
}

func (r *Registry) Hub() *Hub {
	return r.hub
}

func (r *Registry) Store() Store {
	return r.store
}

func (r *Registry) lookup(auctionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[auctionID]
	return s, ok
}

// Get returns the live session for auctionID, rebuilding it from the store on
// first access. It returns ErrSessionRetired for auctions that have finished.
func (r *Registry) Get(ctx context.Context, auctionID string) (*Session, error) {
	if s, ok := r.lookup(auctionID); ok {
		return s, nil
	}

	// Concurrent first accesses share one load
	v, err, _ := r.loads.Do(auctionID, func() (any, error) {
		if s, ok := r.lookup(auctionID); ok {
			return s, nil
		}
		s, err := r.load(ctx, auctionID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.sessions[auctionID]; ok {
			return existing, nil
		}
		r.sessions[auctionID] = s
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) load(ctx context.Context, auctionID string) (*Session, error) {
	a, err := r.store.LoadAuction(ctx, auctionID)
	if errors.Is(err, ErrAuctionNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("load auction: %w: %w", ErrSessionUnavailable, err)
	}
	if !a.Phase.Open() {
		return nil, ErrSessionRetired
	}

	participants, err := r.store.LoadParticipants(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w: %w", ErrSessionUnavailable, err)
	}
	bids, err := r.store.LoadBids(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load bids: %w: %w", ErrSessionUnavailable, err)
	}

	s := Rebuild(a, participants, bids, SessionOptions{
		Store:  r.store,
		Hub:    r.hub,
		TopN:   r.topN,
		Logger: r.logger,
	})

	// The auction may have finished while nobody was watching
	switch s.Tick(ctx, r.now()) {
	case StateClosed:
		return nil, ErrSessionRetired
	case StateClosing:
		return nil, fmt.Errorf("final snapshot pending: %w", ErrSessionUnavailable)
	}

	r.logger.Info("session opened",
		"auction_id", auctionID,
		"bids", len(bids),
		"participants", len(participants),
		"closes", humanize.Time(EffectiveClose(&a)),
	)
	return s, nil
}

// Retire removes a closed session. Sessions that are still open stay registered.
func (r *Registry) Retire(ctx context.Context, auctionID string) error {
	s, ok := r.lookup(auctionID)
	if !ok {
		return nil
	}
	if state := s.Tick(ctx, r.now()); state != StateClosed {
		return fmt.Errorf("retire %s: session is %s", auctionID, state)
	}

	r.mu.Lock()
	delete(r.sessions, auctionID)
	r.mu.Unlock()

	r.hub.CloseAuction(auctionID)
	r.logger.Info("session retired", "auction_id", auctionID)
	return nil
}

// Sweep ticks every session and retires the ones that closed.
// It returns the number of sessions retired.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	retired := 0
	for _, s := range sessions {
		if s.Tick(ctx, r.now()) != StateClosed {
			continue
		}
		if err := r.Retire(ctx, s.ID()); err != nil {
			r.logger.Warn("failed to retire session", "auction_id", s.ID(), "error", err)
			continue
		}
		retired++
	}
	return retired
}

// Warm opens a session for every auction the store still lists as open, so
// auctions close on time even without traffic.
func (r *Registry) Warm(ctx context.Context) error {
	ids, err := r.store.OpenAuctionIDs(ctx)
	if err != nil {
		return fmt.Errorf("list open auctions: %w", err)
	}
	for _, id := range ids {
		if _, err := r.Get(ctx, id); err != nil && !errors.Is(err, ErrSessionRetired) {
			r.logger.Warn("failed to open session", "auction_id", id, "error", err)
		}
	}
	return nil
}

// StartSweeper runs Sweep on a cron schedule. Intervals below one second are
// rounded up by the scheduler. Stop the returned cron on shutdown.
func (r *Registry) StartSweeper(interval time.Duration) (*cron.Cron, error) {
	if interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every "+interval.String(), func() {
		if n := r.Sweep(context.Background()); n > 0 {
			r.logger.Info("sweep retired sessions", "count", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}

	scheduler.Start()
	return scheduler, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
