// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"sync"
	"sync/atomic"

	"github.com/danielhkuo/lowbid/models"
)

const defaultSubscriberBuffer = 64

// Hub fans out state deltas to the subscribers of each auction.
// Publish never blocks: a subscriber whose buffer is full misses the delta
// and has to re-sync from GET /auctions/{id}/state.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[int]chan models.StateDelta
	nextID  int
	buffer  int
	dropped atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[string]map[int]chan models.StateDelta),
		buffer: buffer,
	}
}

// Subscribe registers a new stream for auctionID. The returned cancel function
// is idempotent. The channel is closed on cancel or when the auction closes.
func (h *Hub) Subscribe(auctionID string) (<-chan models.StateDelta, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan models.StateDelta, h.buffer)
	if h.subs[auctionID] == nil {
		h.subs[auctionID] = make(map[int]chan models.StateDelta)
	}
	h.subs[auctionID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() { h.unsubscribe(auctionID, id) })
	}
	return ch, cancel
}

func (h *Hub) unsubscribe(auctionID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[auctionID]
	if ch, ok := subs[id]; ok {
		delete(subs, id)
		close(ch)
	}
	if len(subs) == 0 {
		delete(h.subs, auctionID)
	}
}

// Publish delivers delta to every current subscriber of auctionID.
func (h *Hub) Publish(auctionID string, delta models.StateDelta) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[auctionID] {
		select {
		case ch <- delta:
		default:
			h.dropped.Add(1)
		}
	}
}

// CloseAuction ends every stream for auctionID.
func (h *Hub) CloseAuction(auctionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs[auctionID] {
		close(ch)
		delete(h.subs[auctionID], id)
	}
	delete(h.subs, auctionID)
}

// Subscribers returns the number of open streams for auctionID.
func (h *Hub) Subscribers(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[auctionID])
}

// Dropped returns how many deltas were discarded for slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
