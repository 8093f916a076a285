// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/lowbid/models"
)

// SessionState tracks a session through Forming → Open → Closing → Closed.
type SessionState string

const (
	StateForming SessionState = "forming"
	StateOpen    SessionState = "open"
	StateClosing SessionState = "closing"
	StateClosed  SessionState = "closed"
)

const defaultTopN = 10

// BidResult carries enough detail for a rejected bidder to retry right away.
type BidResult struct {
	Accepted     bool
	Reason       models.RejectReason
	Bid          models.Bid
	CurrentBest  decimal.NullDecimal
	RankPosition int // 0 when the participant holds no position
	ClosesAt     time.Time
	Extension    *models.Extension
}

type JoinResult struct {
	Accepted bool
	Reason   models.RejectReason
}

type SessionOptions struct {
	Store  Store
	Hub    *Hub
	TopN   int // rank entries included in deltas and state
	Logger *slog.Logger
}

// Session is the single authoritative owner of one auction's live state.
// Every mutation happens under mu, so price, ranking and close time are
// linearizable per auction.
type Session struct {
	mu sync.Mutex

	auction      models.Auction
	participants map[string]models.Participant
	ranking      *Ranking
	bidCount     int
	nextSeq      int64
	lastBidAt    time.Time
	state        SessionState
	deltaSeq     int64

	store  Store
	hub    *Hub
	topN   int
	logger *slog.Logger
}

// Rebuild reconstructs a session from durable state by replaying the bid log.
// No soft state is needed: the result is identical to the session that wrote the log.
func Rebuild(a models.Auction, participants []models.Participant, bids []models.Bid, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = defaultTopN
	}

	s := &Session{
		auction:      a,
		participants: make(map[string]models.Participant, len(participants)),
		ranking:      NewRanking(),
		nextSeq:      1,
		state:        StateForming,
		store:        opts.Store,
		hub:          opts.Hub,
		topN:         topN,
		logger:       logger.With("auction_id", a.ID),
	}
	for _, p := range participants {
		s.participants[p.ParticipantID] = p
	}
	for _, b := range bids {
		s.ranking.Apply(b)
		if b.Seq >= s.nextSeq {
			s.nextSeq = b.Seq + 1
		}
		if b.SubmittedAt.After(s.lastBidAt) {
			s.lastBidAt = b.SubmittedAt
		}
	}
	s.bidCount = len(bids)
	return s
}

func (s *Session) ID() string {
	return s.auction.ID
}

// SubmitBid is the serialized entry point for bids. Rejections are reported
// in the result and never mutate state; the returned error is non-nil only
// for store failures and wraps ErrSessionUnavailable.
func (s *Session) SubmitBid(ctx context.Context, participantID string, amount decimal.Decimal, now time.Time) (BidResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Acceptance order is the log order, even if callers read the clock out of order
	if now.Before(s.lastBidAt) {
		now = s.lastBidAt
	}
	s.observe(ctx, now)
	phase := PhaseAt(&s.auction, now)

	bid := models.Bid{
		BidID:         uuid.NewString(),
		AuctionID:     s.auction.ID,
		ParticipantID: participantID,
		Amount:        amount,
		SubmittedAt:   now,
		Seq:           s.nextSeq,
	}

	var decision Decision
	if Biddable(&s.auction, phase) && !s.eligible(participantID) {
		decision = reject(models.ReasonNotAParticipant)
	} else {
		decision = Validate(&s.auction, s.ranking.Best(), amount, phase)
	}
	if !decision.Accepted {
		s.recordRejection(ctx, bid, decision.Reason)
		return s.result(bid, decision.Reason), nil
	}

	// Open-auction bidders who never joined are registered with their first bid
	var joined *models.Participant
	if _, ok := s.participants[participantID]; !ok {
		p := s.newParticipant(participantID, "", models.EligibilityOpen, now)
		joined = &p
	}

	bid.Accepted = true
	var grantPtr *models.Extension
	if phase == models.PhaseLive {
		if grant, ok := ShouldExtend(&s.auction, bid, now); ok {
			grantPtr = &grant
		}
	}
	if err := s.store.AppendBid(ctx, bid, grantPtr, joined); err != nil {
		s.logger.Error("failed to append bid", "error", err, "participant_id", participantID)
		bid.Accepted = false
		return s.result(bid, models.ReasonSessionUnavailable), fmt.Errorf("append bid: %w: %w", ErrSessionUnavailable, err)
	}

	if joined != nil {
		s.participants[participantID] = *joined
	}
	s.nextSeq++
	s.bidCount++
	s.lastBidAt = now
	s.ranking.Apply(bid)
	if grantPtr != nil {
		s.auction.Extensions = append(s.auction.Extensions, *grantPtr)
		s.logger.Info("auction auto-extended",
			"added_seconds", grantPtr.AddedSeconds,
			"closes_at", EffectiveClose(&s.auction),
		)
	}

	s.logger.Info("bid accepted", "participant_id", participantID, "amount", amount.String(), "seq", bid.Seq)
	s.publish(models.EventBidAccepted, now)

	res := s.result(bid, "")
	res.Accepted = true
	res.Extension = grantPtr
	return res, nil
}

func (s *Session) result(bid models.Bid, reason models.RejectReason) BidResult {
	res := BidResult{
		Reason:      reason,
		Bid:         bid,
		CurrentBest: s.ranking.Best(),
		ClosesAt:    EffectiveClose(&s.auction),
	}
	if pos, ok := s.ranking.PositionOf(bid.ParticipantID); ok {
		res.RankPosition = pos
	}
	return res
}

// recordRejection appends a rejected bid to the audit log. The log entry is
// best effort: the rejection stands even if it cannot be written.
func (s *Session) recordRejection(ctx context.Context, bid models.Bid, reason models.RejectReason) {
	if s.state == StateClosed {
		return
	}
	bid.Accepted = false
	bid.RejectionReason = &reason
	if err := s.store.AppendBid(ctx, bid, nil, nil); err != nil {
		s.logger.Warn("failed to log rejected bid", "error", err, "reason", reason)
		return
	}
	s.nextSeq++
	s.bidCount++
	s.lastBidAt = bid.SubmittedAt
}

func (s *Session) eligible(participantID string) bool {
	if participantID == "" {
		return false
	}
	if s.auction.Access != models.AccessInvited {
		return true
	}
	_, ok := s.participants[participantID]
	return ok
}

func (s *Session) newParticipant(participantID, identity, eligibility string, now time.Time) models.Participant {
	joined := now
	return models.Participant{
		ParticipantID:   participantID,
		AuctionID:       s.auction.ID,
		DisplayIdentity: identity,
		JoinedAt:        &joined,
		Eligibility:     eligibility,
	}
}

func (s *Session) register(ctx context.Context, participantID, identity, eligibility string, now time.Time) error {
	p := s.newParticipant(participantID, identity, eligibility, now)
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return err
	}
	s.participants[participantID] = p
	return nil
}

// Join registers a participant. Joining twice is a no-op that still succeeds.
func (s *Session) Join(ctx context.Context, participantID, identity string, now time.Time) (JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observe(ctx, now)
	switch phase := PhaseAt(&s.auction, now); {
	case phase == models.PhaseCancelled:
		return JoinResult{Reason: models.ReasonAuctionCancelled}, nil
	case !phase.Open():
		return JoinResult{Reason: models.ReasonNotOpen}, nil
	}

	if p, ok := s.participants[participantID]; ok {
		if p.JoinedAt != nil {
			return JoinResult{Accepted: true}, nil
		}
		// Invited but joining for the first time
		joined := now
		p.JoinedAt = &joined
		if identity != "" {
			p.DisplayIdentity = identity
		}
		if err := s.store.SaveParticipant(ctx, p); err != nil {
			return JoinResult{Reason: models.ReasonSessionUnavailable}, fmt.Errorf("save participant: %w: %w", ErrSessionUnavailable, err)
		}
		s.participants[participantID] = p
		s.publish(models.EventJoined, now)
		return JoinResult{Accepted: true}, nil
	}

	if s.auction.Access == models.AccessInvited {
		return JoinResult{Reason: models.ReasonNotAParticipant}, nil
	}

	if err := s.register(ctx, participantID, identity, models.EligibilityOpen, now); err != nil {
		return JoinResult{Reason: models.ReasonSessionUnavailable}, fmt.Errorf("save participant: %w: %w", ErrSessionUnavailable, err)
	}
	s.logger.Info("participant joined", "participant_id", participantID)
	s.publish(models.EventJoined, now)
	return JoinResult{Accepted: true}, nil
}

// Invite pre-registers a participant for an invitation-only auction.
func (s *Session) Invite(ctx context.Context, participantID, identity string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observe(ctx, now)
	if s.state == StateClosed || s.state == StateClosing {
		return ErrAlreadyClosed
	}

	p, ok := s.participants[participantID]
	if !ok {
		p = models.Participant{
			ParticipantID: participantID,
			AuctionID:     s.auction.ID,
		}
	}
	p.Eligibility = models.EligibilityInvited
	if identity != "" {
		p.DisplayIdentity = identity
	}
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return fmt.Errorf("save participant: %w: %w", ErrSessionUnavailable, err)
	}
	s.participants[participantID] = p
	return nil
}

// Extend grants a manual extension through the same path as automatic ones.
func (s *Session) Extend(ctx context.Context, seconds int64, reason string, now time.Time) (models.Extension, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observe(ctx, now)
	if s.state == StateClosed || !PhaseAt(&s.auction, now).Open() {
		return models.Extension{}, ErrAlreadyClosed
	}
	if seconds <= 0 || seconds > models.MaxDurationSeconds {
		return models.Extension{}, ErrInvalidExtension
	}
	if reason == "" {
		reason = "manual"
	}

	ext := models.Extension{
		GrantedAt:    now,
		AddedSeconds: seconds,
		Reason:       reason,
	}
	extended := s.auction
	extended.Extensions = append(append([]models.Extension(nil), s.auction.Extensions...), ext)
	if !EffectiveClose(&extended).After(EffectiveClose(&s.auction)) {
		return models.Extension{}, ErrInvalidExtension
	}
	if err := s.store.AppendExtension(ctx, s.auction.ID, ext); err != nil {
		return models.Extension{}, fmt.Errorf("append extension: %w: %w", ErrSessionUnavailable, err)
	}
	s.auction.Extensions = append(s.auction.Extensions, ext)

	s.logger.Info("auction extended", "added_seconds", seconds, "reason", reason, "closes_at", EffectiveClose(&s.auction))
	s.publish(models.EventExtended, now)
	return ext, nil
}

// Cancel moves the auction to cancelled and closes the session. Bids queued
// behind the cancel are rejected with ReasonAuctionCancelled.
func (s *Session) Cancel(ctx context.Context, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observe(ctx, now)
	if s.state == StateClosed || PhaseAt(&s.auction, now) == models.PhaseCompleted {
		return ErrAlreadyClosed
	}

	if err := s.store.MarkCancelled(ctx, s.auction.ID, now); err != nil {
		return fmt.Errorf("mark cancelled: %w: %w", ErrSessionUnavailable, err)
	}
	at := now
	s.auction.CancelledAt = &at

	s.logger.Info("auction cancelled", "reason", reason)
	s.publish(models.EventCancelled, now)
	s.close(ctx, now)
	return nil
}

// Tick advances the session against the clock and reports its state.
func (s *Session) Tick(ctx context.Context, now time.Time) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observe(ctx, now)
	return s.state
}

// Status returns the session state without consulting the clock.
func (s *Session) Status() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// observe applies clock-driven transitions. Callers hold mu.
func (s *Session) observe(ctx context.Context, now time.Time) {
	if s.state == StateClosed {
		return
	}

	// A terminal phase is cached only after the final snapshot is stored, so a
	// cached completed/cancelled phase always has a snapshot behind it.
	phase := PhaseAt(&s.auction, now)
	if phase != s.auction.Phase && phase.Open() {
		s.cachePhase(ctx, phase)
		s.publish(models.EventPhase, now)
	}

	switch phase {
	case models.PhaseUpcoming:
		s.state = StateForming
	case models.PhaseLive:
		s.state = StateOpen
	default:
		s.close(ctx, now)
	}
}

// close persists the final ranking and ends the session. If the snapshot
// cannot be written the session stays in Closing and the next tick retries.
func (s *Session) close(ctx context.Context, now time.Time) {
	s.state = StateClosing

	snap := s.snapshot(now)
	if err := s.store.SaveRankSnapshot(ctx, snap); err != nil {
		s.logger.Error("failed to save rank snapshot", "error", err)
		return
	}

	s.cachePhase(ctx, snap.Phase)
	s.state = StateClosed
	s.logger.Info("session closed", "phase", snap.Phase, "bids", snap.BidCount, "positions", len(snap.Entries))
	s.publish(models.EventClosed, now)
	if s.hub != nil {
		s.hub.CloseAuction(s.auction.ID)
	}
}

func (s *Session) cachePhase(ctx context.Context, phase models.Phase) {
	if err := s.store.SetPhase(ctx, s.auction.ID, phase); err != nil {
		s.logger.Warn("failed to cache phase", "error", err, "phase", phase)
	}
	s.auction.Phase = phase
}

func (s *Session) snapshot(now time.Time) models.RankSnapshot {
	return models.RankSnapshot{
		AuctionID:  s.auction.ID,
		Phase:      PhaseAt(&s.auction, now),
		ComputedAt: now,
		BestAmount: s.ranking.Best(),
		Entries:    s.ranking.Entries(),
		BidCount:   s.bidCount,
	}
}

func (s *Session) publish(event string, now time.Time) {
	if s.hub == nil {
		return
	}
	s.deltaSeq++
	s.hub.Publish(s.auction.ID, s.delta(event, now))
}

func (s *Session) delta(event string, now time.Time) models.StateDelta {
	return models.StateDelta{
		Seq:               s.deltaSeq,
		AuctionID:         s.auction.ID,
		Event:             event,
		Phase:             PhaseAt(&s.auction, now),
		RemainingMS:       Remaining(&s.auction, now).Milliseconds(),
		ClosesAt:          EffectiveClose(&s.auction),
		BestAmount:        s.ranking.Best(),
		RankTop:           s.ranking.TopN(s.topN),
		ExtensionsGranted: len(s.auction.Extensions),
		LastExtensionAt:   lastExtensionAt(&s.auction),
	}
}

// State returns a point-in-time snapshot for reconnecting clients.
func (s *Session) State(now time.Time) models.StateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(now)
}

func (s *Session) stateLocked(now time.Time) models.StateResponse {
	return models.StateResponse{
		AuctionID:         s.auction.ID,
		Phase:             PhaseAt(&s.auction, now),
		RemainingMS:       Remaining(&s.auction, now).Milliseconds(),
		ClosesAt:          EffectiveClose(&s.auction),
		BestAmount:        s.ranking.Best(),
		RankTop:           s.ranking.TopN(s.topN),
		ExtensionsGranted: len(s.auction.Extensions),
		LastExtensionAt:   lastExtensionAt(&s.auction),
		Currency:          s.auction.Currency,
	}
}

// Subscribe returns the greeting for a new stream subscriber together with
// its delta channel. Both are taken under the session lock, so every delta on
// the channel has a seq above the greeting's.
func (s *Session) Subscribe(now time.Time) (models.StateDelta, <-chan models.StateDelta, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	greeting := s.delta(models.EventSnapshot, now)
	if s.hub == nil {
		ch := make(chan models.StateDelta)
		close(ch)
		return greeting, ch, func() {}
	}
	deltas, cancel := s.hub.Subscribe(s.auction.ID)
	return greeting, deltas, cancel
}

// Snapshot returns the full current ranking in the same shape that is
// written to the store at close.
func (s *Session) Snapshot(now time.Time) models.RankSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(now)
}

// Auction returns a copy of the auction record as the session sees it.
func (s *Session) Auction() models.Auction {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.auction
	a.Extensions = append([]models.Extension(nil), s.auction.Extensions...)
	return a
}
