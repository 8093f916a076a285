// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/lowbid/auth"
	"github.com/danielhkuo/lowbid/cliparse"
	"github.com/danielhkuo/lowbid/engine"
	"github.com/danielhkuo/lowbid/middleware"
	"github.com/danielhkuo/lowbid/models"
	"github.com/danielhkuo/lowbid/store"
)

// retryAfter is suggested to clients when a session cannot reach the store
const retryAfter = time.Second

type AuctionHandler struct {
	registry *engine.Registry
	store    *store.SQLStore
	cfg      cliparse.Config
}

func NewAuctionHandler(registry *engine.Registry, st *store.SQLStore, cfg cliparse.Config) *AuctionHandler {
	return &AuctionHandler{registry: registry, store: st, cfg: cfg}
}

// CreateAuction handles POST /auctions
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAuctionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	if req.ScheduledStart.IsZero() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "scheduled_start is required")
		return
	}
	if req.BaseDurationSeconds <= 0 || req.BaseDurationSeconds > models.MaxDurationSeconds {
		middleware.ErrorResponse(w, http.StatusBadRequest, "base_duration_seconds must be positive and at most a year")
		return
	}
	if !req.StartingPrice.IsPositive() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "starting_price must be positive")
		return
	}
	if req.DecrementalStep.IsNegative() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "decremental_step must not be negative")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "currency is required")
		return
	}
	if req.ExtensionWindowSeconds < 0 || req.ExtensionAmountSeconds < 0 ||
		req.ExtensionWindowSeconds > models.MaxDurationSeconds || req.ExtensionAmountSeconds > models.MaxDurationSeconds {
		middleware.ErrorResponse(w, http.StatusBadRequest, "extension policy must be between zero and a year")
		return
	}

	access := req.Access
	if access == "" {
		access = models.AccessOpen
	}
	if access != models.AccessOpen && access != models.AccessInvited {
		middleware.ErrorResponse(w, http.StatusBadRequest, "access must be open or invited")
		return
	}

	window := req.ExtensionWindowSeconds
	if window == 0 {
		window = int64(h.cfg.ExtensionWindow.Seconds())
	}
	amount := req.ExtensionAmountSeconds
	if amount == 0 {
		amount = int64(h.cfg.ExtensionAmount.Seconds())
	}

	now := h.registry.Now()
	a := models.Auction{
		ID:                     uuid.NewString(),
		Title:                  req.Title,
		ScheduledStart:         req.ScheduledStart.UTC(),
		BaseDurationSeconds:    req.BaseDurationSeconds,
		Extensions:             []models.Extension{},
		DecrementalStep:        req.DecrementalStep,
		StartingPrice:          req.StartingPrice,
		Currency:               currency,
		Access:                 access,
		ExtensionWindowSeconds: window,
		ExtensionAmountSeconds: amount,
		AllowPreBids:           req.AllowPreBids,
		CreatedAt:              now,
	}
	a.Phase = engine.PhaseAt(&a, now)
	if !a.Phase.Open() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "auction would already be over")
		return
	}

	if err := h.store.CreateAuction(r.Context(), a); err != nil {
		slog.Error("failed to insert auction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create auction")
		return
	}

	// Open the session now so the auction closes on time without traffic
	if _, err := h.registry.Get(r.Context(), a.ID); err != nil {
		slog.Warn("failed to open session", "auction_id", a.ID, "error", err)
	}

	slog.Info("auction created", "auction_id", a.ID, "starting_price", a.StartingPrice.String(), "access", a.Access)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateAuctionResponse{
		AuctionID: a.ID,
		AdminKey:  auth.GenerateAdminKey(a.ID, h.cfg.AdminKeySalt),
	})
}

// GetState handles GET /auctions/{id}/state
func (h *AuctionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("id")

	sess, err := h.registry.Get(r.Context(), auctionID)
	if err == nil {
		middleware.JSONResponse(w, http.StatusOK, sess.State(h.registry.Now()))
		return
	}
	if !errors.Is(err, engine.ErrSessionRetired) {
		writeSessionError(w, err)
		return
	}

	state, err := archivedState(r.Context(), h.store, auctionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, state)
}

// GetRanking handles GET /auctions/{id}/ranking
func (h *AuctionHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("id")

	sess, err := h.registry.Get(r.Context(), auctionID)
	if err == nil {
		middleware.JSONResponse(w, http.StatusOK, sess.Snapshot(h.registry.Now()))
		return
	}
	if !errors.Is(err, engine.ErrSessionRetired) {
		writeSessionError(w, err)
		return
	}

	snap, err := h.store.LoadRankSnapshot(r.Context(), auctionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, snap)
}

// GetBids handles GET /auctions/{id}/bids
// The log includes rejected bids, in acceptance order.
func (h *AuctionHandler) GetBids(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("id")

	if _, err := h.store.LoadAuction(r.Context(), auctionID); err != nil {
		writeSessionError(w, err)
		return
	}

	bids, err := h.store.LoadBids(r.Context(), auctionID)
	if err != nil {
		slog.Error("failed to load bids", "auction_id", auctionID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}

	middleware.JSONResponse(w, http.StatusOK, models.BidLogResponse{
		AuctionID: auctionID,
		Bids:      bids,
	})
}

// archivedState rebuilds the state of a finished auction from its final snapshot.
func archivedState(ctx context.Context, st *store.SQLStore, auctionID string) (models.StateResponse, error) {
	a, err := st.LoadAuction(ctx, auctionID)
	if err != nil {
		return models.StateResponse{}, err
	}
	snap, err := st.LoadRankSnapshot(ctx, auctionID)
	if err != nil {
		return models.StateResponse{}, err
	}

	state := models.StateResponse{
		AuctionID:         a.ID,
		Phase:             snap.Phase,
		ClosesAt:          engine.EffectiveClose(&a),
		BestAmount:        snap.BestAmount,
		RankTop:           snap.Entries,
		ExtensionsGranted: len(a.Extensions),
		Currency:          a.Currency,
	}
	if n := len(a.Extensions); n > 0 {
		at := a.Extensions[n-1].GrantedAt
		state.LastExtensionAt = &at
	}
	return state, nil
}

// closedReason maps a finished auction to the reason new bids and joins get.
func closedReason(ctx context.Context, st *store.SQLStore, auctionID string) (models.StateResponse, models.RejectReason, error) {
	state, err := archivedState(ctx, st, auctionID)
	if err != nil {
		return models.StateResponse{}, "", err
	}
	if state.Phase == models.PhaseCancelled {
		return state, models.ReasonAuctionCancelled, nil
	}
	return state, models.ReasonNotOpen, nil
}

// writeSessionError maps engine and store errors onto HTTP responses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrAuctionNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Auction not found")
	case errors.Is(err, engine.ErrAlreadyClosed), errors.Is(err, engine.ErrSessionRetired):
		middleware.ErrorResponse(w, http.StatusConflict, "Auction already closed")
	case errors.Is(err, engine.ErrInvalidExtension):
		middleware.ErrorResponse(w, http.StatusBadRequest, "Extension must add a positive number of seconds")
	case errors.Is(err, engine.ErrSessionUnavailable), errors.Is(err, store.ErrSnapshotNotFound):
		slog.Error("auction session unavailable", "error", err)
		middleware.UnavailableResponse(w, retryAfter, "Auction temporarily unavailable")
	default:
		slog.Error("unexpected session error", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}
