// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/lowbid/auth"
	"github.com/danielhkuo/lowbid/cliparse"
	"github.com/danielhkuo/lowbid/engine"
	"github.com/danielhkuo/lowbid/middleware"
	"github.com/danielhkuo/lowbid/models"
	"github.com/danielhkuo/lowbid/store"
)

// AdminHandler serves the operations that need the auction's admin key.
type AdminHandler struct {
	registry *engine.Registry
	store    *store.SQLStore
	cfg      cliparse.Config
}

func NewAdminHandler(registry *engine.Registry, st *store.SQLStore, cfg cliparse.Config) *AdminHandler {
	return &AdminHandler{registry: registry, store: st, cfg: cfg}
}

func (h *AdminHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	auctionID := r.PathValue("id")
	adminKey := r.Header.Get(auth.AdminKeyHeader)
	if err := auth.ValidateAdminKey(auctionID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return "", false
	}
	return auctionID, true
}

// Cancel handles POST /auctions/{id}/cancel
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	// The body is optional
	var req models.CancelRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	sess, err := h.registry.Get(r.Context(), auctionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	now := h.registry.Now()
	if err := sess.Cancel(r.Context(), req.Reason, now); err != nil {
		writeSessionError(w, err)
		return
	}
	if err := h.registry.Retire(r.Context(), auctionID); err != nil {
		// The sweeper retires it once the snapshot is written
		slog.Warn("cancelled session not retired", "auction_id", auctionID, "error", err)
	}

	slog.Info("auction cancelled", "auction_id", auctionID, "reason", req.Reason)

	a := sess.Auction()
	middleware.JSONResponse(w, http.StatusOK, models.ActionResponse{
		AuctionID: auctionID,
		Phase:     engine.PhaseAt(&a, now),
		ClosesAt:  engine.EffectiveClose(&a),
	})
}

// Extend handles POST /auctions/{id}/extend
func (h *AdminHandler) Extend(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req models.ExtendRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Seconds <= 0 || req.Seconds > models.MaxDurationSeconds {
		middleware.ErrorResponse(w, http.StatusBadRequest, "seconds must be positive and at most a year")
		return
	}

	sess, err := h.registry.Get(r.Context(), auctionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	now := h.registry.Now()
	if _, err := sess.Extend(r.Context(), req.Seconds, req.Reason, now); err != nil {
		writeSessionError(w, err)
		return
	}

	a := sess.Auction()
	middleware.JSONResponse(w, http.StatusOK, models.ActionResponse{
		AuctionID: auctionID,
		Phase:     engine.PhaseAt(&a, now),
		ClosesAt:  engine.EffectiveClose(&a),
	})
}

// Invite handles POST /auctions/{id}/participants
func (h *AdminHandler) Invite(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req models.InviteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ParticipantID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "participant_id is required")
		return
	}

	sess, err := h.registry.Get(r.Context(), auctionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if err := sess.Invite(r.Context(), req.ParticipantID, req.DisplayIdentity, h.registry.Now()); err != nil {
		writeSessionError(w, err)
		return
	}

	slog.Info("participant invited", "auction_id", auctionID, "participant_id", req.ParticipantID)

	middleware.JSONResponse(w, http.StatusCreated, map[string]string{
		"auction_id":     auctionID,
		"participant_id": req.ParticipantID,
	})
}
