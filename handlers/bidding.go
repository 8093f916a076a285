// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/danielhkuo/lowbid/cliparse"
	"github.com/danielhkuo/lowbid/engine"
	"github.com/danielhkuo/lowbid/middleware"
	"github.com/danielhkuo/lowbid/models"
	"github.com/danielhkuo/lowbid/store"
)

type BiddingHandler struct {
	registry *engine.Registry
	store    *store.SQLStore
	cfg      cliparse.Config
}

func NewBiddingHandler(registry *engine.Registry, st *store.SQLStore, cfg cliparse.Config) *BiddingHandler {
	return &BiddingHandler{registry: registry, store: st, cfg: cfg}
}

// Join handles POST /auctions/{id}/join
func (h *BiddingHandler) Join(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("id")

	var req models.JoinRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ParticipantID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "participant_id is required")
		return
	}

	sess, err := h.registry.Get(r.Context(), auctionID)
	if errors.Is(err, engine.ErrSessionRetired) {
		_, reason, lerr := closedReason(r.Context(), h.store, auctionID)
		if lerr != nil {
			writeSessionError(w, lerr)
			return
		}
		middleware.JSONResponse(w, http.StatusConflict, models.JoinResponse{Reason: reason})
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}

	res, err := sess.Join(r.Context(), req.ParticipantID, req.DisplayIdentity, h.registry.Now())
	if err != nil {
		writeSessionError(w, err)
		return
	}

	middleware.JSONResponse(w, rejectionStatus(res.Accepted, res.Reason, http.StatusOK), models.JoinResponse{
		Accepted: res.Accepted,
		Reason:   res.Reason,
	})
}

// PlaceBid handles POST /auctions/{id}/bids
func (h *BiddingHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("id")

	var req models.PlaceBidRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ParticipantID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "participant_id is required")
		return
	}

	sess, err := h.registry.Get(r.Context(), auctionID)
	if errors.Is(err, engine.ErrSessionRetired) {
		state, reason, lerr := closedReason(r.Context(), h.store, auctionID)
		if lerr != nil {
			writeSessionError(w, lerr)
			return
		}
		middleware.JSONResponse(w, http.StatusConflict, models.PlaceBidResponse{
			Reason:      reason,
			CurrentBest: state.BestAmount,
			ClosesAt:    state.ClosesAt,
		})
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}

	res, err := sess.SubmitBid(r.Context(), req.ParticipantID, req.Amount, h.registry.Now())
	resp := models.PlaceBidResponse{
		Accepted:     res.Accepted,
		Reason:       res.Reason,
		CurrentBest:  res.CurrentBest,
		RankPosition: res.RankPosition,
		ClosesAt:     res.ClosesAt,
	}
	if err != nil {
		// The bid was not recorded; the client can resubmit it unchanged
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		middleware.JSONResponse(w, http.StatusServiceUnavailable, resp)
		return
	}
	if res.Accepted {
		resp.BidID = res.Bid.BidID
	}

	middleware.JSONResponse(w, rejectionStatus(res.Accepted, res.Reason, http.StatusCreated), resp)
}

func rejectionStatus(accepted bool, reason models.RejectReason, ok int) int {
	switch {
	case accepted:
		return ok
	case reason == models.ReasonNotAParticipant:
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}
