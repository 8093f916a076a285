// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/lowbid/cliparse"
	"github.com/danielhkuo/lowbid/engine"
	"github.com/danielhkuo/lowbid/handlers"
	"github.com/danielhkuo/lowbid/middleware"
	"github.com/danielhkuo/lowbid/store"
)

func NewRouter(registry *engine.Registry, st *store.SQLStore, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	auctionHandler := handlers.NewAuctionHandler(registry, st, cfg)
	biddingHandler := handlers.NewBiddingHandler(registry, st, cfg)
	adminHandler := handlers.NewAdminHandler(registry, st, cfg)
	streamHandler := handlers.NewStreamHandler(registry, st)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Auctions (public)
	mux.HandleFunc("POST /auctions", middleware.WithLogging(auctionHandler.CreateAuction))
	mux.HandleFunc("GET /auctions/{id}/state", middleware.WithLogging(auctionHandler.GetState))
	mux.HandleFunc("GET /auctions/{id}/ranking", middleware.WithLogging(auctionHandler.GetRanking))
	mux.HandleFunc("GET /auctions/{id}/bids", middleware.WithLogging(auctionHandler.GetBids))

	// Bidding
	mux.HandleFunc("POST /auctions/{id}/join", middleware.WithLogging(biddingHandler.Join))
	mux.HandleFunc("POST /auctions/{id}/bids", middleware.WithLogging(biddingHandler.PlaceBid))

	// Admin operations (require X-Admin-Key)
	mux.HandleFunc("POST /auctions/{id}/cancel", middleware.WithLogging(adminHandler.Cancel))
	mux.HandleFunc("POST /auctions/{id}/extend", middleware.WithLogging(adminHandler.Extend))
	mux.HandleFunc("POST /auctions/{id}/participants", middleware.WithLogging(adminHandler.Invite))

	// Delta stream; not wrapped in logging since it lives as long as the connection
	mux.HandleFunc("GET /auctions/{id}/stream", streamHandler.Stream)

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("lowbid API v1"))
	})

	return mux
}
