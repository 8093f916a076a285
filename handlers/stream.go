// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/lowbid/engine"
	"github.com/danielhkuo/lowbid/middleware"
	"github.com/danielhkuo/lowbid/store"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients are served from a different origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler pushes state deltas to subscribers over a websocket.
type StreamHandler struct {
	registry *engine.Registry
	store    *store.SQLStore
}

func NewStreamHandler(registry *engine.Registry, st *store.SQLStore) *StreamHandler {
	return &StreamHandler{registry: registry, store: st}
}

// Stream handles GET /auctions/{id}/stream
// The first message is a snapshot; every later message is a delta whose seq
// is one higher than the previous. A gap means deltas were dropped and the
// client should re-read /state.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("id")

	sess, err := h.registry.Get(r.Context(), auctionID)
	if errors.Is(err, engine.ErrSessionRetired) {
		middleware.ErrorResponse(w, http.StatusGone, "Auction has ended")
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		slog.Warn("websocket upgrade failed", "auction_id", auctionID, "error", err)
		return
	}
	defer conn.Close()

	greeting, deltas, cancel := sess.Subscribe(h.registry.Now())
	defer cancel()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(greeting); err != nil {
		return
	}
	if sess.Status() == engine.StateClosed {
		closeStream(conn, "auction ended")
		return
	}

	// Reader: handles pongs and notices when the client goes away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case delta, ok := <-deltas:
			if !ok {
				closeStream(conn, "auction ended")
				return
			}
			if delta.Seq <= greeting.Seq {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(delta); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
