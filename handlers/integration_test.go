// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/lowbid/models"
	"github.com/danielhkuo/lowbid/testutil"
)

// TestFullAuctionWorkflow tests the complete end-to-end workflow:
// 1. Create auction
// 2. Suppliers join
// 3. Suppliers bid down the price
// 4. A late bid extends the auction
// 5. Auction completes and is retired
// 6. Verify the archived result and the bid log
func TestFullAuctionWorkflow(t *testing.T) {
	env := newTestEnv(t)
	start := testutil.Epoch.Add(10 * time.Minute)

	// Step 1: Create an auction
	req := testutil.MakeRequest("POST", "/auctions", models.CreateAuctionRequest{
		Title:               "Integration Test Auction",
		ScheduledStart:      start,
		BaseDurationSeconds: 1800,
		StartingPrice:       decimal.NewFromInt(50000),
		DecrementalStep:     decimal.NewFromInt(1000),
		Currency:            "INR",
	}, nil)
	w := httptest.NewRecorder()
	env.auctions.CreateAuction(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Step 1 - Create auction failed: %d - %s", w.Code, w.Body.String())
	}

	var createResp models.CreateAuctionResponse
	testutil.AssertJSON(t, w, &createResp)
	auctionID := createResp.AuctionID
	t.Logf("Step 1 - Created auction: %s", auctionID)

	// Step 2: Join while upcoming, then bid once live
	for _, pid := range []string{"acme", "globex", "initech"} {
		jw, jresp := env.join(t, auctionID, pid)
		if jw.Code != http.StatusOK || !jresp.Accepted {
			t.Fatalf("Step 2 - Join %s failed: %d - %s", pid, jw.Code, jw.Body.String())
		}
	}

	bw, bresp := env.placeBid(t, auctionID, "acme", 45000)
	if bw.Code != http.StatusConflict || bresp.Reason != models.ReasonNotOpen {
		t.Fatalf("Step 2 - Expected early bid to be rejected as not_open, got %d %s", bw.Code, bresp.Reason)
	}
	t.Log("Step 2 - Suppliers joined")

	// Step 3: Bid down the price
	env.clock.Set(start.Add(time.Minute))
	sequence := []struct {
		pid    string
		amount int64
		status int
	}{
		{"acme", 50000, http.StatusCreated},
		{"globex", 48000, http.StatusCreated},
		{"initech", 47500, http.StatusConflict},
		{"initech", 47000, http.StatusCreated},
		{"acme", 45000, http.StatusCreated},
	}
	for _, s := range sequence {
		bw, _ := env.placeBid(t, auctionID, s.pid, s.amount)
		if bw.Code != s.status {
			t.Fatalf("Step 3 - Bid %s %d: expected %d, got %d - %s", s.pid, s.amount, s.status, bw.Code, bw.Body.String())
		}
	}
	t.Log("Step 3 - Price bid down to 45000")

	// Step 4: Late bid extends
	originalClose := start.Add(30 * time.Minute)
	env.clock.Set(originalClose.Add(-30 * time.Second))
	bw, bresp = env.placeBid(t, auctionID, "globex", 44000)
	if bw.Code != http.StatusCreated {
		t.Fatalf("Step 4 - Late bid failed: %d - %s", bw.Code, bw.Body.String())
	}
	extendedClose := originalClose.Add(3 * time.Minute)
	if !bresp.ClosesAt.Equal(extendedClose) {
		t.Fatalf("Step 4 - Expected closes_at %v, got %v", extendedClose, bresp.ClosesAt)
	}
	t.Log("Step 4 - Auction extended to", extendedClose)

	// Still live at the original close
	env.clock.Set(originalClose.Add(time.Second))
	state := env.getState(t, auctionID)
	if state.Phase != models.PhaseLive {
		t.Fatalf("Step 4 - Expected live after original close, got %s", state.Phase)
	}

	// Step 5: Complete and retire
	env.clock.Set(extendedClose)
	if n := env.registry.Sweep(context.Background()); n != 1 {
		t.Fatalf("Step 5 - Expected 1 retired session, got %d", n)
	}
	t.Log("Step 5 - Auction completed")

	// Step 6: Verify archived result
	state = env.getState(t, auctionID)
	if state.Phase != models.PhaseCompleted {
		t.Errorf("Step 6 - Expected completed, got %s", state.Phase)
	}
	if !state.BestAmount.Valid || !state.BestAmount.Decimal.Equal(decimal.NewFromInt(44000)) {
		t.Errorf("Step 6 - Expected best 44000, got %v", state.BestAmount)
	}
	wantOrder := []string{"globex", "acme", "initech"}
	if len(state.RankTop) != len(wantOrder) {
		t.Fatalf("Step 6 - Expected %d ranked suppliers, got %d", len(wantOrder), len(state.RankTop))
	}
	for i, pid := range wantOrder {
		if state.RankTop[i].ParticipantID != pid {
			t.Errorf("Step 6 - Rank %d: expected %s, got %s", i+1, pid, state.RankTop[i].ParticipantID)
		}
	}
	if state.ExtensionsGranted != 1 {
		t.Errorf("Step 6 - Expected 1 extension, got %d", state.ExtensionsGranted)
	}

	req = testutil.MakeRequest("GET", "/auctions/"+auctionID+"/bids", nil, nil)
	req.SetPathValue("id", auctionID)
	w = httptest.NewRecorder()
	env.auctions.GetBids(w, req)
	var log models.BidLogResponse
	testutil.AssertJSON(t, w, &log)

	// One early rejection, five bids in step 3, one late bid
	if len(log.Bids) != 7 {
		t.Errorf("Step 6 - Expected 7 logged bids, got %d", len(log.Bids))
	}
	t.Log("Step 6 - Result verified")
}
