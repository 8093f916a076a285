// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/lowbid/auth"
	"github.com/danielhkuo/lowbid/cliparse"
	"github.com/danielhkuo/lowbid/db"
	"github.com/danielhkuo/lowbid/engine"
	"github.com/danielhkuo/lowbid/models"
	"github.com/danielhkuo/lowbid/store"
)

// Epoch is the fixed start time used by test clocks.
var Epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// SetupTestDB creates a fresh SQLite database file with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lowbid_test.db")
	conn, err := db.Open(db.TypeSQLite, "file:"+path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:             3318,
		DatabaseURL:      "file::memory:",
		DatabaseType:     db.TypeSQLite,
		AdminKeySalt:     "test-admin-salt",
		SweepInterval:    time.Second,
		ExtensionWindow:  3 * time.Minute,
		ExtensionAmount:  3 * time.Minute,
		RankTopN:         10,
		SubscriberBuffer: 16,
	}
}

// SetupTestRegistry wires a registry over conn that reads time from clock
func SetupTestRegistry(t *testing.T, conn *sql.DB, clock *Clock, cfg cliparse.Config) (*engine.Registry, *store.SQLStore) {
	t.Helper()

	st := store.New(conn)
	reg := engine.NewRegistry(st, engine.NewHub(cfg.SubscriberBuffer), engine.RegistryOptions{
		TopN: cfg.RankTopN,
		Now:  clock.Now,
	})
	return reg, st
}

// Clock is a manually driven clock for deterministic tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// TestAuction returns an auction that goes live at Epoch, runs for an hour,
// starts at 10000 and requires steps of 500.
func TestAuction() models.Auction {
	return models.Auction{
		ID:                     uuid.NewString(),
		Title:                  "Test Auction",
		ScheduledStart:         Epoch,
		BaseDurationSeconds:    3600,
		Extensions:             []models.Extension{},
		DecrementalStep:        decimal.NewFromInt(500),
		StartingPrice:          decimal.NewFromInt(10000),
		Currency:               "INR",
		Phase:                  models.PhaseUpcoming,
		Access:                 models.AccessOpen,
		ExtensionWindowSeconds: models.DefaultExtensionWindowSeconds,
		ExtensionAmountSeconds: models.DefaultExtensionAmountSeconds,
		CreatedAt:              Epoch.Add(-time.Hour),
	}
}

// CreateTestAuction stores the auction and returns its admin key
func CreateTestAuction(t *testing.T, conn *sql.DB, cfg cliparse.Config, a models.Auction) string {
	t.Helper()

	if err := store.New(conn).CreateAuction(context.Background(), a); err != nil {
		t.Fatalf("Failed to create test auction: %v", err)
	}
	return auth.GenerateAdminKey(a.ID, cfg.AdminKeySalt)
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
