// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/lowbid/models"
)

func TestWithLogging(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"Created", http.StatusCreated, `{"bid_id":"b1"}`},
		{"Conflict", http.StatusConflict, `{"accepted":false}`},
		{"Unavailable", http.StatusServiceUnavailable, "retry"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := WithLogging(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.body))
			})

			req := httptest.NewRequest("POST", "/auctions/a1/bids", nil)
			w := httptest.NewRecorder()
			handler(w, req)

			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}
			if w.Body.String() != tc.body {
				t.Errorf("Expected body '%s', got '%s'", tc.body, w.Body.String())
			}
			if w.Header().Get(RequestIDHeader) == "" {
				t.Error("Expected a generated request id")
			}
		})
	}
}

func TestWithLogging_KeepsRequestID(t *testing.T) {
	handler := WithLogging(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("GET", "/auctions/a1/state", nil)
	req.Header.Set(RequestIDHeader, "trace-42")
	w := httptest.NewRecorder()
	handler(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "trace-42" {
		t.Errorf("Expected request id 'trace-42', got '%s'", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected implicit status 200, got %d", w.Code)
	}
}

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	rec.WriteHeader(http.StatusTeapot)

	if rec.status != http.StatusTeapot || w.Code != http.StatusTeapot {
		t.Errorf("Expected 418 recorded and written, got %d/%d", rec.status, w.Code)
	}
}

func TestJSONResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		data       interface{}
		expected   string
	}{
		{
			name:       "created auction",
			statusCode: http.StatusCreated,
			data:       models.CreateAuctionResponse{AuctionID: "abc123", AdminKey: "key456"},
			expected:   `{"auction_id":"abc123","admin_key":"key456"}`,
		},
		{
			name:       "error response",
			statusCode: http.StatusBadRequest,
			data:       models.ErrorResponse{Error: "Bad Request", Message: "missing field"},
			expected:   `{"error":"Bad Request","message":"missing field"}`,
		},
		{
			name:       "array data",
			statusCode: http.StatusOK,
			data:       []string{"p1", "p2"},
			expected:   `["p1","p2"]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			JSONResponse(w, tc.statusCode, tc.data)

			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}
			if body := strings.TrimSpace(w.Body.String()); body != tc.expected {
				t.Errorf("Expected body '%s', got '%s'", tc.expected, body)
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	testCases := []struct {
		statusCode    int
		message       string
		expectedError string
	}{
		{http.StatusBadRequest, "amount is required", "Bad Request"},
		{http.StatusUnauthorized, "invalid admin key", "Unauthorized"},
		{http.StatusNotFound, "auction not found", "Not Found"},
		{http.StatusConflict, "auction already closed", "Conflict"},
	}

	for _, tc := range testCases {
		t.Run(tc.expectedError, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorResponse(w, tc.statusCode, tc.message)

			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if resp.Error != tc.expectedError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectedError, resp.Error)
			}
			if resp.Message != tc.message {
				t.Errorf("Expected message '%s', got '%s'", tc.message, resp.Message)
			}
		})
	}
}

func TestUnavailableResponse(t *testing.T) {
	testCases := []struct {
		name       string
		retryAfter time.Duration
		expected   string
	}{
		{"whole seconds", 3 * time.Second, "3"},
		{"sub-second rounds up to one", 200 * time.Millisecond, "1"},
		{"zero", 0, "1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			UnavailableResponse(w, tc.retryAfter, "try again")

			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("Expected status 503, got %d", w.Code)
			}
			if got := w.Header().Get("Retry-After"); got != tc.expected {
				t.Errorf("Expected Retry-After %s, got %s", tc.expected, got)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Message != "try again" {
				t.Errorf("Expected message 'try again', got '%s'", resp.Message)
			}
		})
	}
}

func TestParseJSONBody(t *testing.T) {
	t.Run("valid bid", func(t *testing.T) {
		body := `{"participant_id":"p1","amount":"9500.50"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.PlaceBidRequest
		if err := ParseJSONBody(req, &parsed); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if parsed.ParticipantID != "p1" {
			t.Errorf("Expected participant_id 'p1', got '%s'", parsed.ParticipantID)
		}
		if parsed.Amount.String() != "9500.5" {
			t.Errorf("Expected amount 9500.5, got '%s'", parsed.Amount.String())
		}
	})

	t.Run("numeric amount", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"participant_id":"p1","amount":9000}`))

		var parsed models.PlaceBidRequest
		if err := ParseJSONBody(req, &parsed); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if parsed.Amount.String() != "9000" {
			t.Errorf("Expected amount 9000, got '%s'", parsed.Amount.String())
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{invalid json}`))

		var parsed models.PlaceBidRequest
		err := ParseJSONBody(req, &parsed)
		if err == nil || !strings.Contains(err.Error(), "malformed JSON") {
			t.Errorf("Expected malformed JSON error, got %v", err)
		}
	})

	t.Run("empty body wraps EOF", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))

		var parsed models.CancelRequest
		err := ParseJSONBody(req, &parsed)
		if !errors.Is(err, io.EOF) {
			t.Errorf("Expected io.EOF, got %v", err)
		}
	})

	t.Run("trailing data rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"seconds":60} {"seconds":60}`))

		var parsed models.ExtendRequest
		if err := ParseJSONBody(req, &parsed); err == nil {
			t.Error("Expected error for two JSON values")
		}
	})

	t.Run("oversized body rejected", func(t *testing.T) {
		body := `{"participant_id":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.JoinRequest
		if err := ParseJSONBody(req, &parsed); err == nil {
			t.Error("Expected error for oversized body")
		}
	})

	t.Run("unknown fields ignored", func(t *testing.T) {
		body := `{"participant_id":"p1","display_identity":"Acme","note":"ignored"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.JoinRequest
		if err := ParseJSONBody(req, &parsed); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if parsed.DisplayIdentity != "Acme" {
			t.Errorf("Expected display_identity 'Acme', got '%s'", parsed.DisplayIdentity)
		}
	})
}

func TestCORS(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("handled"))
	})
	corsHandler := CORS(nextHandler)

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/auctions/a1/bids", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		corsHandler.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("Expected status 204, got %d", w.Code)
		}
		if w.Body.Len() != 0 {
			t.Errorf("Expected empty body for preflight, got '%s'", w.Body.String())
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
			t.Error("Expected Access-Control-Allow-Origin to match request origin")
		}

		allowed := w.Header().Get("Access-Control-Allow-Headers")
		for _, h := range []string{"Content-Type", "X-Admin-Key", RequestIDHeader} {
			if !strings.Contains(allowed, h) {
				t.Errorf("Expected %s in allowed headers", h)
			}
		}
		methods := w.Header().Get("Access-Control-Allow-Methods")
		for _, m := range []string{"GET", "POST"} {
			if !strings.Contains(methods, m) {
				t.Errorf("Expected %s in allowed methods", m)
			}
		}
	})

	t.Run("exposes Retry-After", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auctions/a1/bids", nil)
		req.Header.Set("Origin", "https://buyer.example.com")
		w := httptest.NewRecorder()
		corsHandler.ServeHTTP(w, req)

		if w.Body.String() != "handled" {
			t.Error("Expected next handler to be called")
		}
		if !strings.Contains(w.Header().Get("Access-Control-Expose-Headers"), "Retry-After") {
			t.Error("Expected Retry-After to be exposed")
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "https://buyer.example.com" {
			t.Error("Expected Access-Control-Allow-Origin to reflect request origin")
		}
	})

	t.Run("never allows credentials", func(t *testing.T) {
		for _, method := range []string{"OPTIONS", "GET"} {
			req := httptest.NewRequest(method, "/auctions/a1/state", nil)
			req.Header.Set("Origin", "https://evil.example.com")
			w := httptest.NewRecorder()
			corsHandler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
				t.Errorf("%s: expected no Access-Control-Allow-Credentials, got %q", method, got)
			}
		}
	})

	t.Run("no origin defaults to wildcard", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/auctions/a1/state", nil)
		w := httptest.NewRecorder()
		corsHandler.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("Expected Access-Control-Allow-Origin to default to '*'")
		}
	})
}

func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, "127.0.0.1:12345", "203.0.113.195"},
		{"forwarded beats real ip", map[string]string{"X-Forwarded-For": "192.168.1.100", "X-Real-IP": "203.0.113.50"}, "10.0.0.1:1", "192.168.1.100"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.50"}, "10.0.0.1:12345", "203.0.113.50"},
		{"remote with port", nil, "192.168.1.50:54321", "192.168.1.50"},
		{"remote without port", nil, "192.168.1.50", "192.168.1.50"},
		{"IPv6 remote", nil, "[::1]:12345", "::1"},
		{"IPv6 forwarded", map[string]string{"X-Forwarded-For": "2001:db8::1"}, "127.0.0.1:1", "2001:db8::1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			if got := GetClientIP(req); got != tc.expectedIP {
				t.Errorf("Expected IP '%s', got '%s'", tc.expectedIP, got)
			}
		})
	}
}
