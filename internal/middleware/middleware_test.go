package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSessionAuth_TokenRoundTrip(t *testing.T) {
	auth := NewSessionAuth("test-secret", time.Hour)
	id := uuid.New()

	token, exp, err := auth.GenerateSessionToken(id)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("Expected expiry in the future, got %v", exp)
	}

	got, err := auth.ParseSessionToken(token)
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}
	if got != id {
		t.Errorf("Expected session %s, got %s", id, got)
	}
}

func TestSessionAuth_RejectsForeignSecret(t *testing.T) {
	token, _, err := NewSessionAuth("secret-a", time.Hour).GenerateSessionToken(uuid.New())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewSessionAuth("secret-b", time.Hour).ParseSessionToken(token); err == nil {
		t.Fatal("Expected token signed with another secret to be rejected")
	}
}

func TestSessionAuth_Middleware(t *testing.T) {
	auth := NewSessionAuth("test-secret", time.Hour)
	expired := NewSessionAuth("test-secret", -time.Minute)
	id := uuid.New()
	good, _, _ := auth.GenerateSessionToken(id)
	old, _, _ := expired.GenerateSessionToken(id)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", "Bearer abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired token", "Bearer " + old, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"valid token", "Bearer " + good, http.StatusOK, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen uuid.UUID
			h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetSessionID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/x/messages", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantCode {
				t.Fatalf("Expected status %d, got %d", tc.wantCode, rr.Code)
			}
			if tc.wantErr == "" {
				if seen != id {
					t.Errorf("Expected session %s in context, got %s", id, seen)
				}
				return
			}

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode error: %v", err)
			}
			if body.Error.Code != tc.wantErr {
				t.Errorf("Expected code %q, got %q", tc.wantErr, body.Error.Code)
			}
		})
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, nil)
	defer rl.Stop()
	now := time.Now()

	if !rl.allow("a", now) || !rl.allow("a", now) {
		t.Fatal("Expected first two requests to pass")
	}
	if rl.allow("a", now) {
		t.Fatal("Expected third request to be limited")
	}
	if !rl.allow("b", now) {
		t.Fatal("Expected other key to pass")
	}
	if !rl.allow("a", now.Add(2*time.Minute)) {
		t.Fatal("Expected window reset after it elapsed")
	}

	rl.cleanup(now.Add(10 * time.Minute))
	if len(rl.visitors) != 0 {
		t.Errorf("Expected stale visitors removed, got %d", len(rl.visitors))
	}
}

func TestRateLimiter_MiddlewareReturns429(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, BySession)
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := []int{}
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected [200 429], got %v", codes)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rr.Header().Get("X-Request-ID") != seen {
		t.Errorf("Expected generated request id echoed, got %q / %q", seen, rr.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("Expected caller request id kept, got %q", rr.Header().Get("X-Request-ID"))
	}
}

func TestCORS(t *testing.T) {
	h := CORS("http://localhost:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("Expected origin allowed, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("Expected foreign origin not allowed")
	}
}
