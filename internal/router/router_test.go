package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tutor-backend/internal/handlers"
	"tutor-backend/internal/middleware"
	"tutor-backend/internal/models"
	"tutor-backend/internal/realtime"
	"tutor-backend/internal/services"
	"tutor-backend/internal/session"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := session.NewStore(0)
	t.Cleanup(store.Close)

	auth := middleware.NewSessionAuth("router-test-secret", time.Hour)
	hub := realtime.NewHub(nil, auth)
	limiter := middleware.NewRateLimiter(20, time.Minute, middleware.BySession)
	t.Cleanup(limiter.Stop)

	doc := &models.DocumentRef{DisplayName: "linear-algebra-4ed.pdf", URI: "https://x/files/abc", MIMEType: "application/pdf"}
	chat := handlers.NewChatHandler(store, services.NewTutorService(nil), auth, hub, hub, doc)
	docs := handlers.NewDocumentHandler(doc, &models.DocumentInfo{Pages: 10})

	return New(auth, limiter, chat, docs, hub, "http://localhost:8080")
}

func TestRouter_HealthAndIndex(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("Unexpected health response %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Linear Algebra Tutor") {
		t.Errorf("Expected index page, got %d", rr.Code)
	}
}

func TestRouter_SessionLifecycle(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rr.Code)
	}

	var created models.SessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode session: %v", err)
	}
	path := "/api/v1/sessions/" + created.SessionID.String() + "/messages"

	// Without a token
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", rr.Code)
	}

	// With the token
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 with token, got %d", rr.Code)
	}

	// Reset
	req = httptest.NewRequest(http.MethodDelete, path, nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on reset, got %d", rr.Code)
	}

	// End, then the session is gone
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+created.SessionID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on end, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 after end, got %d", rr.Code)
	}
}

func TestRouter_DocumentStatus(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/document", nil))

	var status models.DocumentStatus
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !status.Loaded || status.Pages != 10 {
		t.Errorf("Unexpected document status %+v", status)
	}
}
