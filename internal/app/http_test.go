package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"civicwatch/api/internal/auth"
	"civicwatch/api/internal/config"
	"civicwatch/api/internal/store"
)

const testSecret = "test-secret"

func newTestHTTPServer(t *testing.T, m *memStore) *HTTPServer {
	t.Helper()
	cfg := config.Config{TokenSecret: testSecret, CORSOrigin: "*", ConflictRetries: 2}
	svc := New(cfg, m, &fakeNotifier{}, nil, zap.NewNop())
	return NewHTTPServer(svc, cfg.CORSOrigin, zap.NewNop())
}

func issueTestToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), auth.Claims{
		Sub:  userID,
		Name: userID,
		Role: role,
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHTTPServer(t, newMemStore()).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["ok"] != true {
		t.Fatalf("unexpected health payload: %v", payload)
	}
}

func TestVoteRequiresSession(t *testing.T) {
	m := newMemStore()
	seedReport(m, "rpt_1", strptr("alice"))
	handler := newTestHTTPServer(t, m).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/reports/rpt_1/vote", "", `{"value":1}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestVoteOverHTTP(t *testing.T) {
	m := newMemStore()
	seedReport(m, "rpt_1", strptr("alice"))
	handler := newTestHTTPServer(t, m).Handler()
	token := issueTestToken(t, "bob", "citizen")

	rec := doRequest(t, handler, http.MethodPost, "/api/reports/rpt_1/vote", token, `{"value":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if payload["upvotes"] != float64(1) || payload["userVote"] != float64(1) {
		t.Fatalf("unexpected vote payload: %v", payload)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/reports/rpt_1/vote", token, `{"value":3}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid value, got %d", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["code"] != "INVALID_VOTE_VALUE" {
		t.Fatalf("unexpected error payload: %v", payload)
	}
}

func TestResolveRequiresAuthorityRole(t *testing.T) {
	m := newMemStore()
	seedReport(m, "rpt_1", strptr("alice"))
	handler := newTestHTTPServer(t, m).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/reports/rpt_1/resolve", issueTestToken(t, "bob", "citizen"), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for citizen, got %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/reports/rpt_1/resolve", issueTestToken(t, "carol", "authority"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for authority, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/reports/rpt_1/resolve", issueTestToken(t, "carol", "authority"), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second resolve, got %d", rec.Code)
	}
}

func TestAnonymousReportOverHTTP(t *testing.T) {
	m := newMemStore()
	handler := newTestHTTPServer(t, m).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/reports", "", `{"title":"Flooded underpass","description":"Water covers both lanes"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if payload["reporterId"] != nil {
		t.Fatalf("anonymous report must have no reporter: %v", payload)
	}
}

func TestCivicProfileEndpoint(t *testing.T) {
	m := newMemStore()
	m.accounts["alice"] = store.CivicAccount{UserID: "alice", Points: 320, Level: 3}
	handler := newTestHTTPServer(t, m).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/users/alice/civic", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["level"] != float64(3) || payload["levelName"] != "Advocate" {
		t.Fatalf("unexpected profile: %v", payload)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	handler := newTestHTTPServer(t, newMemStore()).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/nope", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
