package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/kashamit951/nego/internal/viewer"
)

var errDatabaseDown = errors.New("connection refused")

func doRequest(t *testing.T, server *HTTPServer, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	ms.pingErr = errDatabaseDown
	rr = doRequest(t, server, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["status"] != "not_ready" {
		t.Fatalf("expected not_ready, got %v", payload["status"])
	}
}

func TestLoginEndpointReturnsSession(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	user, err := svc.keys.CreateUser(context.Background(), "ten-1", "a@example.com", "negotiator")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, key, err := svc.keys.CreateKey(context.Background(), "ten-1", user.ID)
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	server := NewHTTPServer(svc, "*")

	body := `{"tenantId":"ten-1","apiKey":"` + key + `"}`
	rr := doRequest(t, server, http.MethodPost, "/api/session/login", "", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	payload := decodeResponse(t, rr)
	if payload["accessToken"] == "" || payload["refreshToken"] == "" {
		t.Fatal("expected tokens in response")
	}
	if payload["role"] != "negotiator" || payload["tenantId"] != "ten-1" {
		t.Fatalf("unexpected session payload: %v", payload)
	}
}

func TestLoginEndpointRejectsBadKey(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodPost, "/api/session/login", "", `{"tenantId":"ten-1","apiKey":"nego_deadbeef_nope"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", payload["code"])
	}
}

func TestV1RequiresBearer(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/v1/documents", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/v1/documents", "not-a-token", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for bad token, got %d", rr.Code)
	}
}

func TestViewerCannotIngest(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	session := loginTestUser(t, svc, ms, "viewer")
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodPost, "/api/v1/documents", session.Token,
		`{"clientId":"cli-1","rawText":"Some contract text."}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["code"] != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", payload["code"])
	}
}

func TestDocumentAnchorAndViewFlow(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	session := loginTestUser(t, svc, ms, "negotiator")
	server := NewHTTPServer(svc, "*")

	ingestBody := `{"clientId":"cli-1","docType":"msa","counterpartyName":"Acme Corp","rawText":"1. Term.\nThe Agreement commences on the Effective Date."}`
	rr := doRequest(t, server, http.MethodPost, "/api/v1/documents", session.Token, ingestBody)
	if rr.Code != http.StatusCreated {
		t.Fatalf("ingest: expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	docID, _ := decodeResponse(t, rr)["id"].(string)
	if docID == "" {
		t.Fatal("expected document id")
	}

	rr = doRequest(t, server, http.MethodPost, "/api/v1/documents/"+docID+"/anchor", session.Token,
		`{"candidates":["the agreement commences"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("anchor: expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	anchorPayload := decodeResponse(t, rr)
	if anchorPayload["found"] != true {
		t.Fatalf("expected anchor found, got %v", anchorPayload)
	}
	rangePayload, _ := anchorPayload["range"].(map[string]any)
	if rangePayload == nil {
		t.Fatal("expected range in anchor response")
	}
	start := int(rangePayload["start"].(float64))
	end := int(rangePayload["end"].(float64))
	if start >= end {
		t.Fatalf("invalid range %d..%d", start, end)
	}

	viewPath := "/api/v1/documents/" + docID + "/view?start=" + strconv.Itoa(start) + "&end=" + strconv.Itoa(end)
	rr = doRequest(t, server, http.MethodGet, viewPath, session.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("view: expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var view struct {
		DocumentID string        `json:"documentId"`
		Lines      []viewer.Line `json:"lines"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("parse view response: %v", err)
	}
	marked := false
	for _, line := range view.Lines {
		if line.Hit && strings.Contains(line.HTML, "<mark>") {
			marked = true
		}
	}
	if !marked {
		t.Fatalf("expected a hit line with highlight markup, got %+v", view.Lines)
	}
}

func TestViewRejectsInvalidRange(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	session := loginTestUser(t, svc, ms, "analyst")
	server := NewHTTPServer(svc, "*")

	doc, err := svc.IngestDocument(context.Background(), session, IngestDocumentInput{
		ClientID: "cli-1",
		RawText:  "Some contract text.",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	rr := doRequest(t, server, http.MethodGet, "/api/v1/documents/"+doc.ID+"/view?start=30&end=10", session.Token, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRedlineEndpointsResolvePosition(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	session := loginTestUser(t, svc, ms, "negotiator")
	server := NewHTTPServer(svc, "*")

	doc, err := svc.IngestDocument(context.Background(), session, IngestDocumentInput{
		ClientID: "cli-1",
		RawText:  "1. Fees.\nFees are payable within thirty days of invoice.",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	rr := doRequest(t, server, http.MethodPost, "/api/v1/documents/"+doc.ID+"/redlines", session.Token,
		`{"sourceType":"tracked_change","incomingText":"payable within thirty days"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create redline: expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeResponse(t, rr)
	if created["sourcePosition"] == nil {
		t.Fatalf("expected computed sourcePosition, got %v", created)
	}
	signalID, _ := created["id"].(string)

	rr = doRequest(t, server, http.MethodPost, "/api/v1/documents/"+doc.ID+"/redlines/"+signalID+"/anchor", session.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("resolve: expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	resolved := decodeResponse(t, rr)
	if resolved["found"] != true {
		t.Fatalf("expected resolution, got %v", resolved)
	}
}

func TestBootstrapRequiresToken(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	svc.cfg.BootstrapToken = "boot-secret"
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/bootstrap", bytes.NewBufferString(`{"tenantId":"ten-9","email":"admin@example.com"}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/bootstrap", bytes.NewBufferString(`{"tenantId":"ten-9","email":"admin@example.com"}`))
	req.Header.Set("X-Nego-Bootstrap-Token", "boot-secret")
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["role"] != "admin" {
		t.Fatalf("expected admin role, got %v", payload["role"])
	}
	apiKey, _ := payload["apiKey"].(string)
	if !strings.HasPrefix(apiKey, "nego_") {
		t.Fatalf("expected api key in response, got %q", apiKey)
	}
}

func TestAuditTrailEndpoint(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	negotiator := loginTestUser(t, svc, ms, "negotiator")
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodPost, "/api/v1/documents", negotiator.Token,
		`{"clientId":"cli-1","rawText":"Some contract text."}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("ingest: expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	// Reading the trail takes the audit action, which negotiators lack.
	rr = doRequest(t, server, http.MethodGet, "/api/v1/audit", negotiator.Token, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for negotiator, got %d", rr.Code)
	}

	analyst := loginTestUser(t, svc, ms, "analyst")
	rr = doRequest(t, server, http.MethodGet, "/api/v1/audit?limit=50", analyst.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for analyst, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	entries, _ := payload["entries"].([]any)
	if len(entries) == 0 {
		t.Fatal("expected audit entries after ingest")
	}
	first, _ := entries[0].(map[string]any)
	if first["action"] != "document.ingest" {
		t.Fatalf("expected document.ingest entry first, got %v", first)
	}
	if first["userEmail"] != "negotiator@example.com" {
		t.Fatalf("expected actor email on entry, got %v", first["userEmail"])
	}
}

func TestAdminEndpointsGated(t *testing.T) {
	ms := newMemStore()
	svc, _ := newTestService(ms)
	analyst := loginTestUser(t, svc, ms, "analyst")
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodPost, "/api/v1/users", analyst.Token,
		`{"email":"new@example.com","role":"viewer"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for analyst, got %d", rr.Code)
	}

	admin := loginTestUser(t, svc, ms, "admin")
	rr = doRequest(t, server, http.MethodPost, "/api/v1/users", admin.Token,
		`{"email":"new@example.com","role":"viewer"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for admin, got %d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeResponse(t, rr)
	userID, _ := created["id"].(string)

	rr = doRequest(t, server, http.MethodPost, "/api/v1/keys", admin.Token, `{"userId":"`+userID+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 minting key, got %d body=%s", rr.Code, rr.Body.String())
	}
	keyPayload := decodeResponse(t, rr)
	prefix, _ := keyPayload["keyPrefix"].(string)

	rr = doRequest(t, server, http.MethodDelete, "/api/v1/keys/"+prefix, admin.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 revoking key, got %d body=%s", rr.Code, rr.Body.String())
	}
}
