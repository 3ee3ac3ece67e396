package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kashamit951/nego/internal/anchor"
	"github.com/kashamit951/nego/internal/auth"
	"github.com/kashamit951/nego/internal/export"
	"github.com/kashamit951/nego/internal/rbac"
	"github.com/kashamit951/nego/internal/search"
	"github.com/kashamit951/nego/internal/store"
	"github.com/kashamit951/nego/internal/viewer"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/bootstrap" {
		s.handleBootstrap(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			TenantID string `json:"tenantId"`
			APIKey   string `json:"apiKey"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Login(r.Context(), body.TenantID, body.APIKey)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":  session.Token,
			"refreshToken": session.RefreshToken,
			"tenantId":     session.TenantID,
			"userId":       session.UserID,
			"email":        session.Email,
			"role":         session.Role,
			"expiresAt":    session.ExpiresAt.Unix(),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":  session.Token,
			"refreshToken": session.RefreshToken,
			"expiresAt":    session.ExpiresAt.Unix(),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		session, err := s.service.SessionFromToken(token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"tenantId":      session.TenantID,
			"userId":        session.UserID,
			"email":         session.Email,
			"role":          session.Role,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "v1" {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		s.handleV1(w, r, session, parts[2:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleV1(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[0] {
	case "documents":
		s.handleDocuments(w, r, session, parts[1:])
	case "search":
		if r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "reindex" {
			if !s.allow(w, session, rbac.ActionAdmin) {
				return
			}
			if err := s.service.ReindexSearch(r.Context(), session); err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
			return
		}
		if r.Method != http.MethodGet || len(parts) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionRead) {
			return
		}
		s.handleSearch(w, r, session)
	case "audit":
		if r.Method != http.MethodGet || len(parts) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionAudit) {
			return
		}
		entries, err := s.service.ListAudit(r.Context(), session, queryInt(r, "limit", 100))
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(entries))
		for _, entry := range entries {
			payload = append(payload, map[string]any{
				"id":         entry.ID,
				"userId":     entry.UserID,
				"userEmail":  entry.UserEmail,
				"action":     entry.Action,
				"entityType": entry.EntityType,
				"entityId":   entry.EntityID,
				"detail":     entry.Detail,
				"createdAt":  entry.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": payload})
	case "outcomes":
		if r.Method != http.MethodPost || len(parts) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionRedline) {
			return
		}
		s.handleRecordOutcome(w, r, session)
	case "users":
		if r.Method != http.MethodPost || len(parts) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionAdmin) {
			return
		}
		s.handleCreateUser(w, r, session)
	case "keys":
		s.handleKeys(w, r, session, parts[1:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, session, rbac.ActionRead) {
				return
			}
			docs, err := s.service.ListDocuments(r.Context(), session)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			payload := make([]map[string]any, 0, len(docs))
			for _, doc := range docs {
				payload = append(payload, documentPayload(doc, false))
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": payload})
		case http.MethodPost:
			if !s.allow(w, session, rbac.ActionIngest) {
				return
			}
			var input IngestDocumentInput
			if err := decodeBody(r, &input); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			doc, err := s.service.IngestDocument(r.Context(), session, input)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, documentPayload(doc, false))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	documentID := parts[0]
	rest := parts[1:]

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, session, rbac.ActionRead) {
				return
			}
			doc, err := s.service.GetDocument(r.Context(), session, documentID)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, documentPayload(doc, true))
		case http.MethodDelete:
			if !s.allow(w, session, rbac.ActionIngest) {
				return
			}
			if err := s.service.DeleteDocument(r.Context(), session, documentID); err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[0] {
	case "text":
		if r.Method != http.MethodPut || len(rest) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionIngest) {
			return
		}
		var input ReviseDocumentInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		rev, err := s.service.ReviseDocument(r.Context(), session, documentID, input)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revision": rev})

	case "clauses":
		if r.Method != http.MethodGet || len(rest) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionRead) {
			return
		}
		clauses, err := s.service.ListClauses(r.Context(), session, documentID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		payload := make([]map[string]any, 0, len(clauses))
		for _, c := range clauses {
			payload = append(payload, map[string]any{
				"id":          c.ID,
				"clauseIndex": c.ClauseIndex,
				"clauseType":  c.ClauseType,
				"clauseText":  c.ClauseText,
				"confidence":  c.Confidence,
				"charStart":   c.CharStart,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"clauses": payload})

	case "anchor":
		if r.Method != http.MethodPost || len(rest) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionRead) {
			return
		}
		var input AnchorInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.ResolveAnchor(r.Context(), session, documentID, input)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case "view":
		if r.Method != http.MethodGet || len(rest) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionRead) {
			return
		}
		s.handleView(w, r, session, documentID)

	case "redlines":
		s.handleRedlines(w, r, session, documentID, rest[1:])

	case "history":
		if r.Method != http.MethodGet || len(rest) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionRead) {
			return
		}
		limit := queryInt(r, "limit", 50)
		history, err := s.service.History(r.Context(), session, documentID, limit)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": history})

	case "revisions":
		if r.Method != http.MethodGet || len(rest) != 2 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionRead) {
			return
		}
		text, err := s.service.TextAtRevision(r.Context(), session, documentID, rest[1])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"hash": rest[1], "rawText": text})

	case "export":
		if r.Method != http.MethodGet || len(rest) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.allow(w, session, rbac.ActionRead) {
			return
		}
		s.handleExport(w, r, session, documentID)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleView(w http.ResponseWriter, r *http.Request, session Session, documentID string) {
	doc, err := s.service.GetDocument(r.Context(), session, documentID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	var highlight *anchor.Range
	if r.URL.Query().Has("start") && r.URL.Query().Has("end") {
		start := queryInt(r, "start", -1)
		end := queryInt(r, "end", -1)
		if start < 0 || end < start {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid highlight range", nil)
			return
		}
		highlight = &anchor.Range{Start: start, End: end}
	}

	lines := viewer.Render(doc.RawText, highlight)
	if lines == nil {
		lines = []viewer.Line{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documentId": doc.ID,
		"lines":      lines,
	})
}

func (s *HTTPServer) handleRedlines(w http.ResponseWriter, r *http.Request, session Session, documentID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, session, rbac.ActionRead) {
				return
			}
			signals, err := s.service.ListRedlines(r.Context(), session, documentID)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			payload := make([]map[string]any, 0, len(signals))
			for _, sig := range signals {
				payload = append(payload, redlinePayload(sig))
			}
			writeJSON(w, http.StatusOK, map[string]any{"redlines": payload})
		case http.MethodPost:
			if !s.allow(w, session, rbac.ActionRedline) {
				return
			}
			var input RedlineInput
			if err := decodeBody(r, &input); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			signal, err := s.service.CreateRedline(r.Context(), session, documentID, input)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, redlinePayload(signal))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(rest) == 2 && rest[1] == "anchor" && r.Method == http.MethodPost {
		if !s.allow(w, session, rbac.ActionRead) {
			return
		}
		result, err := s.service.ResolveRedlineAnchor(r.Context(), session, documentID, rest[0])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	query := search.Query{
		Text:             r.URL.Query().Get("q"),
		FilterType:       search.ResultType(r.URL.Query().Get("type")),
		FilterClientID:   r.URL.Query().Get("clientId"),
		FilterDocumentID: r.URL.Query().Get("documentId"),
		Limit:            queryInt(r, "limit", 20),
		Offset:           queryInt(r, "offset", 0),
	}
	writeJSON(w, http.StatusOK, s.service.Search(session, query))
}

func (s *HTTPServer) handleRecordOutcome(w http.ResponseWriter, r *http.Request, session Session) {
	var input OutcomeInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	outcome, err := s.service.RecordOutcome(r.Context(), session, input)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         outcome.ID,
		"clientId":   outcome.ClientID,
		"documentId": outcome.DocumentID,
		"clauseType": outcome.ClauseType,
		"outcome":    outcome.Outcome,
		"wonBy":      outcome.WonBy,
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, session Session, documentID string) {
	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatHTML
	}

	req := export.Request{
		DocumentID:      documentID,
		Format:          format,
		IncludeRedlines: r.URL.Query().Get("includeRedlines") == "true",
		HighlightStart:  queryInt(r, "start", -1),
		HighlightEnd:    queryInt(r, "end", -1),
	}

	result, err := s.service.Export(r.Context(), session, req)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	user, err := s.service.CreateUser(r.Context(), session, body.Email, body.Role)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
	})
}

func (s *HTTPServer) handleKeys(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method == http.MethodPost && len(parts) == 0 {
		if !s.allow(w, session, rbac.ActionAdmin) {
			return
		}
		var body struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		cred, key, err := s.service.CreateAPIKey(r.Context(), session, body.UserID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"keyPrefix": cred.KeyPrefix,
			"apiKey":    key,
		})
		return
	}

	if r.Method == http.MethodDelete && len(parts) == 1 {
		if !s.allow(w, session, rbac.ActionAdmin) {
			return
		}
		if err := s.service.RevokeAPIKey(r.Context(), session, parts[0]); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	bootstrapToken := strings.TrimSpace(r.Header.Get("X-Nego-Bootstrap-Token"))
	if s.service.BootstrapToken() == "" || bootstrapToken != s.service.BootstrapToken() {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	var body struct {
		TenantID string `json:"tenantId"`
		Email    string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	user, key, err := s.service.BootstrapTenant(r.Context(), body.TenantID, body.Email)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"tenantId": user.TenantID,
		"userId":   user.ID,
		"email":    user.Email,
		"role":     user.Role,
		"apiKey":   key,
	})
}

// allow checks the session role against the action and writes 403 on denial.
func (s *HTTPServer) allow(w http.ResponseWriter, session Session, action rbac.Action) bool {
	if !rbac.Can(rbac.Role(session.Role), action) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return false
	}
	return true
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Nego-Bootstrap-Token")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func documentPayload(doc store.Document, includeText bool) map[string]any {
	payload := map[string]any{
		"id":               doc.ID,
		"clientId":         doc.ClientID,
		"docType":          doc.DocType,
		"counterpartyName": doc.CounterpartyName,
		"clauseCount":      doc.ClauseCount,
		"sourceObjectKey":  doc.SourceObjectKey,
		"createdAt":        doc.CreatedAt,
		"updatedAt":        doc.UpdatedAt,
	}
	if includeText {
		payload["rawText"] = doc.RawText
	}
	return payload
}

func redlinePayload(sig store.RedlineSignal) map[string]any {
	return map[string]any{
		"id":                sig.ID,
		"documentId":        sig.DocumentID,
		"sourceType":        sig.SourceType,
		"sourceIndex":       sig.SourceIndex,
		"incomingText":      sig.IncomingText,
		"linkedCommentText": sig.LinkedCommentText,
		"sourcePosition":    sig.SourcePosition,
	}
}
