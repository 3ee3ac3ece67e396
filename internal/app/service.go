package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kashamit951/nego/internal/anchor"
	"github.com/kashamit951/nego/internal/apikey"
	"github.com/kashamit951/nego/internal/auth"
	"github.com/kashamit951/nego/internal/blob"
	"github.com/kashamit951/nego/internal/clause"
	"github.com/kashamit951/nego/internal/config"
	"github.com/kashamit951/nego/internal/email"
	"github.com/kashamit951/nego/internal/export"
	"github.com/kashamit951/nego/internal/gitrepo"
	"github.com/kashamit951/nego/internal/rbac"
	"github.com/kashamit951/nego/internal/search"
	"github.com/kashamit951/nego/internal/store"
	"github.com/kashamit951/nego/internal/util"
	"github.com/kashamit951/nego/internal/viewer"
)

// Session identifies an authenticated tenant user for the lifetime of an
// access token.
type Session struct {
	Token        string
	RefreshToken string
	TenantID     string
	UserID       string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type IngestDocumentInput struct {
	ClientID         string `json:"clientId"`
	DocType          string `json:"docType"`
	CounterpartyName string `json:"counterpartyName"`
	RawText          string `json:"rawText"`
	SourceFilename   string `json:"sourceFilename"`
	SourceContent    []byte `json:"sourceContent"`
}

type ReviseDocumentInput struct {
	RawText string `json:"rawText"`
	Note    string `json:"note"`
}

type RedlineInput struct {
	SourceType        string `json:"sourceType"`
	SourceIndex       int    `json:"sourceIndex"`
	IncomingText      string `json:"incomingText"`
	LinkedCommentText string `json:"linkedCommentText"`
	SourcePosition    *int   `json:"sourcePosition"`
}

type AnchorInput struct {
	Candidates []string `json:"candidates"`
	Hint       *int     `json:"hint"`
}

// AnchorResult is what the anchor endpoint returns. Resolution is stateless;
// nothing here is persisted.
type AnchorResult struct {
	Found bool          `json:"found"`
	Range *anchor.Range `json:"range,omitempty"`
	Text  string        `json:"text,omitempty"`
	Line  int           `json:"line,omitempty"`
}

type OutcomeInput struct {
	ClientID          string `json:"clientId"`
	DocumentID        string `json:"documentId"`
	ClauseType        string `json:"clauseType"`
	CounterpartyName  string `json:"counterpartyName"`
	OriginalText      string `json:"originalText"`
	CounterpartyEdit  string `json:"counterpartyEdit"`
	FinalText         string `json:"finalText"`
	Outcome           string `json:"outcome"`
	NegotiationRounds int    `json:"negotiationRounds"`
	WonBy             string `json:"wonBy"`
	NotifyEmail       string `json:"notifyEmail"`
}

var allowedDocTypes = map[string]struct{}{
	"msa": {}, "nda": {}, "dpa": {}, "sow": {}, "saas_agreement": {}, "other": {},
}

var allowedOutcomes = map[string]struct{}{
	"accepted": {}, "rejected": {}, "compromise": {}, "withdrawn": {},
}

var allowedSourceTypes = map[string]struct{}{
	"tracked_change": {}, "comment": {}, "email": {}, "manual": {},
}

var tenantIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

type dataStore interface {
	CreateUser(context.Context, store.TenantUser) error
	GetUserByID(ctx context.Context, tenantID, userID string) (store.TenantUser, error)
	InsertDocument(context.Context, store.Document) error
	GetDocument(ctx context.Context, tenantID, documentID string) (store.Document, error)
	ListDocuments(ctx context.Context, tenantID string) ([]store.Document, error)
	UpdateDocumentText(ctx context.Context, tenantID, documentID, rawText string) error
	DeleteDocument(ctx context.Context, tenantID, documentID string) (bool, error)
	ResolveDocumentClientID(ctx context.Context, tenantID, documentID string) (string, error)
	InsertClause(context.Context, store.Clause) error
	DeleteDocumentClauses(ctx context.Context, tenantID, documentID string) error
	ListClauses(ctx context.Context, tenantID, documentID string) ([]store.Clause, error)
	InsertRedlineSignal(context.Context, store.RedlineSignal) error
	GetRedlineSignal(ctx context.Context, tenantID, signalID string) (store.RedlineSignal, error)
	ListRedlineSignals(ctx context.Context, tenantID, documentID string) ([]store.RedlineSignal, error)
	InsertOutcome(context.Context, store.Outcome) error
	InsertAuditEntry(context.Context, store.AuditEntry) error
	ListAuditEntries(ctx context.Context, tenantID string, limit int) ([]store.AuditEntry, error)
	Ping(ctx context.Context) error
}

// sessionStore is satisfied by both the Redis store and the Postgres
// fallback.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, tenantID, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.TenantUser, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type gitService interface {
	EnsureDocumentRepo(tenantID, documentID, text, author string) error
	CommitText(tenantID, documentID, text, author, message string) (gitrepo.RevisionInfo, error)
	GetTextByHash(tenantID, documentID, hash string) (string, error)
	History(tenantID, documentID string, limit int) ([]gitrepo.RevisionInfo, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	keys     *apikey.Service
	git      gitService
	search   *search.Service
	blobs    *blob.Store
	mailer   *email.Service
	exporter *export.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, keys *apikey.Service, git *gitrepo.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		keys:     keys,
		git:      git,
	}
}

// WithSearch attaches the search facade. Optional; search endpoints degrade
// to PG FTS or empty results without it.
func (s *Service) WithSearch(svc *search.Service) *Service {
	s.search = svc
	return s
}

// WithBlobs attaches object storage for uploaded source files.
func (s *Service) WithBlobs(b *blob.Store) *Service {
	s.blobs = b
	return s
}

// WithMailer attaches the outcome notification mailer.
func (s *Service) WithMailer(m *email.Service) *Service {
	s.mailer = m
	return s
}

// WithExporter attaches the document exporter.
func (s *Service) WithExporter(e *export.Service) *Service {
	s.exporter = e
	return s
}

// Export renders a document to the requested format.
func (s *Service) Export(ctx context.Context, session Session, req export.Request) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}
	req.TenantID = session.TenantID
	return s.exporter.Export(ctx, req)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// recordAudit appends to the tenant audit trail. Failures are logged, never
// surfaced; the audited action itself has already succeeded.
func (s *Service) recordAudit(ctx context.Context, session Session, action, entityType, entityID, detail string) {
	entry := store.AuditEntry{
		TenantID:   session.TenantID,
		UserID:     session.UserID,
		UserEmail:  session.Email,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	}
	if err := s.store.InsertAuditEntry(ctx, entry); err != nil {
		log.Printf("audit: record %s %s: %v", action, entityID, err)
	}
}

// ListAudit returns the tenant's audit trail, newest first.
func (s *Service) ListAudit(ctx context.Context, session Session, limit int) ([]store.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListAuditEntries(ctx, session.TenantID, limit)
}

func (s *Service) BootstrapToken() string {
	return s.cfg.BootstrapToken
}

// BootstrapTenant provisions the first admin user of a tenant plus an API
// key. Guarded by the bootstrap token at the HTTP layer.
func (s *Service) BootstrapTenant(ctx context.Context, tenantID, adminEmail string) (store.TenantUser, string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return store.TenantUser{}, "", validationError("tenantId is required", nil)
	}
	// Tenant ids name filesystem directories under the repos root, so the
	// character set is restricted at the only place tenants are created.
	if !tenantIDRe.MatchString(tenantID) {
		return store.TenantUser{}, "", validationError("tenantId must be alphanumeric with dashes", map[string]any{"tenantId": tenantID})
	}
	user, err := s.keys.CreateUser(ctx, tenantID, adminEmail, string(rbac.RoleAdmin))
	if err != nil {
		return store.TenantUser{}, "", domainError(http.StatusConflict, "BOOTSTRAP_FAILED", err.Error(), nil)
	}
	_, key, err := s.keys.CreateKey(ctx, tenantID, user.ID)
	if err != nil {
		return store.TenantUser{}, "", err
	}
	s.recordAudit(ctx, Session{TenantID: tenantID, UserID: user.ID, Email: user.Email}, "tenant.bootstrap", "tenant", tenantID, user.Email)
	return user, key, nil
}

// Login exchanges a tenant API key for a session.
func (s *Service) Login(ctx context.Context, tenantID, apiKey string) (Session, error) {
	user, err := s.keys.Authenticate(ctx, tenantID, apiKey)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid tenant or API key", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	// The refresh record carries ids only; reload the user so role and
	// email changes take effect on rotation.
	full, err := s.store.GetUserByID(ctx, user.TenantID, user.ID)
	if err != nil || !full.IsActive {
		return Session{}, auth.ErrInvalidToken
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, full)
}

func (s *Service) issueSession(ctx context.Context, user store.TenantUser) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:    user.ID,
		Tenant: user.TenantID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    jti,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.TenantID, user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		TenantID:     user.TenantID,
		UserID:       user.ID,
		Email:        user.Email,
		Role:         string(rbac.Normalize(user.Role)),
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		TenantID:  claims.Tenant,
		UserID:    claims.Sub,
		Email:     claims.Email,
		Role:      string(rbac.Normalize(claims.Role)),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

// IngestDocument stores a contract document, segments and classifies its
// clauses, seeds the revision repo, archives the uploaded source file and
// indexes everything for search.
func (s *Service) IngestDocument(ctx context.Context, session Session, input IngestDocumentInput) (store.Document, error) {
	if strings.TrimSpace(input.ClientID) == "" {
		return store.Document{}, validationError("clientId is required", nil)
	}
	if strings.TrimSpace(input.RawText) == "" {
		return store.Document{}, validationError("rawText is required", nil)
	}
	docType := strings.ToLower(strings.TrimSpace(input.DocType))
	if docType == "" {
		docType = "other"
	}
	if _, ok := allowedDocTypes[docType]; !ok {
		return store.Document{}, validationError("unknown docType", map[string]any{"docType": input.DocType})
	}

	doc := store.Document{
		ID:               util.NewID("doc"),
		TenantID:         session.TenantID,
		ClientID:         input.ClientID,
		DocType:          docType,
		CounterpartyName: strings.TrimSpace(input.CounterpartyName),
		RawText:          input.RawText,
	}

	if s.blobs != nil && len(input.SourceContent) > 0 {
		filename := input.SourceFilename
		if filename == "" {
			filename = "source.docx"
		}
		key, err := s.blobs.Put(ctx, session.TenantID, doc.ID, filename, input.SourceContent, "application/octet-stream")
		if err != nil {
			log.Printf("ingest: archive source for %s: %v", doc.ID, err)
		} else {
			doc.SourceObjectKey = key
		}
	}

	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return store.Document{}, err
	}

	clauses, err := s.storeClauses(ctx, session.TenantID, doc.ID, input.RawText)
	if err != nil {
		return store.Document{}, err
	}
	doc.ClauseCount = len(clauses)

	if err := s.git.EnsureDocumentRepo(session.TenantID, doc.ID, input.RawText, session.Email); err != nil {
		return store.Document{}, fmt.Errorf("seed revision repo: %w", err)
	}

	s.indexDocument(session.TenantID, doc, clauses)
	s.recordAudit(ctx, session, "document.ingest", "document", doc.ID, doc.ClientID)
	return doc, nil
}

// ReviseDocument replaces the stored raw text with a counterparty revision:
// clauses are re-segmented, the revision repo gains a commit and the search
// index is refreshed.
func (s *Service) ReviseDocument(ctx context.Context, session Session, documentID string, input ReviseDocumentInput) (gitrepo.RevisionInfo, error) {
	if strings.TrimSpace(input.RawText) == "" {
		return gitrepo.RevisionInfo{}, validationError("rawText is required", nil)
	}
	doc, err := s.store.GetDocument(ctx, session.TenantID, documentID)
	if err != nil {
		return gitrepo.RevisionInfo{}, err
	}

	if err := s.store.UpdateDocumentText(ctx, session.TenantID, documentID, input.RawText); err != nil {
		return gitrepo.RevisionInfo{}, err
	}
	if err := s.store.DeleteDocumentClauses(ctx, session.TenantID, documentID); err != nil {
		return gitrepo.RevisionInfo{}, err
	}
	clauses, err := s.storeClauses(ctx, session.TenantID, documentID, input.RawText)
	if err != nil {
		return gitrepo.RevisionInfo{}, err
	}

	note := strings.TrimSpace(input.Note)
	if note == "" {
		note = "Revised text"
	}
	rev, err := s.git.CommitText(session.TenantID, documentID, input.RawText, session.Email, note)
	if err != nil {
		return gitrepo.RevisionInfo{}, fmt.Errorf("commit revision: %w", err)
	}

	doc.RawText = input.RawText
	s.indexDocument(session.TenantID, doc, clauses)
	s.recordAudit(ctx, session, "document.revise", "document", documentID, rev.Hash)
	return rev, nil
}

func (s *Service) storeClauses(ctx context.Context, tenantID, documentID, rawText string) ([]store.Clause, error) {
	segments := clause.Split(rawText)
	clauses := make([]store.Clause, 0, len(segments))
	for i, seg := range segments {
		clauseType, confidence := clause.Classify(seg.Text)
		record := store.Clause{
			ID:          util.NewID("cls"),
			TenantID:    tenantID,
			DocumentID:  documentID,
			ClauseIndex: i,
			ClauseType:  clauseType,
			ClauseText:  seg.Text,
			Confidence:  confidence,
			CharStart:   seg.Start,
		}
		if err := s.store.InsertClause(ctx, record); err != nil {
			return nil, err
		}
		clauses = append(clauses, record)
	}
	return clauses, nil
}

func (s *Service) indexDocument(tenantID string, doc store.Document, clauses []store.Clause) {
	if s.search == nil {
		return
	}
	s.search.IndexDocument(search.DocumentRecord{
		ID:               doc.ID,
		TenantID:         tenantID,
		ClientID:         doc.ClientID,
		DocType:          doc.DocType,
		CounterpartyName: doc.CounterpartyName,
	})
	records := make([]search.ClauseRecord, 0, len(clauses))
	for _, c := range clauses {
		records = append(records, search.ClauseRecord{
			ID:         c.ID,
			TenantID:   tenantID,
			DocumentID: doc.ID,
			ClientID:   doc.ClientID,
			ClauseType: c.ClauseType,
			ClauseText: c.ClauseText,
		})
	}
	s.search.IndexClauses(tenantID, doc.ID, records)
}

func (s *Service) GetDocument(ctx context.Context, session Session, documentID string) (store.Document, error) {
	return s.store.GetDocument(ctx, session.TenantID, documentID)
}

// DeleteDocument removes a document along with its clauses, redlines, search
// entries and archived source file. The revision repo is left on disk.
func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID string) error {
	doc, err := s.store.GetDocument(ctx, session.TenantID, documentID)
	if err != nil {
		return err
	}
	ok, err := s.store.DeleteDocument(ctx, session.TenantID, documentID)
	if err != nil {
		return err
	}
	if !ok {
		return notFoundError("Document not found")
	}
	if s.search != nil {
		s.search.DeleteDocument(session.TenantID, documentID)
	}
	if s.blobs != nil && doc.SourceObjectKey != "" {
		if err := s.blobs.Remove(ctx, doc.SourceObjectKey); err != nil {
			log.Printf("delete: remove source object %s: %v", doc.SourceObjectKey, err)
		}
	}
	s.recordAudit(ctx, session, "document.delete", "document", documentID, doc.ClientID)
	return nil
}

func (s *Service) ListDocuments(ctx context.Context, session Session) ([]store.Document, error) {
	return s.store.ListDocuments(ctx, session.TenantID)
}

func (s *Service) ListClauses(ctx context.Context, session Session, documentID string) ([]store.Clause, error) {
	if _, err := s.store.GetDocument(ctx, session.TenantID, documentID); err != nil {
		return nil, err
	}
	return s.store.ListClauses(ctx, session.TenantID, documentID)
}

// CreateRedline records an incoming counterparty edit or comment. When the
// parser supplied no position, the anchor resolver computes one from the
// quoted text so downstream views open near the right clause.
func (s *Service) CreateRedline(ctx context.Context, session Session, documentID string, input RedlineInput) (store.RedlineSignal, error) {
	if strings.TrimSpace(input.IncomingText) == "" {
		return store.RedlineSignal{}, validationError("incomingText is required", nil)
	}
	sourceType := strings.ToLower(strings.TrimSpace(input.SourceType))
	if _, ok := allowedSourceTypes[sourceType]; !ok {
		return store.RedlineSignal{}, validationError("unknown sourceType", map[string]any{"sourceType": input.SourceType})
	}
	doc, err := s.store.GetDocument(ctx, session.TenantID, documentID)
	if err != nil {
		return store.RedlineSignal{}, err
	}

	position := input.SourcePosition
	if position == nil {
		if r := anchor.Resolve(doc.RawText, redlineCandidates(input), nil); r != nil {
			position = &r.Start
		}
	}

	signal := store.RedlineSignal{
		ID:                util.NewID("rdl"),
		TenantID:          session.TenantID,
		DocumentID:        documentID,
		SourceType:        sourceType,
		SourceIndex:       input.SourceIndex,
		IncomingText:      input.IncomingText,
		LinkedCommentText: input.LinkedCommentText,
		SourcePosition:    position,
	}
	if err := s.store.InsertRedlineSignal(ctx, signal); err != nil {
		return store.RedlineSignal{}, err
	}
	s.recordAudit(ctx, session, "redline.create", "redline", signal.ID, documentID)
	return signal, nil
}

func (s *Service) ListRedlines(ctx context.Context, session Session, documentID string) ([]store.RedlineSignal, error) {
	if _, err := s.store.GetDocument(ctx, session.TenantID, documentID); err != nil {
		return nil, err
	}
	return s.store.ListRedlineSignals(ctx, session.TenantID, documentID)
}

// ResolveAnchor locates candidate strings in a document's raw text. The
// result is computed on demand and never stored.
func (s *Service) ResolveAnchor(ctx context.Context, session Session, documentID string, input AnchorInput) (AnchorResult, error) {
	if len(input.Candidates) == 0 {
		return AnchorResult{}, validationError("candidates are required", nil)
	}
	doc, err := s.store.GetDocument(ctx, session.TenantID, documentID)
	if err != nil {
		return AnchorResult{}, err
	}

	r := anchor.Resolve(doc.RawText, input.Candidates, input.Hint)
	if r == nil {
		return AnchorResult{Found: false}, nil
	}
	return AnchorResult{
		Found: true,
		Range: r,
		Text:  doc.RawText[r.Start:r.End],
		Line:  viewer.CharIndexToLine(doc.RawText, r.Start),
	}, nil
}

// ResolveRedlineAnchor resolves a stored redline signal against the current
// text, using its quoted text as candidates and its recorded position as
// hint.
func (s *Service) ResolveRedlineAnchor(ctx context.Context, session Session, documentID, signalID string) (AnchorResult, error) {
	signal, err := s.store.GetRedlineSignal(ctx, session.TenantID, signalID)
	if err != nil || signal.DocumentID != documentID {
		return AnchorResult{}, notFoundError("Redline not found")
	}
	return s.ResolveAnchor(ctx, session, documentID, AnchorInput{
		Candidates: redlineCandidates(RedlineInput{
			IncomingText:      signal.IncomingText,
			LinkedCommentText: signal.LinkedCommentText,
		}),
		Hint: signal.SourcePosition,
	})
}

func redlineCandidates(input RedlineInput) []string {
	candidates := []string{input.IncomingText}
	if strings.TrimSpace(input.LinkedCommentText) != "" {
		candidates = append(candidates, input.LinkedCommentText)
	}
	return candidates
}

// ReindexSearch rebuilds the tenant's search indexes from Postgres.
func (s *Service) ReindexSearch(ctx context.Context, session Session) error {
	if s.search == nil {
		return domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search not configured", nil)
	}
	s.search.ReindexTenant(ctx, session.TenantID)
	return nil
}

func (s *Service) Search(session Session, q search.Query) search.Response {
	q.TenantID = session.TenantID
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// RecordOutcome stores a concluded clause negotiation and, when SMTP is
// configured, emails the requested recipient.
func (s *Service) RecordOutcome(ctx context.Context, session Session, input OutcomeInput) (store.Outcome, error) {
	if strings.TrimSpace(input.ClientID) == "" && input.DocumentID != "" {
		clientID, err := s.store.ResolveDocumentClientID(ctx, session.TenantID, input.DocumentID)
		if err != nil {
			return store.Outcome{}, err
		}
		input.ClientID = clientID
	}
	if strings.TrimSpace(input.ClientID) == "" {
		return store.Outcome{}, validationError("clientId is required", nil)
	}
	outcomeValue := strings.ToLower(strings.TrimSpace(input.Outcome))
	if _, ok := allowedOutcomes[outcomeValue]; !ok {
		return store.Outcome{}, validationError("unknown outcome", map[string]any{"outcome": input.Outcome})
	}
	if input.DocumentID != "" {
		if _, err := s.store.GetDocument(ctx, session.TenantID, input.DocumentID); err != nil {
			return store.Outcome{}, err
		}
	}

	outcome := store.Outcome{
		ID:                util.NewID("out"),
		TenantID:          session.TenantID,
		ClientID:          input.ClientID,
		DocumentID:        input.DocumentID,
		ClauseType:        input.ClauseType,
		CounterpartyName:  input.CounterpartyName,
		OriginalText:      input.OriginalText,
		CounterpartyEdit:  input.CounterpartyEdit,
		FinalText:         input.FinalText,
		Outcome:           outcomeValue,
		NegotiationRounds: input.NegotiationRounds,
		WonBy:             input.WonBy,
	}
	if err := s.store.InsertOutcome(ctx, outcome); err != nil {
		return store.Outcome{}, err
	}
	s.recordAudit(ctx, session, "outcome.record", "outcome", outcome.ID, outcome.Outcome)

	if s.mailer != nil && s.mailer.IsConfigured() && input.NotifyEmail != "" {
		go func() {
			if err := s.mailer.SendOutcomeEmail(input.NotifyEmail, outcome.CounterpartyName, outcome.ClauseType, outcome.Outcome, outcome.WonBy, outcome.NegotiationRounds); err != nil {
				log.Printf("outcome: notify %s: %v", input.NotifyEmail, err)
			}
		}()
	}
	return outcome, nil
}

func (s *Service) History(ctx context.Context, session Session, documentID string, limit int) ([]gitrepo.RevisionInfo, error) {
	if _, err := s.store.GetDocument(ctx, session.TenantID, documentID); err != nil {
		return nil, err
	}
	return s.git.History(session.TenantID, documentID, limit)
}

func (s *Service) TextAtRevision(ctx context.Context, session Session, documentID, hash string) (string, error) {
	if _, err := s.store.GetDocument(ctx, session.TenantID, documentID); err != nil {
		return "", err
	}
	return s.git.GetTextByHash(session.TenantID, documentID, hash)
}

// CreateUser provisions a tenant user. Admin only, enforced at the HTTP
// layer.
func (s *Service) CreateUser(ctx context.Context, session Session, emailAddr, role string) (store.TenantUser, error) {
	normalized := rbac.Normalize(role)
	user, err := s.keys.CreateUser(ctx, session.TenantID, emailAddr, string(normalized))
	if err != nil {
		return store.TenantUser{}, domainError(http.StatusConflict, "USER_EXISTS", err.Error(), nil)
	}
	s.recordAudit(ctx, session, "user.create", "user", user.ID, string(normalized))
	return user, nil
}

// CreateAPIKey mints an API key for a tenant user and returns it in clear
// exactly once.
func (s *Service) CreateAPIKey(ctx context.Context, session Session, userID string) (store.APICredential, string, error) {
	cred, key, err := s.keys.CreateKey(ctx, session.TenantID, userID)
	if err != nil {
		return store.APICredential{}, "", domainError(http.StatusUnprocessableEntity, "KEY_FAILED", err.Error(), nil)
	}
	s.recordAudit(ctx, session, "key.create", "credential", cred.KeyPrefix, userID)
	return cred, key, nil
}

func (s *Service) RevokeAPIKey(ctx context.Context, session Session, keyPrefix string) error {
	ok, err := s.keys.RevokeKey(ctx, session.TenantID, keyPrefix)
	if err != nil {
		return err
	}
	if !ok {
		return notFoundError("API key not found")
	}
	s.recordAudit(ctx, session, "key.revoke", "credential", keyPrefix, "")
	return nil
}
