package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Users and credentials

func (s *PostgresStore) CreateUser(ctx context.Context, user TenantUser) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_users (id, tenant_id, email, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.TenantID, user.Email, user.Role, user.IsActive)
	if err != nil {
		return fmt.Errorf("insert tenant user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, tenantID, email string) (TenantUser, error) {
	var user TenantUser
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, email, role, is_active, created_at
		FROM tenant_users WHERE tenant_id=$1 AND email=$2
	`, tenantID, email).Scan(&user.ID, &user.TenantID, &user.Email, &user.Role, &user.IsActive, &user.CreatedAt)
	if err != nil {
		return TenantUser{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, tenantID, userID string) (TenantUser, error) {
	var user TenantUser
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, email, role, is_active, created_at
		FROM tenant_users WHERE tenant_id=$1 AND id=$2
	`, tenantID, userID).Scan(&user.ID, &user.TenantID, &user.Email, &user.Role, &user.IsActive, &user.CreatedAt)
	if err != nil {
		return TenantUser{}, err
	}
	return user, nil
}

func (s *PostgresStore) SaveCredential(ctx context.Context, cred APICredential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_credentials (id, tenant_id, user_id, key_prefix, key_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, cred.ID, cred.TenantID, cred.UserID, cred.KeyPrefix, cred.KeyHash)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCredentialByPrefix(ctx context.Context, tenantID, keyPrefix string) (APICredential, TenantUser, error) {
	var cred APICredential
	var user TenantUser
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.tenant_id, c.user_id, c.key_prefix, c.key_hash,
		       u.id, u.tenant_id, u.email, u.role, u.is_active
		FROM api_credentials c
		JOIN tenant_users u ON u.id = c.user_id AND u.tenant_id = c.tenant_id
		WHERE c.tenant_id=$1 AND c.key_prefix=$2 AND c.revoked_at IS NULL AND u.is_active
	`, tenantID, keyPrefix).Scan(
		&cred.ID, &cred.TenantID, &cred.UserID, &cred.KeyPrefix, &cred.KeyHash,
		&user.ID, &user.TenantID, &user.Email, &user.Role, &user.IsActive,
	)
	if err != nil {
		return APICredential{}, TenantUser{}, err
	}
	return cred, user, nil
}

func (s *PostgresStore) TouchCredential(ctx context.Context, credentialID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_credentials SET last_used_at=NOW() WHERE id=$1`, credentialID)
	if err != nil {
		return fmt.Errorf("touch credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeCredential(ctx context.Context, tenantID, keyPrefix string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_credentials SET revoked_at=NOW()
		WHERE tenant_id=$1 AND key_prefix=$2 AND revoked_at IS NULL
	`, tenantID, keyPrefix)
	if err != nil {
		return false, fmt.Errorf("revoke credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke credential rows: %w", err)
	}
	return affected > 0, nil
}

// Refresh sessions (PostgreSQL fallback when Redis is not configured)

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, tenantID, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, tenant_id, user_id, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO UPDATE SET tenant_id=EXCLUDED.tenant_id, user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, tenantID, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (TenantUser, error) {
	var user TenantUser
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.tenant_id, u.email, u.role, u.is_active
		FROM refresh_sessions r
		JOIN tenant_users u ON u.id = r.user_id AND u.tenant_id = r.tenant_id
		WHERE r.token_hash=$1 AND r.revoked_at IS NULL AND r.expires_at > NOW()
	`, tokenHash).Scan(&user.ID, &user.TenantID, &user.Email, &user.Role, &user.IsActive)
	if err != nil {
		return TenantUser{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// Documents

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contract_documents (id, tenant_id, client_id, doc_type, counterparty_name, raw_text, source_object_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, doc.ID, doc.TenantID, doc.ClientID, doc.DocType, doc.CounterpartyName, doc.RawText, doc.SourceObjectKey)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, tenantID, documentID string) (Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.tenant_id, d.client_id, d.doc_type, d.counterparty_name, d.raw_text, d.source_object_key,
		       (SELECT COUNT(*) FROM clause_records c WHERE c.document_id = d.id), d.created_at, d.updated_at
		FROM contract_documents d WHERE d.tenant_id=$1 AND d.id=$2
	`, tenantID, documentID).Scan(
		&doc.ID, &doc.TenantID, &doc.ClientID, &doc.DocType, &doc.CounterpartyName,
		&doc.RawText, &doc.SourceObjectKey, &doc.ClauseCount, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, tenantID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.tenant_id, d.client_id, d.doc_type, d.counterparty_name, d.source_object_key,
		       (SELECT COUNT(*) FROM clause_records c WHERE c.document_id = d.id), d.created_at, d.updated_at
		FROM contract_documents d WHERE d.tenant_id=$1
		ORDER BY d.created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(
			&doc.ID, &doc.TenantID, &doc.ClientID, &doc.DocType, &doc.CounterpartyName,
			&doc.SourceObjectKey, &doc.ClauseCount, &doc.CreatedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) UpdateDocumentText(ctx context.Context, tenantID, documentID, rawText string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contract_documents SET raw_text=$3, updated_at=NOW()
		WHERE tenant_id=$1 AND id=$2
	`, tenantID, documentID, rawText)
	if err != nil {
		return fmt.Errorf("update document text: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document text rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteDocument removes a document; clause and redline rows cascade.
func (s *PostgresStore) DeleteDocument(ctx context.Context, tenantID, documentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM contract_documents WHERE tenant_id=$1 AND id=$2
	`, tenantID, documentID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document rows: %w", err)
	}
	return affected > 0, nil
}

// Clauses

func (s *PostgresStore) InsertClause(ctx context.Context, clause Clause) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clause_records (id, tenant_id, document_id, clause_index, clause_type, clause_text, confidence, char_start)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, clause.ID, clause.TenantID, clause.DocumentID, clause.ClauseIndex, clause.ClauseType, clause.ClauseText, clause.Confidence, clause.CharStart)
	if err != nil {
		return fmt.Errorf("insert clause: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDocumentClauses(ctx context.Context, tenantID, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM clause_records WHERE tenant_id=$1 AND document_id=$2`, tenantID, documentID)
	if err != nil {
		return fmt.Errorf("delete clauses: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListClauses(ctx context.Context, tenantID, documentID string) ([]Clause, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, document_id, clause_index, clause_type, clause_text, confidence, char_start, created_at
		FROM clause_records WHERE tenant_id=$1 AND document_id=$2
		ORDER BY clause_index
	`, tenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}
	defer rows.Close()

	var clauses []Clause
	for rows.Next() {
		var clause Clause
		if err := rows.Scan(
			&clause.ID, &clause.TenantID, &clause.DocumentID, &clause.ClauseIndex,
			&clause.ClauseType, &clause.ClauseText, &clause.Confidence, &clause.CharStart, &clause.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan clause: %w", err)
		}
		clauses = append(clauses, clause)
	}
	return clauses, rows.Err()
}

// Redline signals

func (s *PostgresStore) InsertRedlineSignal(ctx context.Context, signal RedlineSignal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO redline_signals (id, tenant_id, document_id, source_type, source_index, incoming_text, linked_comment_text, source_position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, signal.ID, signal.TenantID, signal.DocumentID, signal.SourceType, signal.SourceIndex,
		signal.IncomingText, signal.LinkedCommentText, signal.SourcePosition)
	if err != nil {
		return fmt.Errorf("insert redline signal: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRedlineSignal(ctx context.Context, tenantID, signalID string) (RedlineSignal, error) {
	var signal RedlineSignal
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, document_id, source_type, source_index, incoming_text, linked_comment_text, source_position, created_at
		FROM redline_signals WHERE tenant_id=$1 AND id=$2
	`, tenantID, signalID).Scan(
		&signal.ID, &signal.TenantID, &signal.DocumentID, &signal.SourceType, &signal.SourceIndex,
		&signal.IncomingText, &signal.LinkedCommentText, &signal.SourcePosition, &signal.CreatedAt,
	)
	if err != nil {
		return RedlineSignal{}, err
	}
	return signal, nil
}

func (s *PostgresStore) ListRedlineSignals(ctx context.Context, tenantID, documentID string) ([]RedlineSignal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, document_id, source_type, source_index, incoming_text, linked_comment_text, source_position, created_at
		FROM redline_signals WHERE tenant_id=$1 AND document_id=$2
		ORDER BY source_index, created_at
	`, tenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("list redline signals: %w", err)
	}
	defer rows.Close()

	var signals []RedlineSignal
	for rows.Next() {
		var signal RedlineSignal
		if err := rows.Scan(
			&signal.ID, &signal.TenantID, &signal.DocumentID, &signal.SourceType, &signal.SourceIndex,
			&signal.IncomingText, &signal.LinkedCommentText, &signal.SourcePosition, &signal.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan redline signal: %w", err)
		}
		signals = append(signals, signal)
	}
	return signals, rows.Err()
}

// Outcomes

func (s *PostgresStore) InsertOutcome(ctx context.Context, outcome Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO negotiation_outcomes (id, tenant_id, client_id, document_id, clause_type, counterparty_name,
			original_text, counterparty_edit, final_text, outcome, negotiation_rounds, won_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, outcome.ID, outcome.TenantID, outcome.ClientID, nullIfEmpty(outcome.DocumentID), outcome.ClauseType,
		outcome.CounterpartyName, outcome.OriginalText, outcome.CounterpartyEdit, outcome.FinalText,
		outcome.Outcome, outcome.NegotiationRounds, outcome.WonBy)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Audit log

func (s *PostgresStore) InsertAuditEntry(ctx context.Context, entry AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (tenant_id, user_id, user_email, action, entity_type, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.TenantID, entry.UserID, entry.UserEmail, entry.Action, entry.EntityType, entry.EntityID, entry.Detail)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditEntries(ctx context.Context, tenantID string, limit int) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, user_email, action, entity_type, entity_id, detail, created_at
		FROM audit_log WHERE tenant_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		if err := rows.Scan(
			&entry.ID, &entry.TenantID, &entry.UserID, &entry.UserEmail, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ResolveDocumentClientID(ctx context.Context, tenantID, documentID string) (string, error) {
	var clientID string
	err := s.db.QueryRowContext(ctx, `
		SELECT client_id FROM contract_documents WHERE tenant_id=$1 AND id=$2
	`, tenantID, documentID).Scan(&clientID)
	if err != nil {
		return "", err
	}
	return clientID, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var target interface{ SQLState() string }
	if errors.As(err, &target) {
		return target.SQLState() == "23505"
	}
	return false
}
