package store

import "time"

type TenantUser struct {
	ID        string
	TenantID  string
	Email     string
	Role      string
	IsActive  bool
	CreatedAt time.Time
}

type APICredential struct {
	ID         string
	TenantID   string
	UserID     string
	KeyPrefix  string
	KeyHash    string
	RevokedAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

type Document struct {
	ID               string
	TenantID         string
	ClientID         string
	DocType          string
	CounterpartyName string
	RawText          string
	SourceObjectKey  string
	ClauseCount      int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Clause struct {
	ID          string
	TenantID    string
	DocumentID  string
	ClauseIndex int
	ClauseType  string
	ClauseText  string
	Confidence  float64
	CharStart   int
	CreatedAt   time.Time
}

// RedlineSignal is an incoming counterparty edit or comment extracted from a
// returned document: the quoted text, an optionally linked comment, and the
// parser's approximate character position in the document's raw text.
type RedlineSignal struct {
	ID                string
	TenantID          string
	DocumentID        string
	SourceType        string
	SourceIndex       int
	IncomingText      string
	LinkedCommentText string
	SourcePosition    *int
	CreatedAt         time.Time
}

// AuditEntry is one append-only record of a mutating action. Entries are
// never updated or deleted.
type AuditEntry struct {
	ID         int64
	TenantID   string
	UserID     string
	UserEmail  string
	Action     string
	EntityType string
	EntityID   string
	Detail     string
	CreatedAt  time.Time
}

type Outcome struct {
	ID                string
	TenantID          string
	ClientID          string
	DocumentID        string
	ClauseType        string
	CounterpartyName  string
	OriginalText      string
	CounterpartyEdit  string
	FinalText         string
	Outcome           string
	NegotiationRounds int
	WonBy             string
	CreatedAt         time.Time
}
