package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDocument indexes a document (fire-and-forget to Meilisearch).
func (s *Service) IndexDocument(doc DocumentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDocument(doc); err != nil {
			log.Printf("search: index document %s: %v", doc.ID, err)
		}
	}()
}

// IndexClauses indexes the clauses of a document (fire-and-forget to
// Meilisearch). Stale clauses from a previous ingest are removed first.
func (s *Service) IndexClauses(tenantID, documentID string, clauses []ClauseRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDocumentClauses(tenantID, documentID); err != nil {
			log.Printf("search: delete clauses for %s: %v", documentID, err)
		}
		if err := s.meili.IndexClauses(clauses); err != nil {
			log.Printf("search: index clauses for %s: %v", documentID, err)
		}
	}()
}

// DeleteDocument removes a document and its clauses from the search index
// (fire-and-forget).
func (s *Service) DeleteDocument(tenantID, id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDocument(tenantID, id); err != nil {
			log.Printf("search: delete document %s: %v", id, err)
		}
		if err := s.meili.DeleteDocumentClauses(tenantID, id); err != nil {
			log.Printf("search: delete clauses for %s: %v", id, err)
		}
	}()
}

// ReindexTenant reads a tenant's documents and clauses from PG and pushes
// them to Meilisearch.
func (s *Service) ReindexTenant(ctx context.Context, tenantID string) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	documents, clauses, err := s.pgfts.LoadAllRecords(ctx, tenantID)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(documents) > 0 {
		if err := s.meili.IndexDocuments(documents); err != nil {
			log.Printf("search: reindex documents: %v", err)
		}
	}
	if len(clauses) > 0 {
		if err := s.meili.IndexClauses(clauses); err != nil {
			log.Printf("search: reindex clauses: %v", err)
		}
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
