package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across contract_documents and
// clause_records using plainto_tsquery and ts_rank, with ts_headline for
// snippets. Every sub-query is tenant-scoped.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || q.TenantID == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.TenantID}
	argN := 3

	var subQueries []string

	// Documents sub-query
	if q.FilterType == "" || q.FilterType == ResultDocument {
		docWhere := fmt.Sprintf("to_tsvector('english', coalesce(d.counterparty_name, '')) @@ %s AND d.tenant_id = $2", tsQuery)
		if q.FilterClientID != "" {
			docWhere += fmt.Sprintf(" AND d.client_id = $%d", argN)
			args = append(args, q.FilterClientID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'document'::text AS type, d.id, d.counterparty_name AS title,
				d.doc_type AS snippet,
				d.id AS document_id, d.client_id,
				''::text AS clause_type,
				ts_rank(to_tsvector('english', coalesce(d.counterparty_name, '')), %s) AS rank
			FROM contract_documents d
			WHERE %s`, tsQuery, docWhere))
	}

	// Clauses sub-query
	if q.FilterType == "" || q.FilterType == ResultClause {
		clauseWhere := fmt.Sprintf("to_tsvector('english', c.clause_text) @@ %s AND c.tenant_id = $2", tsQuery)
		if q.FilterClientID != "" {
			clauseWhere += fmt.Sprintf(" AND d.client_id = $%d", argN)
			args = append(args, q.FilterClientID)
			argN++
		}
		if q.FilterDocumentID != "" {
			clauseWhere += fmt.Sprintf(" AND c.document_id = $%d", argN)
			args = append(args, q.FilterDocumentID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'clause'::text AS type, c.id, c.clause_type AS title,
				ts_headline('english', c.clause_text, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.document_id, d.client_id,
				c.clause_type,
				ts_rank(to_tsvector('english', c.clause_text), %s) AS rank
			FROM clause_records c
			JOIN contract_documents d ON d.id = c.document_id AND d.tenant_id = c.tenant_id
			WHERE %s`, tsQuery, tsQuery, clauseWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, document_id, client_id, clause_type
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.DocumentID, &r.ClientID, &r.ClauseType); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records of a tenant for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context, tenantID string) ([]DocumentRecord, []ClauseRecord, error) {
	docRows, err := p.db.QueryContext(ctx, `
		SELECT id, tenant_id, client_id, doc_type, counterparty_name
		FROM contract_documents
		WHERE tenant_id = $1
	`, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("load documents: %w", err)
	}
	defer docRows.Close()

	documents := make([]DocumentRecord, 0)
	for docRows.Next() {
		var d DocumentRecord
		if err := docRows.Scan(&d.ID, &d.TenantID, &d.ClientID, &d.DocType, &d.CounterpartyName); err != nil {
			return nil, nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, d)
	}
	if err := docRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate documents: %w", err)
	}

	clauseRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.tenant_id, c.document_id, d.client_id, c.clause_type, c.clause_text
		FROM clause_records c
		JOIN contract_documents d ON d.id = c.document_id AND d.tenant_id = c.tenant_id
		WHERE c.tenant_id = $1
	`, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("load clauses: %w", err)
	}
	defer clauseRows.Close()

	clauses := make([]ClauseRecord, 0)
	for clauseRows.Next() {
		var c ClauseRecord
		if err := clauseRows.Scan(&c.ID, &c.TenantID, &c.DocumentID, &c.ClientID, &c.ClauseType, &c.ClauseText); err != nil {
			return nil, nil, fmt.Errorf("scan clause: %w", err)
		}
		clauses = append(clauses, c)
	}
	if err := clauseRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate clauses: %w", err)
	}

	return documents, clauses, nil
}
