package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultDocument ResultType = "document"
	ResultClause   ResultType = "clause"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	DocumentID string     `json:"documentId"`
	ClientID   string     `json:"clientId"`
	ClauseType string     `json:"clauseType,omitempty"`
}

// Query describes a search request. TenantID is mandatory; results never
// cross tenants.
type Query struct {
	TenantID         string
	Text             string
	FilterType       ResultType // empty = all types
	FilterClientID   string
	FilterDocumentID string
	Limit            int
	Offset           int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexDocument(doc DocumentRecord) error
	IndexClauses(clauses []ClauseRecord) error
	DeleteDocument(tenantID, id string) error
	DeleteDocumentClauses(tenantID, documentID string) error
}

// DocumentRecord is the data we index for a contract document.
type DocumentRecord struct {
	ID               string `json:"id"`
	TenantID         string `json:"tenantId"`
	ClientID         string `json:"clientId"`
	DocType          string `json:"docType"`
	CounterpartyName string `json:"counterpartyName"`
}

// ClauseRecord is the data we index for a classified clause.
type ClauseRecord struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	DocumentID string `json:"documentId"`
	ClientID   string `json:"clientId"`
	ClauseType string `json:"clauseType"`
	ClauseText string `json:"clauseText"`
}
