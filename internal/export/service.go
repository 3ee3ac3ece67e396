package export

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/kashamit951/nego/internal/anchor"
	"github.com/kashamit951/nego/internal/store"
	"github.com/kashamit951/nego/internal/viewer"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetDocument(ctx context.Context, tenantID, documentID string) (store.Document, error)
	ListRedlineSignals(ctx context.Context, tenantID, documentID string) ([]store.RedlineSignal, error)
}

// Service provides document export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	doc, err := s.store.GetDocument(ctx, req.TenantID, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	var highlight *anchor.Range
	if req.HighlightStart >= 0 && req.HighlightEnd >= req.HighlightStart {
		highlight = &anchor.Range{Start: req.HighlightStart, End: req.HighlightEnd}
	}
	contentHTML := linesToHTML(viewer.Render(doc.RawText, highlight))

	data := TemplateData{
		Counterparty: doc.CounterpartyName,
		DocType:      doc.DocType,
		ClientID:     doc.ClientID,
		ContentHTML:  template.HTML(contentHTML),
		ExportedAt:   time.Now(),
		Redlines:     []TemplateRedline{},
	}

	if req.IncludeRedlines {
		signals, err := s.store.ListRedlineSignals(ctx, req.TenantID, req.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("list redlines: %w", err)
		}
		for _, sig := range signals {
			data.Redlines = append(data.Redlines, TemplateRedline{
				SourceType:   sig.SourceType,
				IncomingText: sig.IncomingText,
				CommentText:  sig.LinkedCommentText,
				Resolved:     sig.SourcePosition != nil,
			})
		}
	}

	html, err := RenderDocumentHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(doc.CounterpartyName) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(html, doc.CounterpartyName)
	case FormatDOCX:
		return exportDOCX(html, doc.CounterpartyName)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// linesToHTML joins viewer line markup into a div per line. The viewer
// already escapes text and wraps the highlight in mark tags.
func linesToHTML(lines []viewer.Line) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("<div>")
		b.WriteString(line.HTML)
		b.WriteString("</div>\n")
	}
	return b.String()
}
