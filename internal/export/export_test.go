package export

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/kashamit951/nego/internal/store"
)

type fakeStore struct {
	doc     store.Document
	signals []store.RedlineSignal
}

func (f *fakeStore) GetDocument(_ context.Context, tenantID, documentID string) (store.Document, error) {
	if f.doc.ID != documentID || f.doc.TenantID != tenantID {
		return store.Document{}, sql.ErrNoRows
	}
	return f.doc, nil
}

func (f *fakeStore) ListRedlineSignals(_ context.Context, _, _ string) ([]store.RedlineSignal, error) {
	return f.signals, nil
}

func TestExportHTML(t *testing.T) {
	pos := 20
	fs := &fakeStore{
		doc: store.Document{
			ID:               "doc-1",
			TenantID:         "ten-1",
			ClientID:         "cli-1",
			DocType:          "MSA",
			CounterpartyName: "Acme Corp",
			RawText:          "1. Term.\nThe Agreement commences on signature.",
		},
		signals: []store.RedlineSignal{
			{
				SourceType:        "tracked_change",
				IncomingText:      "commences on the Effective Date",
				LinkedCommentText: "Please use defined term",
				SourcePosition:    &pos,
			},
		},
	}
	svc := NewService(fs)

	res, err := svc.Export(context.Background(), Request{
		TenantID:        "ten-1",
		DocumentID:      "doc-1",
		Format:          FormatHTML,
		IncludeRedlines: true,
		HighlightStart:  9,
		HighlightEnd:    22,
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	html := string(res.Data)
	if !strings.Contains(html, "Acme Corp") {
		t.Error("HTML missing counterparty name")
	}
	if !strings.Contains(html, "<mark>The Agreement</mark>") {
		t.Errorf("HTML missing highlight markup:\n%s", html)
	}
	if !strings.Contains(html, "commences on the Effective Date") {
		t.Error("HTML missing redline text")
	}
	if !strings.Contains(html, "Please use defined term") {
		t.Error("HTML missing linked comment")
	}
	if res.Filename != "Acme-Corp.html" {
		t.Errorf("unexpected filename %q", res.Filename)
	}
}

func TestExportUnknownDocument(t *testing.T) {
	svc := NewService(&fakeStore{})
	_, err := svc.Export(context.Background(), Request{
		TenantID:       "ten-1",
		DocumentID:     "missing",
		Format:         FormatHTML,
		HighlightStart: -1,
		HighlightEnd:   -1,
	})
	if err == nil {
		t.Fatal("expected error for unknown document")
	}
}

func TestRenderDocumentHTMLEscapesRedlines(t *testing.T) {
	data := TemplateData{
		Counterparty: "Acme",
		DocType:      "NDA",
		ClientID:     "cli-1",
		ContentHTML:  "<div>body</div>",
		ExportedAt:   time.Now(),
		Redlines: []TemplateRedline{
			{SourceType: "comment", IncomingText: "<script>alert(1)</script>"},
		},
	}
	html, err := RenderDocumentHTML(data)
	if err != nil {
		t.Fatalf("RenderDocumentHTML() error = %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("redline text was not escaped")
	}
	// Pre-rendered content passes through unescaped.
	if !strings.Contains(html, "<div>body</div>") {
		t.Error("content HTML should be rendered raw")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"Acme Corp v1.2", "Acme-Corp-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Counterparty Name That Exceeds Fifty Characters", "Very-Long-Counterparty-Name-That-Exceeds-Fifty-Cha"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
