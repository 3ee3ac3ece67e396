package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

// SafeHTML is a template function that marks a string as safe HTML
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

var documentTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"safeHTML": SafeHTML,
	}
	documentTemplate = template.Must(template.New("document").Funcs(funcMap).Parse(documentTemplateHTML))
}

// TemplateData holds data for document template rendering
type TemplateData struct {
	Counterparty string
	DocType      string
	ClientID     string
	ContentHTML  template.HTML
	ExportedAt   time.Time
	Redlines     []TemplateRedline
}

// TemplateRedline holds redline data for the annotations section
type TemplateRedline struct {
	SourceType   string
	IncomingText string
	CommentText  string
	Resolved     bool
}

// RenderDocumentHTML renders the document template with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Counterparty}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .contract { white-space: normal; }
    .contract div { min-height: 1.2em; }
    mark { background: #ffe08a; }
    .redline { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #b33; }
    .redline .comment { color: #555; font-style: italic; }
  </style>
</head>
<body>
  <h1>{{.Counterparty}}</h1>
  <div class="meta">{{.DocType | lower}} | client {{.ClientID}} | exported {{formatDate .ExportedAt "Jan 2, 2006"}}</div>
  <div class="contract">{{.ContentHTML | safeHTML}}</div>
  {{if .Redlines}}
  <h2>Redlines</h2>
  {{range .Redlines}}
  <div class="redline">
    <div>{{.IncomingText}}</div>
    {{if .CommentText}}<div class="comment">{{.CommentText}}</div>{{end}}
    <div>{{.SourceType | lower}}{{if .Resolved}} | anchored{{end}}</div>
  </div>
  {{end}}
  {{end}}
</body>
</html>`
