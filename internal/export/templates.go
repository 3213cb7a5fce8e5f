package export

import (
	"bytes"
	"html/template"
	"time"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		return t.Format("Jan 2, 2006 15:04")
	},
}).Parse(reportTemplateHTML))

// TemplateData holds everything the report template renders.
type TemplateData struct {
	SessionID   string
	GeneratedAt time.Time
	Threads     []ReportThread
	Suggestions []ReportSuggestion
	Snapshots   []ReportSnapshot
}

// RenderReportHTML renders the session report to HTML.
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Session report {{.SessionID}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.5; color: #24292e; max-width: 800px; margin: 0 auto; padding: 24px; }
        h1 { border-bottom: 2px solid #0066cc; padding-bottom: 8px; }
        h2 { margin-top: 32px; }
        .meta { color: #666; font-size: 13px; }
        .thread { border: 1px solid #e1e4e8; border-radius: 4px; padding: 12px; margin: 12px 0; }
        .thread.resolved { background: #f0fff4; }
        .anchor { font-family: monospace; font-size: 13px; color: #0066cc; }
        .comment { margin: 8px 0 0 12px; padding-left: 8px; border-left: 2px solid #e1e4e8; }
        .author { font-weight: 600; }
        .badge { display: inline-block; font-size: 11px; padding: 1px 6px; border-radius: 10px; background: #eee; margin-left: 6px; }
        .badge.accepted { background: #dcffe4; }
        .badge.rejected { background: #ffdce0; }
        .badge.pending { background: #fff5b1; }
        .code { font-family: monospace; white-space: pre-wrap; background: #f6f8fa; padding: 6px; border-radius: 3px; margin: 4px 0; }
        table { border-collapse: collapse; width: 100%; }
        th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #e1e4e8; font-size: 13px; }
    </style>
</head>
<body>
    <h1>Session report</h1>
    <p class="meta">Session {{.SessionID}} &middot; generated {{formatDate .GeneratedAt}}</p>

    <h2>Comment threads</h2>
    {{if not .Threads}}<p class="meta">No threads.</p>{{end}}
    {{range .Threads}}
    <div class="thread{{if .Resolved}} resolved{{end}}">
        <span class="anchor">{{.FilePath}}:{{.LineNumber}}</span>
        {{if .Resolved}}<span class="badge">resolved by {{.ResolvedBy}}</span>{{end}}
        {{range .Comments}}
        <div class="comment">
            <span class="author">{{.Author}}</span>
            <span class="meta">{{formatDate .Timestamp}}{{if .Edited}} (edited){{end}}</span>
            <div>{{.Text}}</div>
        </div>
        {{end}}
    </div>
    {{end}}

    {{if .Suggestions}}
    <h2>Suggestions</h2>
    {{range .Suggestions}}
    <div class="thread">
        <span class="anchor">{{.FilePath}}</span>
        <span class="badge {{.Status}}">{{.Status}}</span>
        <span class="meta">{{.Type}} by {{.Author}}</span>
        {{if .OriginalText}}<div class="code">- {{.OriginalText}}</div>{{end}}
        {{if .SuggestedText}}<div class="code">+ {{.SuggestedText}}</div>{{end}}
        {{if .Comment}}<div class="meta">{{.Comment}}</div>{{end}}
    </div>
    {{end}}
    {{end}}

    {{if .Snapshots}}
    <h2>Snapshots</h2>
    <table>
        <tr><th>When</th><th>By</th><th>Description</th><th>Files</th><th>Size</th></tr>
        {{range .Snapshots}}
        <tr>
            <td>{{formatDate .Timestamp}}</td>
            <td>{{.Author}}</td>
            <td>{{.Description}}</td>
            <td>{{.FileCount}}</td>
            <td>{{.Size}}</td>
        </tr>
        {{end}}
    </table>
    {{end}}
</body>
</html>`
