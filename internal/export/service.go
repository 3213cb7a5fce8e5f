package export

import (
	"fmt"
	"time"
)

// DataSource supplies the session content the report is built from.
type DataSource interface {
	ReportThreads(includeResolved bool) []ReportThread
	ReportSuggestions() []ReportSuggestion
	ReportSnapshots() []ReportSnapshot
}

// Service renders session reports.
type Service struct {
	source DataSource
}

// NewService creates an export service.
func NewService(source DataSource) *Service {
	return &Service{source: source}
}

// Export generates a report in the requested format.
func (s *Service) Export(req Request) (*Result, error) {
	data := TemplateData{
		SessionID:   req.SessionID,
		GeneratedAt: time.Now(),
		Threads:     s.source.ReportThreads(req.IncludeResolved),
	}
	if req.IncludeSuggestions {
		data.Suggestions = s.source.ReportSuggestions()
	}
	if req.IncludeSnapshots {
		data.Snapshots = s.source.ReportSnapshots()
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(req.SessionID) + "-report.html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(html, req.SessionID)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
