// Package export renders a session report covering threads, suggestions,
// and snapshot history.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// Request contains parameters for a report export.
type Request struct {
	SessionID          string
	Format             Format
	IncludeResolved    bool
	IncludeSuggestions bool
	IncludeSnapshots   bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing is returned when headless Chrome is not
// installed on the host.
var ErrPDFDependencyMissing = errors.New("pdf export dependency missing")

// ReportThread is one thread as it appears in the report.
type ReportThread struct {
	FilePath   string
	LineNumber int
	Resolved   bool
	ResolvedBy string
	Comments   []ReportComment
}

// ReportComment is one comment as it appears in the report.
type ReportComment struct {
	Author    string
	Text      string
	Timestamp time.Time
	Edited    bool
}

// ReportSuggestion is one suggestion as it appears in the report.
type ReportSuggestion struct {
	FilePath      string
	Type          string
	Status        string
	Author        string
	OriginalText  string
	SuggestedText string
	Comment       string
}

// ReportSnapshot is one snapshot summary line in the report.
type ReportSnapshot struct {
	ID          string
	Timestamp   time.Time
	Author      string
	Description string
	FileCount   int
	Size        int
}
