package export

import (
	"strings"
	"testing"
	"time"
)

func sampleData() TemplateData {
	return TemplateData{
		SessionID:   "session-1",
		GeneratedAt: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Threads: []ReportThread{
			{
				FilePath:   "src/main.go",
				LineNumber: 42,
				Resolved:   true,
				ResolvedBy: "Bob",
				Comments: []ReportComment{
					{Author: "Alice", Text: "off by one here", Timestamp: time.Now(), Edited: true},
					{Author: "Bob", Text: "fixed", Timestamp: time.Now()},
				},
			},
		},
		Suggestions: []ReportSuggestion{
			{
				FilePath: "src/util.go", Type: "replace", Status: "pending",
				Author: "Alice", OriginalText: "foo()", SuggestedText: "bar()", Comment: "clearer",
			},
		},
		Snapshots: []ReportSnapshot{
			{ID: "snapshot-1", Timestamp: time.Now(), Author: "Alice", Description: "initial", FileCount: 3, Size: 120},
		},
	}
}

func TestRenderReportHTML(t *testing.T) {
	html, err := RenderReportHTML(sampleData())
	if err != nil {
		t.Fatalf("RenderReportHTML: %v", err)
	}

	for _, want := range []string{
		"session-1",
		"src/main.go:42",
		"resolved by Bob",
		"off by one here",
		"(edited)",
		"foo()",
		"bar()",
		"pending",
		"initial",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderReportHTMLEmpty(t *testing.T) {
	html, err := RenderReportHTML(TemplateData{SessionID: "session-1", GeneratedAt: time.Now()})
	if err != nil {
		t.Fatalf("RenderReportHTML: %v", err)
	}
	if !strings.Contains(html, "No threads.") {
		t.Error("empty report missing placeholder")
	}
}

func TestRenderReportEscapesHTML(t *testing.T) {
	data := TemplateData{
		SessionID:   "session-1",
		GeneratedAt: time.Now(),
		Threads: []ReportThread{{
			FilePath: "a.go", LineNumber: 1,
			Comments: []ReportComment{{Author: "Mallory", Text: "<script>alert(1)</script>", Timestamp: time.Now()}},
		}},
	}
	html, err := RenderReportHTML(data)
	if err != nil {
		t.Fatalf("RenderReportHTML: %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("comment text not escaped")
	}
}
