// Package search indexes comments and suggestions for full-text lookup
// across a session.
package search

// ResultType tags what kind of entity a search hit came from.
type ResultType string

const (
	ResultComment    ResultType = "comment"
	ResultSuggestion ResultType = "suggestion"
)

// CommentRecord is the indexed form of one comment inside a thread.
type CommentRecord struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	FilePath string `json:"filePath"`
	Text     string `json:"text"`
	Author   string `json:"author"`
	Resolved bool   `json:"resolved"`
}

// SuggestionRecord is the indexed form of one suggestion.
type SuggestionRecord struct {
	ID       string `json:"id"`
	FilePath string `json:"filePath"`
	Text     string `json:"text"`
	Comment  string `json:"comment"`
	Author   string `json:"author"`
	Status   string `json:"status"`
}

// Query is one search request. An empty FilePath searches the whole
// session.
type Query struct {
	Text     string
	FilePath string
	Limit    int
}

// Result is one search hit.
type Result struct {
	ID       string     `json:"id"`
	Type     ResultType `json:"type"`
	FilePath string     `json:"filePath"`
	Text     string     `json:"text"`
	Author   string     `json:"author"`
}

// Response is a complete search answer.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}
