package search

import (
	"strings"
	"sync"
)

// MemoryIndex is the fallback index: case-insensitive substring matching
// over the records held in memory. It is always available, so a session
// keeps working when Meilisearch is down or unconfigured.
type MemoryIndex struct {
	mu          sync.RWMutex
	comments    map[string]CommentRecord
	suggestions map[string]SuggestionRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		comments:    make(map[string]CommentRecord),
		suggestions: make(map[string]SuggestionRecord),
	}
}

func (m *MemoryIndex) IndexComment(record CommentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[record.ID] = record
	return nil
}

func (m *MemoryIndex) IndexSuggestion(record SuggestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suggestions[record.ID] = record
	return nil
}

func (m *MemoryIndex) DeleteComment(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.comments, id)
	return nil
}

func (m *MemoryIndex) DeleteSuggestion(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.suggestions, id)
	return nil
}

func (m *MemoryIndex) Search(q Query) ([]Result, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(q.Text)
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	results := make([]Result, 0)
	for _, record := range m.comments {
		if q.FilePath != "" && record.FilePath != q.FilePath {
			continue
		}
		if matches(needle, record.Text, record.Author) {
			results = append(results, Result{
				ID:       record.ID,
				Type:     ResultComment,
				FilePath: record.FilePath,
				Text:     record.Text,
				Author:   record.Author,
			})
		}
	}
	for _, record := range m.suggestions {
		if q.FilePath != "" && record.FilePath != q.FilePath {
			continue
		}
		if matches(needle, record.Text, record.Comment, record.Author) {
			results = append(results, Result{
				ID:       record.ID,
				Type:     ResultSuggestion,
				FilePath: record.FilePath,
				Text:     record.Text,
				Author:   record.Author,
			})
		}
	}

	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, total, nil
}

func matches(needle string, fields ...string) bool {
	if needle == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
