package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxComments    = "tandem_comments"
	idxSuggestions = "tandem_suggestions"
)

// Meili indexes session content in Meilisearch. Unreachable instances are
// tolerated: Healthy flips false and the facade falls back.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. The client
// is returned even if the initial connection fails; a background monitor
// retries.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxComments,
			filterable: []string{"filePath", "resolved"},
			searchable: []string{"text", "author"},
		},
		{
			uid:        idxSuggestions,
			filterable: []string{"filePath", "status"},
			searchable: []string{"text", "comment", "author"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexComment upserts a comment record.
func (m *Meili) IndexComment(record CommentRecord) error {
	_, err := m.client.Index(idxComments).AddDocuments([]CommentRecord{record}, nil)
	return err
}

// IndexSuggestion upserts a suggestion record.
func (m *Meili) IndexSuggestion(record SuggestionRecord) error {
	_, err := m.client.Index(idxSuggestions).AddDocuments([]SuggestionRecord{record}, nil)
	return err
}

// DeleteComment removes a comment record.
func (m *Meili) DeleteComment(id string) error {
	_, err := m.client.Index(idxComments).DeleteDocument(id, nil)
	return err
}

// DeleteSuggestion removes a suggestion record.
func (m *Meili) DeleteSuggestion(id string) error {
	_, err := m.client.Index(idxSuggestions).DeleteDocument(id, nil)
	return err
}

// Search queries both indexes and merges results, comments first.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var filter string
	if q.FilePath != "" {
		filter = fmt.Sprintf("filePath = %q", q.FilePath)
	}

	results := make([]Result, 0)
	total := 0

	commentResp, err := m.client.Index(idxComments).Search(q.Text, &meili.SearchRequest{
		Limit:  limit,
		Filter: filter,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search comments: %w", err)
	}
	for _, hit := range commentResp.Hits {
		results = append(results, Result{
			ID:       decodeString(hit, "id"),
			Type:     ResultComment,
			FilePath: decodeString(hit, "filePath"),
			Text:     decodeString(hit, "text"),
			Author:   decodeString(hit, "author"),
		})
	}
	total += int(commentResp.EstimatedTotalHits)

	suggestionResp, err := m.client.Index(idxSuggestions).Search(q.Text, &meili.SearchRequest{
		Limit:  limit,
		Filter: filter,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search suggestions: %w", err)
	}
	for _, hit := range suggestionResp.Hits {
		results = append(results, Result{
			ID:       decodeString(hit, "id"),
			Type:     ResultSuggestion,
			FilePath: decodeString(hit, "filePath"),
			Text:     decodeString(hit, "text"),
			Author:   decodeString(hit, "author"),
		})
	}
	total += int(suggestionResp.EstimatedTotalHits)

	if len(results) > int(limit) {
		results = results[:limit]
	}
	return results, total, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
