package search

import "testing"

func seedIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex()
	idx.IndexComment(CommentRecord{
		ID: "comment-1", ThreadID: "thread-1", FilePath: "main.go",
		Text: "rename this variable", Author: "Alice",
	})
	idx.IndexComment(CommentRecord{
		ID: "comment-2", ThreadID: "thread-2", FilePath: "util.go",
		Text: "extract a helper", Author: "Bob",
	})
	idx.IndexSuggestion(SuggestionRecord{
		ID: "suggestion-1", FilePath: "main.go",
		Text: "renamed := value", Comment: "clearer name", Author: "Alice", Status: "pending",
	})
	return idx
}

func TestMemoryIndexSearch(t *testing.T) {
	idx := seedIndex(t)

	results, total, err := idx.Search(Query{Text: "rename"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2 (comment and suggestion)", total)
	}
	types := map[ResultType]bool{}
	for _, r := range results {
		types[r.Type] = true
	}
	if !types[ResultComment] || !types[ResultSuggestion] {
		t.Errorf("result types = %v", types)
	}
}

func TestMemoryIndexSearchIsCaseInsensitive(t *testing.T) {
	idx := seedIndex(t)
	_, total, _ := idx.Search(Query{Text: "RENAME"})
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestMemoryIndexFilePathFilter(t *testing.T) {
	idx := seedIndex(t)

	results, total, _ := idx.Search(Query{Text: "", FilePath: "util.go"})
	if total != 1 || results[0].ID != "comment-2" {
		t.Errorf("filtered results = %+v", results)
	}
}

func TestMemoryIndexLimit(t *testing.T) {
	idx := seedIndex(t)
	results, total, _ := idx.Search(Query{Text: "", Limit: 1})
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
}

func TestMemoryIndexDelete(t *testing.T) {
	idx := seedIndex(t)
	idx.DeleteComment("comment-1")
	idx.DeleteSuggestion("suggestion-1")

	_, total, _ := idx.Search(Query{Text: "rename"})
	if total != 0 {
		t.Errorf("total after delete = %d, want 0", total)
	}
}

func TestServiceFallsBackToMemory(t *testing.T) {
	// no Meilisearch configured at all
	svc := NewService(nil)
	svc.IndexComment(CommentRecord{ID: "comment-1", FilePath: "main.go", Text: "needs work", Author: "Alice"})

	response := svc.Search(Query{Text: "needs"})
	if response.Total != 1 {
		t.Fatalf("total = %d, want 1", response.Total)
	}
	if response.Results[0].ID != "comment-1" {
		t.Errorf("result = %+v", response.Results[0])
	}

	svc.DeleteComment("comment-1")
	if got := svc.Search(Query{Text: "needs"}); got.Total != 0 {
		t.Errorf("total after delete = %d", got.Total)
	}
}

func TestServiceSearchNeverReturnsNilResults(t *testing.T) {
	svc := NewService(nil)
	response := svc.Search(Query{Text: "nothing matches"})
	if response.Results == nil {
		t.Error("Results is nil")
	}
}
