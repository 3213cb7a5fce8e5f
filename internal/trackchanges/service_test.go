package trackchanges

import (
	"context"
	"testing"

	"tandem/collab/internal/kv"
	"tandem/collab/internal/model"
)

var carol = model.User{ID: "user-carol", Name: "Carol", Color: "#0000ff"}
var dave = model.User{ID: "user-dave", Name: "Dave", Color: "#ffff00"}

func TestSetMode(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	if svc.Mode() != ModeEditing {
		t.Fatalf("initial mode = %q, want editing", svc.Mode())
	}
	if !svc.SetMode(ctx, ModeSuggesting) {
		t.Fatal("SetMode(suggesting) failed")
	}
	if svc.Mode() != ModeSuggesting {
		t.Errorf("mode = %q, want suggesting", svc.Mode())
	}
	if svc.SetMode(ctx, Mode("reviewing")) {
		t.Error("invalid mode accepted")
	}
	if svc.Mode() != ModeSuggesting {
		t.Errorf("mode changed by invalid SetMode: %q", svc.Mode())
	}
	// viewing back to editing is allowed
	if !svc.SetMode(ctx, ModeViewing) || !svc.SetMode(ctx, ModeEditing) {
		t.Error("valid mode transition rejected")
	}
}

func TestCreateSuggestion(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	suggestion := svc.CreateSuggestion(ctx, "main.go", Change{
		Type:          TypeReplace,
		Range:         Range{StartLine: 3, StartColumn: 1, EndLine: 3, EndColumn: 10},
		OriginalText:  "foo()",
		SuggestedText: "bar()",
		Comment:       "bar is clearer",
	}, carol)

	if suggestion.ID == "" {
		t.Fatal("suggestion ID empty")
	}
	if suggestion.Status != StatusPending {
		t.Errorf("status = %q, want pending", suggestion.Status)
	}
	got, ok := svc.GetSuggestion(suggestion.ID)
	if !ok {
		t.Fatal("suggestion not found after create")
	}
	if got.SuggestedText != "bar()" || got.User.ID != carol.ID {
		t.Errorf("suggestion = %+v", got)
	}
}

func TestAcceptSuggestion(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	suggestion := svc.CreateSuggestion(ctx, "main.go", Change{
		Type:          TypeReplace,
		Range:         Range{StartLine: 3, StartColumn: 1, EndLine: 3, EndColumn: 10},
		OriginalText:  "foo()",
		SuggestedText: "bar()",
	}, carol)

	descriptor := svc.AcceptSuggestion(ctx, suggestion.ID, dave.ID)
	if descriptor == nil {
		t.Fatal("AcceptSuggestion returned nil")
	}
	if descriptor.FilePath != "main.go" || descriptor.Text != "bar()" {
		t.Errorf("descriptor = %+v", descriptor)
	}
	if descriptor.Range != suggestion.Range {
		t.Errorf("descriptor range = %+v, want %+v", descriptor.Range, suggestion.Range)
	}

	got, _ := svc.GetSuggestion(suggestion.ID)
	if got.Status != StatusAccepted || got.AcceptedBy != dave.ID {
		t.Errorf("accepted state = %+v", got)
	}

	// status moves one way
	if svc.AcceptSuggestion(ctx, suggestion.ID, carol.ID) != nil {
		t.Error("second accept returned a descriptor")
	}
	if svc.RejectSuggestion(ctx, suggestion.ID, carol.ID, "late") {
		t.Error("reject after accept succeeded")
	}
}

func TestAcceptDeleteSuggestionClearsText(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	suggestion := svc.CreateSuggestion(ctx, "main.go", Change{
		Type:          TypeDelete,
		Range:         Range{StartLine: 7, StartColumn: 1, EndLine: 9, EndColumn: 1},
		OriginalText:  "dead code",
		SuggestedText: "dead code",
	}, carol)

	descriptor := svc.AcceptSuggestion(ctx, suggestion.ID, dave.ID)
	if descriptor == nil {
		t.Fatal("AcceptSuggestion returned nil")
	}
	if descriptor.Text != "" {
		t.Errorf("delete descriptor text = %q, want empty", descriptor.Text)
	}
}

func TestRejectSuggestion(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	suggestion := svc.CreateSuggestion(ctx, "main.go", Change{
		Type:          TypeInsert,
		Range:         Range{StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 1},
		SuggestedText: "import line",
	}, carol)

	if !svc.RejectSuggestion(ctx, suggestion.ID, dave.ID, "not needed") {
		t.Fatal("RejectSuggestion failed")
	}
	got, _ := svc.GetSuggestion(suggestion.ID)
	if got.Status != StatusRejected || got.RejectedBy != dave.ID || got.RejectionReason != "not needed" {
		t.Errorf("rejected state = %+v", got)
	}
	if svc.AcceptSuggestion(ctx, suggestion.ID, dave.ID) != nil {
		t.Error("accept after reject returned a descriptor")
	}
}

func TestDeleteSuggestion(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	suggestion := svc.CreateSuggestion(ctx, "main.go", Change{Type: TypeInsert, SuggestedText: "x"}, carol)
	if !svc.DeleteSuggestion(ctx, suggestion.ID) {
		t.Fatal("DeleteSuggestion failed")
	}
	if _, ok := svc.GetSuggestion(suggestion.ID); ok {
		t.Error("suggestion still present after delete")
	}
	if svc.DeleteSuggestion(ctx, suggestion.ID) {
		t.Error("second delete succeeded")
	}
}

func TestAcceptAllSuggestionsInFileOrder(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	late := svc.CreateSuggestion(ctx, "main.go", Change{
		Type: TypeInsert, Range: Range{StartLine: 20, StartColumn: 1}, SuggestedText: "late",
	}, carol)
	early := svc.CreateSuggestion(ctx, "main.go", Change{
		Type: TypeInsert, Range: Range{StartLine: 2, StartColumn: 1}, SuggestedText: "early",
	}, carol)
	svc.CreateSuggestion(ctx, "other.go", Change{
		Type: TypeInsert, Range: Range{StartLine: 1, StartColumn: 1}, SuggestedText: "elsewhere",
	}, carol)
	rejected := svc.CreateSuggestion(ctx, "main.go", Change{
		Type: TypeInsert, Range: Range{StartLine: 5, StartColumn: 1}, SuggestedText: "gone",
	}, carol)
	svc.RejectSuggestion(ctx, rejected.ID, dave.ID, "no")

	descriptors := svc.AcceptAllSuggestionsInFile(ctx, "main.go", dave.ID)
	if len(descriptors) != 2 {
		t.Fatalf("descriptors = %d, want 2", len(descriptors))
	}
	if descriptors[0].Text != "early" || descriptors[1].Text != "late" {
		t.Errorf("descriptor order = %q, %q", descriptors[0].Text, descriptors[1].Text)
	}
	for _, id := range []string{early.ID, late.ID} {
		if got, _ := svc.GetSuggestion(id); got.Status != StatusAccepted {
			t.Errorf("suggestion %s status = %q", id, got.Status)
		}
	}
	if got, _ := svc.GetSuggestion(rejected.ID); got.Status != StatusRejected {
		t.Errorf("rejected suggestion touched: %q", got.Status)
	}
}

func TestRejectAllSuggestionsInFile(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	svc.CreateSuggestion(ctx, "main.go", Change{Type: TypeInsert, Range: Range{StartLine: 1}}, carol)
	svc.CreateSuggestion(ctx, "main.go", Change{Type: TypeInsert, Range: Range{StartLine: 2}}, carol)

	if count := svc.RejectAllSuggestionsInFile(ctx, "main.go", dave.ID, "sweep"); count != 2 {
		t.Fatalf("rejected = %d, want 2", count)
	}
	if pending := svc.GetSuggestionsByFile("main.go", StatusPending); len(pending) != 0 {
		t.Errorf("pending after sweep = %d", len(pending))
	}
}

func TestGetSuggestionsByFile(t *testing.T) {
	svc := New(kv.NewMemoryStore())
	ctx := context.Background()

	b := svc.CreateSuggestion(ctx, "main.go", Change{
		Type: TypeInsert, Range: Range{StartLine: 4, StartColumn: 8},
	}, carol)
	a := svc.CreateSuggestion(ctx, "main.go", Change{
		Type: TypeInsert, Range: Range{StartLine: 4, StartColumn: 2},
	}, carol)

	all := svc.GetSuggestionsByFile("main.go", "")
	if len(all) != 2 {
		t.Fatalf("suggestions = %d, want 2", len(all))
	}
	if all[0].ID != a.ID || all[1].ID != b.ID {
		t.Errorf("order = %s, %s; want column order", all[0].ID, all[1].ID)
	}

	svc.AcceptSuggestion(ctx, a.ID, dave.ID)
	if accepted := svc.GetSuggestionsByFile("main.go", StatusAccepted); len(accepted) != 1 || accepted[0].ID != a.ID {
		t.Errorf("accepted filter = %+v", accepted)
	}
}

func TestTrackChangesPersistenceRoundTrip(t *testing.T) {
	store := kv.NewMemoryStore()
	svc := New(store)
	ctx := context.Background()

	svc.SetMode(ctx, ModeSuggesting)
	suggestion := svc.CreateSuggestion(ctx, "main.go", Change{
		Type:          TypeReplace,
		Range:         Range{StartLine: 3, StartColumn: 1, EndLine: 3, EndColumn: 4},
		OriginalText:  "old",
		SuggestedText: "new",
	}, carol)
	svc.AcceptSuggestion(ctx, suggestion.ID, dave.ID)

	restored := New(store)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if restored.Mode() != ModeSuggesting {
		t.Errorf("mode = %q, want suggesting", restored.Mode())
	}
	got, ok := restored.GetSuggestion(suggestion.ID)
	if !ok {
		t.Fatal("suggestion missing after reload")
	}
	if got.Status != StatusAccepted || got.AcceptedBy != dave.ID {
		t.Errorf("reloaded suggestion = %+v", got)
	}
}
