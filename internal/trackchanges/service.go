// Package trackchanges manages suggested-edit proposals and the session
// editing mode.
package trackchanges

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"tandem/collab/internal/kv"
	"tandem/collab/internal/model"
	"tandem/collab/internal/util"
)

// StateKey is the kv key holding the persisted track-changes state.
const StateKey = "track_changes"

// Mode controls how raw editor input is treated: applied directly,
// converted into suggestions, or ignored.
type Mode string

const (
	ModeEditing    Mode = "editing"
	ModeSuggesting Mode = "suggesting"
	ModeViewing    Mode = "viewing"
)

// ValidMode reports whether m is one of the three editing modes.
func ValidMode(m Mode) bool {
	return m == ModeEditing || m == ModeSuggesting || m == ModeViewing
}

type SuggestionType string

const (
	TypeInsert  SuggestionType = "insert"
	TypeDelete  SuggestionType = "delete"
	TypeReplace SuggestionType = "replace"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Range addresses a span of text. Columns are 1-based, matching editor
// positions.
type Range struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// less orders ranges by (startLine, startColumn).
func (r Range) less(other Range) bool {
	if r.StartLine != other.StartLine {
		return r.StartLine < other.StartLine
	}
	return r.StartColumn < other.StartColumn
}

// Suggestion is one proposed edit. Status moves one way: pending to
// accepted or rejected, never back.
type Suggestion struct {
	ID              string         `json:"id"`
	FilePath        string         `json:"filePath"`
	Type            SuggestionType `json:"type"`
	Range           Range          `json:"range"`
	OriginalText    string         `json:"originalText"`
	SuggestedText   string         `json:"suggestedText"`
	User            model.User     `json:"user"`
	Status          Status         `json:"status"`
	Timestamp       time.Time      `json:"timestamp"`
	Comment         string         `json:"comment,omitempty"`
	AcceptedBy      string         `json:"acceptedBy,omitempty"`
	RejectedBy      string         `json:"rejectedBy,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
}

// Change is the caller-supplied description of a proposed edit.
type Change struct {
	Type          SuggestionType `json:"type"`
	Range         Range          `json:"range"`
	OriginalText  string         `json:"originalText"`
	SuggestedText string         `json:"suggestedText"`
	Comment       string         `json:"comment,omitempty"`
}

// EditDescriptor tells the caller what to apply to the document after an
// accept. The service itself never mutates file content.
type EditDescriptor struct {
	FilePath string `json:"filePath"`
	Range    Range  `json:"range"`
	Text     string `json:"text"`
}

// Listener receives local-change notifications for the UI layer.
type Listener interface {
	SuggestionAdded(Suggestion)
	SuggestionUpdated(Suggestion)
	SuggestionDeleted(suggestionID string)
	ModeChanged(Mode)
}

// NopListener is a Listener that ignores everything.
type NopListener struct{}

func (NopListener) SuggestionAdded(Suggestion)   {}
func (NopListener) SuggestionUpdated(Suggestion) {}
func (NopListener) SuggestionDeleted(string)     {}
func (NopListener) ModeChanged(Mode)             {}

// Service owns the suggestion map, the per-file index, and the editing
// mode. All exported methods are safe for concurrent use.
type Service struct {
	store    kv.Store
	clock    util.Clock
	listener Listener
	publish  func(SyncPayload)

	mu              sync.Mutex
	mode            Mode
	suggestions     map[string]*Suggestion
	order           []string
	fileSuggestions map[string][]string
	fileOrder       []string
}

// New creates a track-changes service in editing mode. store may be nil to
// disable persistence.
func New(store kv.Store) *Service {
	return &Service{
		store:           store,
		clock:           util.RealClock{},
		listener:        NopListener{},
		mode:            ModeEditing,
		suggestions:     make(map[string]*Suggestion),
		fileSuggestions: make(map[string][]string),
	}
}

// SetListener registers the UI listener. Pass nil to clear.
func (s *Service) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil {
		l = NopListener{}
	}
	s.listener = l
}

// SetPublisher registers the outbound sync hook.
func (s *Service) SetPublisher(publish func(SyncPayload)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish = publish
}

// SetClock overrides the time source.
func (s *Service) SetClock(clock util.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// Mode returns the current editing mode.
func (s *Service) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the editing mode. Invalid values are rejected with a
// logged no-op. All transitions between valid modes are allowed.
func (s *Service) SetMode(ctx context.Context, mode Mode) bool {
	if !ValidMode(mode) {
		log.Printf("trackchanges: invalid mode %q", mode)
		return false
	}
	s.mu.Lock()
	s.mode = mode
	listener := s.listener
	s.persistLocked(ctx)
	s.mu.Unlock()
	listener.ModeChanged(mode)
	return true
}

// CreateSuggestion records a proposed edit. Ranges may overlap existing
// pending suggestions; rendering overlaps is the editor's concern.
func (s *Service) CreateSuggestion(ctx context.Context, filePath string, change Change, user model.User) Suggestion {
	s.mu.Lock()
	suggestion := &Suggestion{
		ID:            util.NewID("suggestion"),
		FilePath:      filePath,
		Type:          change.Type,
		Range:         change.Range,
		OriginalText:  change.OriginalText,
		SuggestedText: change.SuggestedText,
		User:          user,
		Status:        StatusPending,
		Timestamp:     s.clock.Now(),
		Comment:       change.Comment,
	}
	s.insertLocked(suggestion)
	copied := *suggestion
	listener, publish := s.listener, s.publish
	s.persistLocked(ctx)
	s.mu.Unlock()

	listener.SuggestionAdded(copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionCreate, Suggestion: &copied})
	}
	return copied
}

// AcceptSuggestion marks a pending suggestion accepted and returns the edit
// descriptor for the caller to apply. Returns nil for unknown IDs or
// suggestions no longer pending.
func (s *Service) AcceptSuggestion(ctx context.Context, suggestionID, acceptedBy string) *EditDescriptor {
	s.mu.Lock()
	descriptor, copied := s.acceptLocked(suggestionID, acceptedBy)
	listener, publish := s.listener, s.publish
	if descriptor != nil {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()
	if descriptor == nil {
		return nil
	}
	listener.SuggestionUpdated(copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionAccept, SuggestionID: suggestionID, UserID: acceptedBy})
	}
	return descriptor
}

// RejectSuggestion marks a pending suggestion rejected.
func (s *Service) RejectSuggestion(ctx context.Context, suggestionID, rejectedBy, reason string) bool {
	s.mu.Lock()
	applied, copied := s.rejectLocked(suggestionID, rejectedBy, reason)
	listener, publish := s.listener, s.publish
	if applied {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()
	if !applied {
		return false
	}
	listener.SuggestionUpdated(copied)
	if publish != nil {
		publish(SyncPayload{Action: ActionReject, SuggestionID: suggestionID, UserID: rejectedBy, Reason: reason})
	}
	return true
}

// DeleteSuggestion withdraws a suggestion entirely, whatever its status.
func (s *Service) DeleteSuggestion(ctx context.Context, suggestionID string) bool {
	s.mu.Lock()
	applied := s.deleteLocked(suggestionID)
	listener, publish := s.listener, s.publish
	if applied {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()
	if !applied {
		return false
	}
	listener.SuggestionDeleted(suggestionID)
	if publish != nil {
		publish(SyncPayload{Action: ActionDelete, SuggestionID: suggestionID})
	}
	return true
}

// AcceptAllSuggestionsInFile accepts every pending suggestion for the file
// in ascending range order and returns their edit descriptors in that order.
func (s *Service) AcceptAllSuggestionsInFile(ctx context.Context, filePath, acceptedBy string) []EditDescriptor {
	pending := s.pendingInFileOrdered(filePath)
	descriptors := make([]EditDescriptor, 0, len(pending))
	for _, id := range pending {
		if d := s.AcceptSuggestion(ctx, id, acceptedBy); d != nil {
			descriptors = append(descriptors, *d)
		}
	}
	return descriptors
}

// RejectAllSuggestionsInFile rejects every pending suggestion for the file
// in ascending range order and returns how many were rejected.
func (s *Service) RejectAllSuggestionsInFile(ctx context.Context, filePath, rejectedBy, reason string) int {
	pending := s.pendingInFileOrdered(filePath)
	count := 0
	for _, id := range pending {
		if s.RejectSuggestion(ctx, id, rejectedBy, reason) {
			count++
		}
	}
	return count
}

// GetSuggestion returns a copy of a suggestion.
func (s *Service) GetSuggestion(suggestionID string) (Suggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	suggestion, ok := s.suggestions[suggestionID]
	if !ok {
		return Suggestion{}, false
	}
	return *suggestion, true
}

// GetSuggestionsByFile returns the file's suggestions sorted by
// (startLine, startColumn). An empty status matches all statuses.
func (s *Service) GetSuggestionsByFile(filePath string, status Status) []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Suggestion, 0, len(s.fileSuggestions[filePath]))
	for _, id := range s.fileSuggestions[filePath] {
		suggestion, ok := s.suggestions[id]
		if !ok {
			continue
		}
		if status != "" && suggestion.Status != status {
			continue
		}
		out = append(out, *suggestion)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Range.less(out[j].Range)
	})
	return out
}

// AllSuggestions returns every suggestion in creation order.
func (s *Service) AllSuggestions() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Suggestion, 0, len(s.order))
	for _, id := range s.order {
		if suggestion, ok := s.suggestions[id]; ok {
			out = append(out, *suggestion)
		}
	}
	return out
}

func (s *Service) pendingInFileOrdered(filePath string) []string {
	pending := s.GetSuggestionsByFile(filePath, StatusPending)
	ids := make([]string, len(pending))
	for i, suggestion := range pending {
		ids[i] = suggestion.ID
	}
	return ids
}

func (s *Service) insertLocked(suggestion *Suggestion) {
	s.suggestions[suggestion.ID] = suggestion
	s.order = append(s.order, suggestion.ID)
	if _, seen := s.fileSuggestions[suggestion.FilePath]; !seen {
		s.fileOrder = append(s.fileOrder, suggestion.FilePath)
	}
	s.fileSuggestions[suggestion.FilePath] = append(s.fileSuggestions[suggestion.FilePath], suggestion.ID)
}

func (s *Service) acceptLocked(suggestionID, acceptedBy string) (*EditDescriptor, Suggestion) {
	suggestion, ok := s.suggestions[suggestionID]
	if !ok {
		log.Printf("trackchanges: accept unknown suggestion %s", suggestionID)
		return nil, Suggestion{}
	}
	if suggestion.Status != StatusPending {
		log.Printf("trackchanges: accept %s ignored, status already %s", suggestionID, suggestion.Status)
		return nil, Suggestion{}
	}
	suggestion.Status = StatusAccepted
	suggestion.AcceptedBy = acceptedBy
	text := suggestion.SuggestedText
	if suggestion.Type == TypeDelete {
		text = ""
	}
	return &EditDescriptor{
		FilePath: suggestion.FilePath,
		Range:    suggestion.Range,
		Text:     text,
	}, *suggestion
}

func (s *Service) rejectLocked(suggestionID, rejectedBy, reason string) (bool, Suggestion) {
	suggestion, ok := s.suggestions[suggestionID]
	if !ok {
		log.Printf("trackchanges: reject unknown suggestion %s", suggestionID)
		return false, Suggestion{}
	}
	if suggestion.Status != StatusPending {
		log.Printf("trackchanges: reject %s ignored, status already %s", suggestionID, suggestion.Status)
		return false, Suggestion{}
	}
	suggestion.Status = StatusRejected
	suggestion.RejectedBy = rejectedBy
	suggestion.RejectionReason = reason
	return true, *suggestion
}

func (s *Service) deleteLocked(suggestionID string) bool {
	suggestion, ok := s.suggestions[suggestionID]
	if !ok {
		log.Printf("trackchanges: delete unknown suggestion %s", suggestionID)
		return false
	}
	delete(s.suggestions, suggestionID)
	s.order = removeString(s.order, suggestionID)
	ids := removeString(s.fileSuggestions[suggestion.FilePath], suggestionID)
	if len(ids) == 0 {
		delete(s.fileSuggestions, suggestion.FilePath)
		s.fileOrder = removeString(s.fileOrder, suggestion.FilePath)
	} else {
		s.fileSuggestions[suggestion.FilePath] = ids
	}
	return true
}

func removeString(list []string, value string) []string {
	for i, v := range list {
		if v == value {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// persistedState is the durable layout: mode plus ordered pair lists.
type persistedState struct {
	Mode            Mode                  `json:"mode"`
	Suggestions     []kv.Pair[Suggestion] `json:"suggestions"`
	FileSuggestions []kv.Pair[[]string]   `json:"fileSuggestions"`
}

func (s *Service) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	state := persistedState{
		Mode:            s.mode,
		Suggestions:     make([]kv.Pair[Suggestion], 0, len(s.order)),
		FileSuggestions: kv.Pairs(s.fileSuggestions, s.fileOrder),
	}
	for _, id := range s.order {
		if suggestion, ok := s.suggestions[id]; ok {
			state.Suggestions = append(state.Suggestions, kv.Pair[Suggestion]{Key: id, Value: *suggestion})
		}
	}
	data, err := json.Marshal(state)
	if err != nil {
		log.Printf("trackchanges: marshal state: %v", err)
		return
	}
	if err := s.store.Put(ctx, StateKey, data); err != nil {
		log.Printf("trackchanges: persist state: %v", err)
	}
}

// Load restores previously persisted state. Missing state is not an error.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	data, err := s.store.Get(ctx, StateKey)
	if err == kv.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ValidMode(state.Mode) {
		s.mode = state.Mode
	}
	s.suggestions = make(map[string]*Suggestion, len(state.Suggestions))
	s.order = s.order[:0]
	s.fileSuggestions = make(map[string][]string, len(state.FileSuggestions))
	s.fileOrder = s.fileOrder[:0]
	for _, pair := range state.Suggestions {
		suggestion := pair.Value
		s.suggestions[pair.Key] = &suggestion
		s.order = append(s.order, pair.Key)
	}
	for _, pair := range state.FileSuggestions {
		s.fileSuggestions[pair.Key] = append([]string(nil), pair.Value...)
		s.fileOrder = append(s.fileOrder, pair.Key)
	}
	return nil
}
