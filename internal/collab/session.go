// Package collab assembles one editing session: it owns the four state
// services, binds them to a shared store, and bridges local mutations onto
// the transport and remote ones back into the services.
package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tandem/collab/internal/archive"
	"tandem/collab/internal/auth"
	"tandem/collab/internal/comments"
	"tandem/collab/internal/email"
	"tandem/collab/internal/export"
	"tandem/collab/internal/history"
	"tandem/collab/internal/kv"
	"tandem/collab/internal/model"
	"tandem/collab/internal/permissions"
	"tandem/collab/internal/search"
	"tandem/collab/internal/trackchanges"
	"tandem/collab/internal/transport"
	"tandem/collab/internal/util"
)

// DefaultTokenTTL is how long a join token stays valid unless the caller
// asks for another lifetime.
const DefaultTokenTTL = 24 * time.Hour

// Options configure a session. Store, Transport, Search, Email and Archive
// may each be nil to disable that concern.
type Options struct {
	SessionID string
	// Secret signs and verifies join tokens. Empty disables verification,
	// which is only sensible for local or test setups.
	Secret    []byte
	Self      model.User
	Store     kv.Store
	Transport transport.Transport
	Search    *search.Service
	Email     *email.Service
	Archive   archive.Archive
	Clock     util.Clock
	TokenTTL  time.Duration
}

type collaborator struct {
	user  model.User
	email string
}

// Session is the per-session aggregate. One Session is created when the
// local user opens a project and closed when they leave; nothing in this
// package is process-global.
type Session struct {
	id     string
	secret []byte
	self   model.User
	token  string

	tp          transport.Transport
	search      *search.Service
	email       *email.Service
	snapArchive archive.Archive

	Comments     *comments.Service
	TrackChanges *trackchanges.Service
	Permissions  *permissions.Service
	History      *history.Service

	mu            sync.Mutex
	commentFwd    comments.Listener
	suggestionFwd trackchanges.Listener
	collaborators map[string]collaborator
	resolvedSeen  map[string]bool
}

// NewSession builds the aggregate and wires the cross-service hooks. Call
// Start afterwards to load persisted state and join the transport channel.
func NewSession(opts Options) (*Session, error) {
	if opts.SessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	if opts.Self.ID == "" {
		return nil, fmt.Errorf("local user required")
	}
	s := &Session{
		id:            opts.SessionID,
		secret:        opts.Secret,
		self:          opts.Self,
		tp:            opts.Transport,
		search:        opts.Search,
		email:         opts.Email,
		snapArchive:   opts.Archive,
		Comments:      comments.New(opts.Store),
		TrackChanges:  trackchanges.New(opts.Store),
		Permissions:   permissions.New(opts.Store),
		History:       history.New(opts.Store),
		commentFwd:    comments.NopListener{},
		suggestionFwd: trackchanges.NopListener{},
		collaborators: make(map[string]collaborator),
		resolvedSeen:  make(map[string]bool),
	}
	if opts.Clock != nil {
		s.Comments.SetClock(opts.Clock)
		s.TrackChanges.SetClock(opts.Clock)
		s.History.SetClock(opts.Clock)
	}

	if len(s.secret) > 0 {
		ttl := opts.TokenTTL
		if ttl <= 0 {
			ttl = DefaultTokenTTL
		}
		token, err := auth.IssueToken(s.secret, auth.Claims{
			Sub:     s.self.ID,
			Name:    s.self.Name,
			Session: s.id,
			Exp:     time.Now().Add(ttl).Unix(),
		})
		if err != nil {
			return nil, fmt.Errorf("issue session token: %w", err)
		}
		s.token = token
	}

	s.Comments.SetListener(commentBridge{s})
	s.TrackChanges.SetListener(suggestionBridge{s})
	s.Comments.SetPublisher(func(p comments.SyncPayload) {
		s.publish(transport.ServiceComments, p)
	})
	s.TrackChanges.SetPublisher(func(p trackchanges.SyncPayload) {
		s.publish(transport.ServiceSuggestions, p)
	})
	s.Permissions.SetPublisher(func(p permissions.SyncPayload) {
		s.publish(transport.ServicePermissions, p)
	})
	if s.snapArchive != nil {
		s.History.SetArchiver(func(snapshot history.Snapshot) {
			if err := s.snapArchive.Store(context.Background(), snapshot); err != nil {
				log.Printf("collab: archive snapshot %s: %v", snapshot.ID, err)
			}
		})
	}
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Self returns the local user.
func (s *Session) Self() model.User { return s.self }

// Token returns the local user's signed join token, or "" when the session
// runs without a secret.
func (s *Session) Token() string { return s.token }

// Start loads persisted state for every service and subscribes to the
// transport channel. It must be called once before mutations flow.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Comments.Load(ctx); err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	if err := s.TrackChanges.Load(ctx); err != nil {
		return fmt.Errorf("load track changes: %w", err)
	}
	if err := s.Permissions.Load(ctx); err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	if err := s.History.Load(ctx); err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if s.tp != nil {
		if err := s.tp.Subscribe(ctx, s.handleEnvelope); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}
	return nil
}

// Close stops background work. The store and transport are owned by the
// caller and stay open.
func (s *Session) Close() {
	s.History.StopAutoSave()
}

// RegisterCollaborator records a participant so mentions and resolution
// notifications can reach them. emailAddr may be empty.
func (s *Session) RegisterCollaborator(user model.User, emailAddr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collaborators[user.ID] = collaborator{user: user, email: emailAddr}
}

// IssueJoinToken signs a token for another participant. Requires a session
// secret.
func (s *Session) IssueJoinToken(user model.User, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("session has no secret")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return auth.IssueToken(s.secret, auth.Claims{
		Sub:     user.ID,
		Name:    user.Name,
		Session: s.id,
		Exp:     time.Now().Add(ttl).Unix(),
	})
}

// SetCommentListener registers the UI listener for comment events. The
// session keeps its own internal hooks in front of it.
func (s *Session) SetCommentListener(l comments.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil {
		l = comments.NopListener{}
	}
	s.commentFwd = l
}

// SetSuggestionListener registers the UI listener for suggestion events.
func (s *Session) SetSuggestionListener(l trackchanges.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil {
		l = trackchanges.NopListener{}
	}
	s.suggestionFwd = l
}

// publish wraps a service payload in an envelope and puts it on the wire.
// Failures are logged, never surfaced to the mutating call: local state is
// already updated and remote peers reconverge from persistence.
func (s *Session) publish(service string, payload any) {
	if s.tp == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("collab: marshal %s payload: %v", service, err)
		return
	}
	envelope := transport.Envelope{
		Service:  service,
		SenderID: s.self.ID,
		Token:    s.token,
		Payload:  data,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tp.Publish(ctx, envelope); err != nil {
		log.Printf("collab: publish %s: %v", service, err)
	}
}

// handleEnvelope applies one remote mutation. Own envelopes are skipped so
// a broadcast transport cannot echo local mutations back in.
func (s *Session) handleEnvelope(envelope transport.Envelope) {
	if envelope.SenderID == s.self.ID {
		return
	}
	if len(s.secret) > 0 {
		claims, err := auth.ParseToken(s.secret, s.id, envelope.Token)
		if err != nil {
			log.Printf("collab: drop envelope from %s: %v", envelope.SenderID, err)
			return
		}
		if claims.Sub != envelope.SenderID {
			log.Printf("collab: drop envelope: token subject %s does not match sender %s", claims.Sub, envelope.SenderID)
			return
		}
	}
	ctx := context.Background()
	switch envelope.Service {
	case transport.ServiceComments:
		var payload comments.SyncPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			log.Printf("collab: decode comments payload: %v", err)
			return
		}
		s.Comments.SyncComment(ctx, payload)
	case transport.ServiceSuggestions:
		var payload trackchanges.SyncPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			log.Printf("collab: decode suggestions payload: %v", err)
			return
		}
		s.TrackChanges.SyncSuggestion(ctx, payload)
	case transport.ServicePermissions:
		var payload permissions.SyncPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			log.Printf("collab: decode permissions payload: %v", err)
			return
		}
		s.Permissions.SyncPermissionChange(ctx, payload)
	default:
		log.Printf("collab: unknown envelope service %q", envelope.Service)
	}
}

// commentBridge sits in the comment service's listener slot: it feeds the
// search index and notification mail, then forwards to the UI listener.
type commentBridge struct{ s *Session }

func (b commentBridge) ThreadAdded(thread comments.Thread) {
	for _, comment := range thread.Comments {
		b.s.indexComment(thread, comment)
	}
	if len(thread.Comments) > 0 {
		b.s.notifyMentions(thread, thread.Comments[0])
	}
	b.s.forwardComments().ThreadAdded(thread)
}

func (b commentBridge) ThreadUpdated(thread comments.Thread) {
	for _, comment := range thread.Comments {
		b.s.indexComment(thread, comment)
	}
	b.s.noteResolution(thread)
	b.s.forwardComments().ThreadUpdated(thread)
}

func (b commentBridge) ThreadDeleted(threadID string) {
	b.s.mu.Lock()
	delete(b.s.resolvedSeen, threadID)
	b.s.mu.Unlock()
	b.s.forwardComments().ThreadDeleted(threadID)
}

func (b commentBridge) CommentAdded(thread comments.Thread, comment comments.Comment) {
	b.s.notifyMentions(thread, comment)
	b.s.forwardComments().CommentAdded(thread, comment)
}

func (b commentBridge) CommentDeleted(threadID, commentID string) {
	if b.s.search != nil {
		b.s.search.DeleteComment(commentID)
	}
	b.s.forwardComments().CommentDeleted(threadID, commentID)
}

// suggestionBridge mirrors suggestion events into the search index before
// forwarding them.
type suggestionBridge struct{ s *Session }

func (b suggestionBridge) SuggestionAdded(suggestion trackchanges.Suggestion) {
	b.s.indexSuggestion(suggestion)
	b.s.forwardSuggestions().SuggestionAdded(suggestion)
}

func (b suggestionBridge) SuggestionUpdated(suggestion trackchanges.Suggestion) {
	b.s.indexSuggestion(suggestion)
	b.s.forwardSuggestions().SuggestionUpdated(suggestion)
}

func (b suggestionBridge) SuggestionDeleted(suggestionID string) {
	if b.s.search != nil {
		b.s.search.DeleteSuggestion(suggestionID)
	}
	b.s.forwardSuggestions().SuggestionDeleted(suggestionID)
}

func (b suggestionBridge) ModeChanged(mode trackchanges.Mode) {
	b.s.forwardSuggestions().ModeChanged(mode)
}

func (s *Session) forwardComments() comments.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commentFwd
}

func (s *Session) forwardSuggestions() trackchanges.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestionFwd
}

func (s *Session) indexComment(thread comments.Thread, comment comments.Comment) {
	if s.search == nil {
		return
	}
	s.search.IndexComment(search.CommentRecord{
		ID:       comment.ID,
		ThreadID: thread.ID,
		FilePath: thread.FilePath,
		Text:     comment.Text,
		Author:   comment.User.Name,
		Resolved: thread.IsResolved,
	})
}

func (s *Session) indexSuggestion(suggestion trackchanges.Suggestion) {
	if s.search == nil {
		return
	}
	s.search.IndexSuggestion(search.SuggestionRecord{
		ID:       suggestion.ID,
		FilePath: suggestion.FilePath,
		Text:     suggestion.SuggestedText,
		Comment:  suggestion.Comment,
		Author:   suggestion.User.Name,
		Status:   string(suggestion.Status),
	})
}

// notifyMentions mails every registered collaborator whose @name appears in
// the comment. Authors are never mailed for mentioning themselves.
func (s *Session) notifyMentions(thread comments.Thread, comment comments.Comment) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	text := strings.ToLower(comment.Text)
	s.mu.Lock()
	recipients := make([]collaborator, 0, 2)
	for id, c := range s.collaborators {
		if id == comment.User.ID || c.email == "" || c.user.Name == "" {
			continue
		}
		if strings.Contains(text, "@"+strings.ToLower(c.user.Name)) {
			recipients = append(recipients, c)
		}
	}
	s.mu.Unlock()
	for _, c := range recipients {
		c := c
		go func() {
			err := s.email.SendMentionEmail(c.email, c.user.Name, comment.User.Name, thread.FilePath, thread.LineNumber, comment.Text)
			if err != nil {
				log.Printf("collab: mention email to %s: %v", c.user.ID, err)
			}
		}()
	}
}

// noteResolution mails the thread creator the first time a thread turns
// resolved. Reopening clears the mark so a later resolution notifies again.
func (s *Session) noteResolution(thread comments.Thread) {
	s.mu.Lock()
	if !thread.IsResolved {
		delete(s.resolvedSeen, thread.ID)
		s.mu.Unlock()
		return
	}
	if s.resolvedSeen[thread.ID] {
		s.mu.Unlock()
		return
	}
	s.resolvedSeen[thread.ID] = true
	creator, ok := s.collaborators[thread.CreatedBy]
	resolver := thread.ResolvedBy
	if c, known := s.collaborators[resolver]; known {
		resolver = c.user.Name
	}
	s.mu.Unlock()

	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	if !ok || creator.email == "" || thread.CreatedBy == thread.ResolvedBy {
		return
	}
	go func() {
		err := s.email.SendResolutionEmail(creator.email, creator.user.Name, resolver, thread.FilePath, thread.LineNumber)
		if err != nil {
			log.Printf("collab: resolution email to %s: %v", thread.CreatedBy, err)
		}
	}()
}

// ReportThreads implements export.DataSource.
func (s *Session) ReportThreads(includeResolved bool) []export.ReportThread {
	threads := s.Comments.AllThreads()
	out := make([]export.ReportThread, 0, len(threads))
	for _, thread := range threads {
		if thread.IsResolved && !includeResolved {
			continue
		}
		rt := export.ReportThread{
			FilePath:   thread.FilePath,
			LineNumber: thread.LineNumber,
			Resolved:   thread.IsResolved,
			ResolvedBy: thread.ResolvedBy,
			Comments:   make([]export.ReportComment, 0, len(thread.Comments)),
		}
		for _, comment := range thread.Comments {
			rt.Comments = append(rt.Comments, export.ReportComment{
				Author:    comment.User.Name,
				Text:      comment.Text,
				Timestamp: comment.Timestamp,
				Edited:    comment.Edited,
			})
		}
		out = append(out, rt)
	}
	return out
}

// ReportSuggestions implements export.DataSource.
func (s *Session) ReportSuggestions() []export.ReportSuggestion {
	suggestions := s.TrackChanges.AllSuggestions()
	out := make([]export.ReportSuggestion, 0, len(suggestions))
	for _, suggestion := range suggestions {
		out = append(out, export.ReportSuggestion{
			FilePath:      suggestion.FilePath,
			Type:          string(suggestion.Type),
			Status:        string(suggestion.Status),
			Author:        suggestion.User.Name,
			OriginalText:  suggestion.OriginalText,
			SuggestedText: suggestion.SuggestedText,
			Comment:       suggestion.Comment,
		})
	}
	return out
}

// ReportSnapshots implements export.DataSource.
func (s *Session) ReportSnapshots() []export.ReportSnapshot {
	snapshots := s.History.GetSnapshots()
	out := make([]export.ReportSnapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		out = append(out, export.ReportSnapshot{
			ID:          snapshot.ID,
			Timestamp:   snapshot.Timestamp,
			Author:      snapshot.User.Name,
			Description: snapshot.Description,
			FileCount:   snapshot.FileCount,
			Size:        snapshot.Size,
		})
	}
	return out
}

var _ export.DataSource = (*Session)(nil)
