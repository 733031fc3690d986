package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kalambet/reqchat/internal/render"
	"github.com/kalambet/reqchat/internal/requirements"
	"github.com/kalambet/reqchat/internal/storage"
)

var (
	// ErrBusy is returned when a send or validate call is already in flight.
	ErrBusy = errors.New("session is busy with another request")
	// ErrConfirmationRequired is returned by Clear without confirmation.
	ErrConfirmationRequired = errors.New("clearing all requirements requires confirmation")
	// ErrClosed is returned by operations on a session evicted or deleted
	// from its Manager.
	ErrClosed = errors.New("session is closed")
	// ErrItemNotFound is returned by DeleteItem for an unknown id.
	ErrItemNotFound = errors.New("requirement not found")
	// ErrEmptyMessage is returned by SendMessage for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInvalidPreference is returned for an unknown architecture type hint.
	ErrInvalidPreference = errors.New("unknown architecture type")
	// ErrSuperseded is returned by Regenerate when a newer change invalidated
	// the result before it arrived.
	ErrSuperseded = errors.New("architecture request superseded by a newer change")
)

// ArchitectureStatus is the derived-architecture state of a session.
type ArchitectureStatus string

const (
	StatusNone       ArchitectureStatus = "none"
	StatusValid      ArchitectureStatus = "valid"
	StatusGenerating ArchitectureStatus = "generating"
)

// maxIngestChars bounds the document text handed to the extraction oracle.
const maxIngestChars = 20000

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID                        string                     `json:"id"`
	Title                     string                     `json:"title"`
	CreatedAt                 time.Time                  `json:"createdAt"`
	UpdatedAt                 time.Time                  `json:"updatedAt"`
	Requirements              requirements.Document      `json:"requirements"`
	TotalRequirements         int                        `json:"totalRequirements"`
	Architecture              *requirements.Architecture `json:"architecture"`
	ArchitectureStatus        ArchitectureStatus         `json:"architectureStatus"`
	ArchitectureStale         bool                       `json:"architectureStale"`
	PreferredArchitectureType string                     `json:"preferredArchitectureType"`
	Messages                  []requirements.ChatMessage `json:"messages"`
	Busy                      bool                       `json:"busy"`
}

// Reply is the outcome of a message or document ingestion.
type Reply struct {
	Messages      []requirements.ChatMessage `json:"messages"`
	Added         int                        `json:"added"`
	Skipped       int                        `json:"skipped"`
	LossSuspected bool                       `json:"lossSuspected"`
}

// state is the persisted part of a session.
type state struct {
	title     string
	doc       requirements.Document
	arch      *requirements.Architecture
	preferred string
}

// Session owns one requirement store and its derived architecture. All
// mutations compute the next state, persist it, and only then swap it in
// under mu.
type Session struct {
	id        string
	createdAt time.Time
	m         *Manager

	mu        sync.Mutex
	st        state
	messages  []requirements.ChatMessage
	updatedAt time.Time
	gen       uint64 // latest issued architecture token
	pending   bool   // a request for token gen is in flight
	stale     bool   // arch was derived from an older store
	busy      bool
	closed    bool
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	msgs := make([]requirements.ChatMessage, len(s.messages))
	copy(msgs, s.messages)
	return Snapshot{
		ID:                        s.id,
		Title:                     s.st.title,
		CreatedAt:                 s.createdAt,
		UpdatedAt:                 s.updatedAt,
		Requirements:              s.st.doc.Clone(),
		TotalRequirements:         s.st.doc.Total(),
		Architecture:              cloneArch(s.st.arch),
		ArchitectureStatus:        s.statusLocked(),
		ArchitectureStale:         s.stale && s.st.arch != nil,
		PreferredArchitectureType: s.st.preferred,
		Messages:                  msgs,
		Busy:                      s.busy,
	}
}

func (s *Session) statusLocked() ArchitectureStatus {
	switch {
	case s.pending:
		return StatusGenerating
	case s.st.arch != nil && !s.stale:
		return StatusValid
	}
	return StatusNone
}

// Requirements returns a copy of the requirement store.
func (s *Session) Requirements() requirements.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.doc.Clone()
}

// SendMessage appends a user message, extracts requirements from it, merges
// them into the store and schedules a background architecture refresh.
// Extraction failures append an apology to the chat and leave the store
// unchanged; the error is still returned.
func (s *Session) SendMessage(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	if err := s.acquire(); err != nil {
		return Reply{}, err
	}
	defer s.release()

	current, err := s.appendUserMessage(text, text)
	if err != nil {
		return Reply{}, err
	}
	return s.extractAndMerge(ctx, text, current)
}

// IngestDocument runs extracted document text through the same
// extract-and-merge path as a chat message.
func (s *Session) IngestDocument(ctx context.Context, filename, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, fmt.Errorf("document %s: %w", filename, ErrEmptyMessage)
	}
	if err := s.acquire(); err != nil {
		return Reply{}, err
	}
	defer s.release()

	n := utf8.RuneCountInString(text)
	if n > maxIngestChars {
		text = string([]rune(text)[:maxIngestChars])
	}
	shown := fmt.Sprintf("📄 資料「%s」を読み込みました（%d文字）", filename, n)
	current, err := s.appendUserMessage(shown, "")
	if err != nil {
		return Reply{}, err
	}
	prompt := fmt.Sprintf("以下はアップロードされた資料「%s」の本文です。ここから要件を抽出してください。\n\n%s", filename, text)
	return s.extractAndMerge(ctx, prompt, current)
}

func (s *Session) appendUserMessage(content, titleSource string) (requirements.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st
	if next.title == "" && titleSource != "" {
		next.title = titleFrom(titleSource)
	}
	if err := s.commitLocked(next, s.message(requirements.SenderUser, content)); err != nil {
		return requirements.Document{}, err
	}
	s.publishStateLocked()
	return s.st.doc.Clone(), nil
}

func (s *Session) extractAndMerge(ctx context.Context, input string, current requirements.Document) (Reply, error) {
	ext, err := s.m.oracle.Extract(ctx, input, current)

	s.mu.Lock()
	if err != nil {
		slog.Warn("requirement extraction failed", "session", s.id, "error", err)
		apology := s.message(requirements.SenderAssistant, render.ExtractionApology)
		if cerr := s.commitLocked(s.st, apology); cerr != nil {
			slog.Warn("failed to record extraction apology", "session", s.id, "error", cerr)
		}
		s.publishStateLocked()
		s.mu.Unlock()
		return Reply{Messages: []requirements.ChatMessage{apology}}, err
	}

	res := requirements.Merge(s.st.doc, ext.Requirements, s.m.policy)
	response := strings.TrimSpace(ext.AssistantResponse)
	if response == "" {
		response = fmt.Sprintf("%d件の要件を追加しました。", res.Added)
	}
	msgs := []requirements.ChatMessage{s.message(requirements.SenderAssistant, response)}
	if res.LossSuspected() {
		slog.Warn("merge shrank the requirement store", "session", s.id, "before", res.TotalBefore, "after", res.TotalAfter)
		msgs = append(msgs, s.message(requirements.SenderAssistant, render.LossWarning))
	}

	next := s.st
	next.doc = res.Document
	if next.doc.IsEmpty() {
		next.arch = nil
	}
	if err := s.commitLocked(next, msgs...); err != nil {
		s.mu.Unlock()
		return Reply{}, err
	}
	var run func()
	if next.doc.IsEmpty() {
		// A replace merge can empty the store; nothing in flight may land on it.
		s.invalidateLocked()
	} else {
		run = s.scheduleLocked()
	}
	s.publishStateLocked()
	s.mu.Unlock()

	if run != nil {
		s.m.spawn(run)
	}
	return Reply{Messages: msgs, Added: res.Added, Skipped: res.Skipped, LossSuspected: res.LossSuspected()}, nil
}

// DeleteItem removes one requirement. When more than one item remains the
// architecture is refreshed in the background; otherwise it is cleared
// without consulting the oracle.
func (s *Session) DeleteItem(c requirements.Category, id string) error {
	s.mu.Lock()
	next, ok := requirements.Delete(s.st.doc, c, id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", c, id, ErrItemNotFound)
	}

	st := s.st
	st.doc = next
	if next.Total() <= 1 {
		st.arch = nil
	}
	if err := s.commitLocked(st); err != nil {
		s.mu.Unlock()
		return err
	}

	var run func()
	if next.Total() > 1 {
		run = s.scheduleLocked()
	} else {
		s.invalidateLocked()
	}
	s.publishStateLocked()
	s.mu.Unlock()

	if run != nil {
		s.m.spawn(run)
	}
	return nil
}

// Clear empties every category and drops the architecture. It requires
// confirm to be true.
func (s *Session) Clear(confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st
	next.doc = requirements.Clear()
	next.arch = nil
	if err := s.commitLocked(next); err != nil {
		return err
	}
	s.invalidateLocked()
	s.publishStateLocked()
	return nil
}

// Regenerate derives the architecture synchronously. An empty store is a
// no-op that returns nil, nil. On failure the previous architecture is kept.
func (s *Session) Regenerate(ctx context.Context, preferred string) (*requirements.Architecture, error) {
	if !requirements.ValidPreference(preferred) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPreference, preferred)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.st.doc.IsEmpty() {
		s.mu.Unlock()
		return nil, nil
	}
	pref := s.st.preferred
	if preferred != "" {
		pref = preferred
	}
	s.gen++
	token := s.gen
	s.pending = true
	doc := s.st.doc.Clone()
	s.publishStateLocked()
	s.mu.Unlock()

	arch, err := s.m.oracle.GenerateArchitecture(ctx, doc, pref)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if token != s.gen {
		return nil, ErrSuperseded
	}
	s.pending = false
	if err != nil {
		s.publishStateLocked()
		return nil, err
	}
	next := s.st
	next.arch = arch
	next.preferred = pref
	if err := s.commitLocked(next); err != nil {
		s.publishStateLocked()
		return nil, err
	}
	s.stale = false
	s.publishStateLocked()
	return cloneArch(arch), nil
}

// Validate asks the oracle to assess the store and appends the formatted
// result, or a fixed apology on failure, to the chat log.
func (s *Session) Validate(ctx context.Context) (requirements.ValidationResult, requirements.ChatMessage, error) {
	if err := s.acquire(); err != nil {
		return requirements.ValidationResult{}, requirements.ChatMessage{}, err
	}
	defer s.release()

	doc := s.Requirements()
	v, verr := s.m.oracle.Validate(ctx, doc)

	content := render.ValidationApology
	if verr == nil {
		content = render.Validation(v)
	} else {
		slog.Warn("requirement validation failed", "session", s.id, "error", verr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.message(requirements.SenderAssistant, content)
	if err := s.commitLocked(s.st, msg); err != nil {
		return requirements.ValidationResult{}, requirements.ChatMessage{}, err
	}
	s.publishStateLocked()
	if verr != nil {
		return requirements.ValidationResult{}, msg, verr
	}
	return v, msg, nil
}

// Quote renders the quote request document for the current state. An
// architecture derived from an older store is not quoted.
func (s *Session) Quote() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale && s.st.arch != nil && !s.st.doc.IsEmpty() {
		return render.Outdated
	}
	return render.Quote(s.st.doc, s.st.arch)
}

// Export returns the export snapshot of the current state.
func (s *Session) Export() requirements.Export {
	s.mu.Lock()
	defer s.mu.Unlock()
	return requirements.NewExport(s.st.doc, cloneArch(s.st.arch), exportTool, s.m.now())
}

// Import replaces the store and architecture with an exported snapshot.
// Invalid documents are rejected with requirements.ErrInvalidImport and the
// session is left untouched. A snapshot without architecture schedules one.
func (s *Session) Import(data []byte) (requirements.Export, error) {
	exp, err := requirements.ParseImport(data)
	if err != nil {
		return requirements.Export{}, err
	}

	s.mu.Lock()
	next := s.st
	next.doc = exp.Requirements.Clone()
	next.arch = exp.SystemArchitecture
	msg := s.message(requirements.SenderAssistant, fmt.Sprintf("📥 %d件の要件をインポートしました。", exp.Requirements.Total()))
	if err := s.commitLocked(next, msg); err != nil {
		s.mu.Unlock()
		return requirements.Export{}, err
	}
	s.invalidateLocked()
	var run func()
	if next.arch == nil {
		run = s.scheduleLocked()
	}
	s.publishStateLocked()
	s.mu.Unlock()

	if run != nil {
		s.m.spawn(run)
	}
	return exp, nil
}

// scheduleLocked issues a new architecture token for the current store and
// returns the background job to run after the lock is released. It returns
// nil for an empty store.
func (s *Session) scheduleLocked() func() {
	if s.st.doc.IsEmpty() {
		return nil
	}
	s.gen++
	token := s.gen
	s.pending = true
	if s.st.arch != nil {
		s.stale = true
	}
	doc, preferred := s.st.doc.Clone(), s.st.preferred
	return func() { s.refresh(token, doc, preferred) }
}

// invalidateLocked discards any in-flight architecture request.
func (s *Session) invalidateLocked() {
	s.gen++
	s.pending = false
	s.stale = false
}

// refresh is the background architecture regeneration. Results whose token
// is no longer the latest are dropped.
func (s *Session) refresh(token uint64, doc requirements.Document, preferred string) {
	arch, err := s.m.oracle.GenerateArchitecture(s.m.ctx, doc, preferred)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || token != s.gen {
		slog.Debug("discarding superseded architecture", "session", s.id, "token", token, "latest", s.gen)
		return
	}
	s.pending = false
	if err != nil {
		slog.Warn("background architecture generation failed", "session", s.id, "error", err)
		s.publishStateLocked()
		return
	}
	next := s.st
	next.arch = arch
	if err := s.commitLocked(next); err != nil {
		slog.Warn("failed to persist architecture", "session", s.id, "error", err)
		s.publishStateLocked()
		return
	}
	s.stale = false
	s.publishStateLocked()
}

func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) message(sender requirements.Sender, content string) requirements.ChatMessage {
	return requirements.ChatMessage{ID: uuid.NewString(), Content: content, Sender: sender, Timestamp: s.m.now()}
}

// commitLocked persists next together with msgs and then makes it current.
// On error nothing changes.
func (s *Session) commitLocked(next state, msgs ...requirements.ChatMessage) error {
	if s.closed {
		return ErrClosed
	}
	docJSON, err := json.Marshal(next.doc.Clone())
	if err != nil {
		return fmt.Errorf("encoding requirements: %w", err)
	}
	var archJSON string
	if next.arch != nil {
		b, err := json.Marshal(next.arch)
		if err != nil {
			return fmt.Errorf("encoding architecture: %w", err)
		}
		archJSON = string(b)
	}

	now := s.m.now()
	rows := make([]storage.Message, len(msgs))
	for i, m := range msgs {
		rows[i] = storage.Message{ID: m.ID, SessionID: s.id, Sender: string(m.Sender), Content: m.Content, CreatedAt: m.Timestamp}
	}
	err = s.m.store.SaveSessionState(storage.Session{
		ID:                    s.id,
		Title:                 next.title,
		RequirementsJSON:      string(docJSON),
		ArchitectureJSON:      archJSON,
		PreferredArchitecture: next.preferred,
		UpdatedAt:             now,
	}, rows)
	if err != nil {
		return fmt.Errorf("persisting session %s: %w", s.id, err)
	}

	next.doc = next.doc.Clone()
	s.st = next
	s.messages = append(s.messages, msgs...)
	s.updatedAt = now
	for _, m := range msgs {
		s.m.publisher.Publish(s.id, Event{Type: EventMessage, Payload: m})
	}
	return nil
}

func (s *Session) publishStateLocked() {
	s.m.publisher.Publish(s.id, Event{Type: EventState, Payload: s.snapshotLocked()})
}

func cloneArch(a *requirements.Architecture) *requirements.Architecture {
	if a == nil {
		return nil
	}
	out := *a
	out.Components = slices.Clone(a.Components)
	for i := range out.Components {
		out.Components[i].Technologies = slices.Clone(out.Components[i].Technologies)
	}
	out.NetworkRequirements = slices.Clone(a.NetworkRequirements)
	out.SecurityMeasures = slices.Clone(a.SecurityMeasures)
	out.ScalabilityConsiderations = slices.Clone(a.ScalabilityConsiderations)
	return &out
}

func titleFrom(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= 40 {
		return text
	}
	return string([]rune(text)[:40]) + "…"
}
