package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kalambet/reqchat/internal/oracle"
	"github.com/kalambet/reqchat/internal/requirements"
	"github.com/kalambet/reqchat/internal/storage"
)

const (
	exportTool       = "reqchat"
	defaultCacheSize = 128
)

// Oracle is the set of oracle calls a session makes. *oracle.Client
// satisfies it.
type Oracle interface {
	Extract(ctx context.Context, message string, current requirements.Document) (oracle.Extraction, error)
	GenerateArchitecture(ctx context.Context, doc requirements.Document, preferred string) (*requirements.Architecture, error)
	Validate(ctx context.Context, doc requirements.Document) (requirements.ValidationResult, error)
}

// Store is the persistence a Manager needs. *storage.Store satisfies it.
type Store interface {
	CreateSession(sess storage.Session) error
	GetSession(id string) (storage.Session, error)
	ListSessions(limit int) ([]storage.Session, error)
	SaveSessionState(sess storage.Session, msgs []storage.Message) error
	ListMessages(sessionID string) ([]storage.Message, error)
	DeleteSession(id string) error
}

// Options configure a Manager. Zero values select defaults.
type Options struct {
	Policy    requirements.MergePolicy
	CacheSize int
	Publisher Publisher
	// Spawn runs background architecture refreshes. Defaults to a goroutine.
	Spawn func(func())
	Now   func() time.Time
}

// Summary is the list view of a session.
type Summary struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	TotalRequirements int       `json:"totalRequirements"`
	HasArchitecture   bool      `json:"hasArchitecture"`
}

// Manager owns the live sessions. Recently used sessions are kept in an LRU
// cache; evicted ones are closed so late background results cannot write,
// and are reloaded from the store on next access.
type Manager struct {
	store     Store
	oracle    Oracle
	policy    requirements.MergePolicy
	publisher Publisher
	spawn     func(func())
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	cache *lru.Cache[string, *Session]
}

// NewManager creates a Manager.
func NewManager(store Store, o Oracle, opts Options) (*Manager, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.NewWithEvict(size, func(id string, s *Session) {
		s.close()
		slog.Debug("session evicted", "session", id)
	})
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}

	m := &Manager{
		store:     store,
		oracle:    o,
		policy:    opts.Policy,
		publisher: opts.Publisher,
		spawn:     opts.Spawn,
		now:       opts.Now,
		cache:     cache,
	}
	if m.policy == "" {
		m.policy = requirements.MergeAdditive
	}
	if m.publisher == nil {
		m.publisher = nopPublisher{}
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	if m.spawn == nil {
		m.spawn = func(fn func()) {
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				fn()
			}()
		}
	}
	return m, nil
}

// Close cancels background work, waits for it to finish and closes every
// cached session.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
	m.mu.Lock()
	m.cache.Purge()
	m.mu.Unlock()
}

// Create starts a new, empty session.
func (m *Manager) Create() (*Session, error) {
	now := m.now()
	s := &Session{
		id:        uuid.NewString(),
		createdAt: now,
		updatedAt: now,
		m:         m,
		st:        state{doc: requirements.Clear()},
		messages:  []requirements.ChatMessage{},
	}
	docJSON, _ := json.Marshal(s.st.doc)
	if err := m.store.CreateSession(storage.Session{
		ID:               s.id,
		RequirementsJSON: string(docJSON),
		CreatedAt:        now,
		UpdatedAt:        now,
	}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache.Add(s.id, s)
	m.mu.Unlock()
	slog.Info("session created", "session", s.id)
	return s, nil
}

// Get returns a live session, loading it from the store if needed. Unknown
// ids yield storage.ErrNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.cache.Get(id); ok {
		return s, nil
	}
	s, err := m.load(id)
	if err != nil {
		return nil, err
	}
	m.cache.Add(id, s)
	return s, nil
}

func (m *Manager) load(id string) (*Session, error) {
	row, err := m.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	var doc requirements.Document
	if err := json.Unmarshal([]byte(row.RequirementsJSON), &doc); err != nil {
		return nil, fmt.Errorf("decoding requirements of session %s: %w", id, err)
	}
	var arch *requirements.Architecture
	if row.ArchitectureJSON != "" {
		arch = &requirements.Architecture{}
		if err := json.Unmarshal([]byte(row.ArchitectureJSON), arch); err != nil {
			return nil, fmt.Errorf("decoding architecture of session %s: %w", id, err)
		}
	}
	rows, err := m.store.ListMessages(id)
	if err != nil {
		return nil, fmt.Errorf("loading messages of session %s: %w", id, err)
	}
	msgs := make([]requirements.ChatMessage, len(rows))
	for i, r := range rows {
		msgs[i] = requirements.ChatMessage{ID: r.ID, Content: r.Content, Sender: requirements.Sender(r.Sender), Timestamp: r.CreatedAt}
	}

	return &Session{
		id:        row.ID,
		createdAt: row.CreatedAt,
		updatedAt: row.UpdatedAt,
		m:         m,
		st: state{
			title:     row.Title,
			doc:       doc.Clone(),
			arch:      arch,
			preferred: row.PreferredArchitecture,
		},
		messages: msgs,
	}, nil
}

// List returns up to limit session summaries, most recently updated first.
func (m *Manager) List(limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := m.store.ListSessions(limit)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		var doc requirements.Document
		if err := json.Unmarshal([]byte(r.RequirementsJSON), &doc); err != nil {
			slog.Warn("skipping session with unreadable requirements", "session", r.ID, "error", err)
			continue
		}
		out = append(out, Summary{
			ID:                r.ID,
			Title:             r.Title,
			CreatedAt:         r.CreatedAt,
			UpdatedAt:         r.UpdatedAt,
			TotalRequirements: doc.Total(),
			HasArchitecture:   r.ArchitectureJSON != "",
		})
	}
	return out, nil
}

// Delete closes and removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	m.cache.Remove(id)
	m.mu.Unlock()

	if err := m.store.DeleteSession(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	slog.Info("session deleted", "session", id)
	return nil
}

// IngestDocument feeds extracted document text into the session with the
// given id, loading it if needed.
func (m *Manager) IngestDocument(ctx context.Context, sessionID, filename, text string) (Reply, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return Reply{}, err
	}
	return s.IngestDocument(ctx, filename, text)
}
