// Package session keeps the hosts of open preview sessions in memory and
// evicts them once idle.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/textanchor/internal/host"
	"github.com/google/uuid"
)

// Session is one open article. Every access to its host goes through Do.
type Session struct {
	mu sync.Mutex

	ID        string
	ArticleID string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time

	host *host.Host
}

// Snapshot is a read-only, JSON-safe copy of session state.
type Snapshot struct {
	ID          string    `json:"session_id"`
	ArticleID   string    `json:"article_id"`
	Title       string    `json:"title,omitempty"`
	Sentences   int       `json:"sentences"`
	Annotations int       `json:"annotations"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Do runs fn with exclusive access to the session's host.
func (s *Session) Do(fn func(h *host.Host) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()
	return fn(s.host)
}

// Snapshot returns a JSON-safe copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:          s.ID,
		ArticleID:   s.ArticleID,
		Title:       s.Title,
		Sentences:   s.host.Document().Len(),
		Annotations: len(s.host.Annotations()),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host.Close()
}

func (s *Session) idle(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.UpdatedAt) > ttl
}

// Registry is a thread-safe in-memory session registry with TTL eviction.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	interval time.Duration
	log      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRegistry(ttl time.Duration, log *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		interval: 5 * time.Minute,
		log:      log,
	}
}

// Create registers a new session around h.
func (r *Registry) Create(h *host.Host, title string) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		ArticleID: h.ArticleID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		host:      h,
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.log.Info("session created", "session", s.ID, "article", s.ArticleID)
	return s
}

func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// Delete closes and removes a session. It reports whether one existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Cleanup removes expired sessions and returns how many were evicted.
func (r *Registry) Cleanup() int {
	now := time.Now()
	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idle(now, r.ttl) {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
		r.log.Info("session expired", "session", s.ID, "article", s.ArticleID)
	}
	return len(expired)
}

// Start launches the background cleanup loop.
func (r *Registry) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}

// Stop halts the cleanup loop and closes every session.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}
