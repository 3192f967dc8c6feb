package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tutor-backend/internal/models"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrBusy     = errors.New("session is already answering a question")
)

// Session is the per-tab chat context: the cached textbook reference and
// the in-memory history. It lives until End, expiry, or process exit.
type Session struct {
	ID        uuid.UUID
	Document  *models.DocumentRef
	CreatedAt time.Time

	mu         sync.Mutex
	history    []models.ChatMessage
	busy       bool
	lastActive time.Time
}

func newSession(doc *models.DocumentRef, now time.Time) *Session {
	return &Session{
		ID:         uuid.New(),
		Document:   doc,
		CreatedAt:  now,
		lastActive: now,
	}
}

func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.history = append(s.history, models.ChatMessage{
		Role:      role,
		Content:   content,
		CreatedAt: now,
	})
	s.lastActive = now
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.lastActive = time.Now().UTC()
}

// TryClear clears the history unless a turn is streaming, in which case it
// fails with ErrBusy and leaves the history untouched.
func (s *Session) TryClear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return ErrBusy
	}
	s.history = nil
	s.lastActive = time.Now().UTC()
	return nil
}

// Messages returns a copy of the history in turn order.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// TryBegin claims the session for one turn. It fails with ErrBusy while
// another turn is still streaming.
func (s *Session) TryBegin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return ErrBusy
	}
	s.busy = true
	s.lastActive = time.Now().UTC()
	return nil
}

func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy = false
	s.lastActive = time.Now().UTC()
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Store holds every live session of the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	idleTTL  time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewStore starts a sweeper that ends sessions idle for longer than
// idleTTL. A zero idleTTL keeps sessions until End.
func NewStore(idleTTL time.Duration) *Store {
	st := &Store{
		sessions: make(map[uuid.UUID]*Session),
		idleTTL:  idleTTL,
		stopChan: make(chan struct{}),
	}

	if idleTTL > 0 {
		go st.sweep()
	}
	return st
}

func (st *Store) Create(doc *models.DocumentRef) *Session {
	s := newSession(doc, time.Now().UTC())

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	return s
}

func (st *Store) Get(id uuid.UUID) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (st *Store) End(id uuid.UUID) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(st.sessions, id)
	return nil
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) Close() {
	st.stopOnce.Do(func() { close(st.stopChan) })
}

func (st *Store) sweep() {
	interval := st.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-st.stopChan:
			return
		case now := <-ticker.C:
			if n := st.expire(now); n > 0 {
				log.Printf("Expired %d idle session(s)", n)
			}
		}
	}
}

// expire ends sessions idle since before now-idleTTL. Busy sessions are
// kept regardless of age.
func (st *Store) expire(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for id, s := range st.sessions {
		if s.Busy() {
			continue
		}
		if now.Sub(s.LastActive()) > st.idleTTL {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}
