package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thereayou/ritual-union/internal/database"
	"github.com/thereayou/ritual-union/internal/models"
)

// memStore is an in-memory SessionStore. A single mutex stands in for the
// database row lock.
type memStore struct {
	mu sync.Mutex

	users        map[uint]models.User
	sessions     map[uint]*models.Session
	participants []models.Participant
	messages     []models.Message

	nextSession     uint
	nextParticipant uint
	nextMessage     uint

	getCalls int
	getErrs  []error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uint]models.User),
		sessions: make(map[uint]*models.Session),
	}
}

func (s *memStore) addUser(id uint, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = models.User{ID: id, Name: name, Email: name + "@example.com"}
}

// failNextGet makes the next GetSession calls return the given errors.
func (s *memStore) failNextGet(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErrs = append(s.getErrs, errs...)
}

func (s *memStore) getSessionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func (s *memStore) CreateSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSession++
	session.ID = s.nextSession
	stored := *session
	stored.Participants = nil
	s.sessions[session.ID] = &stored

	for i := range session.Participants {
		p := &session.Participants[i]
		s.nextParticipant++
		p.ID = s.nextParticipant
		p.SessionID = session.ID
		p.User = s.users[p.UserID]
		s.participants = append(s.participants, *p)
	}
	return nil
}

func (s *memStore) GetSession(_ context.Context, id uint) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getCalls++
	if len(s.getErrs) > 0 {
		err := s.getErrs[0]
		s.getErrs = s.getErrs[1:]
		return nil, err
	}
	return s.loadSession(id)
}

func (s *memStore) loadSession(id uint) (*models.Session, error) {
	stored, ok := s.sessions[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	session := *stored
	if stored.EndedAt != nil {
		at := *stored.EndedAt
		session.EndedAt = &at
	}
	session.Participants = nil
	for _, p := range s.participants {
		if p.SessionID == id {
			p.User = s.users[p.UserID]
			session.Participants = append(session.Participants, p)
		}
	}
	return &session, nil
}

func (s *memStore) ListActiveSessions(_ context.Context) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Session
	for id, stored := range s.sessions {
		if stored.EndedAt != nil {
			continue
		}
		session, _ := s.loadSession(id)
		out = append(out, *session)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (s *memStore) DeleteSession(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.sessions, id)

	kept := s.participants[:0]
	for _, p := range s.participants {
		if p.SessionID != id {
			kept = append(kept, p)
		}
	}
	s.participants = kept

	keptMsgs := s.messages[:0]
	for _, m := range s.messages {
		if m.SessionID != id {
			keptMsgs = append(keptMsgs, m)
		}
	}
	s.messages = keptMsgs
	return nil
}

func (s *memStore) InSession(_ context.Context, id uint, fn func(tx database.SessionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[id]
	if !ok {
		return database.ErrNotFound
	}
	session := *stored
	return fn(&memTx{store: s, session: &session})
}

func (s *memStore) MessagesAfter(_ context.Context, sessionID, afterID uint) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Message
	for _, m := range s.messages {
		if m.SessionID == sessionID && m.ID > afterID {
			m.User = s.users[m.UserID]
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) participantCount(sessionID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.participants {
		if p.SessionID == sessionID {
			n++
		}
	}
	return n
}

type memTx struct {
	store   *memStore
	session *models.Session
}

func (t *memTx) Session() *models.Session {
	return t.session
}

func (t *memTx) FindParticipant(userID uint) (*models.Participant, error) {
	for _, p := range t.store.participants {
		if p.SessionID == t.session.ID && p.UserID == userID {
			p.User = t.store.users[p.UserID]
			return &p, nil
		}
	}
	return nil, database.ErrNotFound
}

func (t *memTx) CountParticipants() (int, error) {
	n := 0
	for _, p := range t.store.participants {
		if p.SessionID == t.session.ID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CreateParticipant(p *models.Participant) error {
	t.store.nextParticipant++
	p.ID = t.store.nextParticipant
	p.SessionID = t.session.ID
	p.User = t.store.users[p.UserID]
	t.store.participants = append(t.store.participants, *p)
	return nil
}

func (t *memTx) SaveParticipant(p *models.Participant) error {
	for i := range t.store.participants {
		if t.store.participants[i].ID == p.ID {
			t.store.participants[i].Status = p.Status
			t.store.participants[i].CurrentActivity = p.CurrentActivity
			t.store.participants[i].LastActiveAt = p.LastActiveAt
			return nil
		}
	}
	return database.ErrNotFound
}

func (t *memTx) CreateMessage(m *models.Message) error {
	t.store.nextMessage++
	m.ID = t.store.nextMessage
	m.SessionID = t.session.ID
	m.User = t.store.users[m.UserID]
	t.store.messages = append(t.store.messages, *m)
	return nil
}

func (t *memTx) EndSession(at time.Time) error {
	t.store.sessions[t.session.ID].EndedAt = &at
	t.session.EndedAt = &at
	return nil
}

// fakeClock hands out a controllable time.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
