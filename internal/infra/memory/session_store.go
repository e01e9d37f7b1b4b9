package memory

import (
	"context"
	"sync"
	"time"

	"prepquiz-service/internal/domain"
)

type activeKey struct {
	userID string
	quizID string
}

// SessionStore is the in-memory implementation of app.SessionStore. All
// mutations happen under one lock, which is what makes the check-then-create
// on the active index and the write-once answer log race-safe.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	answers  map[string][]domain.AnswerRecord
	answered map[string]map[string]struct{}
	active   map[activeKey]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.Session),
		answers:  make(map[string][]domain.AnswerRecord),
		answered: make(map[string]map[string]struct{}),
		active:   make(map[activeKey]string),
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := activeKey{userID: session.UserID, quizID: session.QuizID}
	if _, exists := s.active[key]; exists {
		return domain.ErrActiveSessionExists
	}
	s.sessions[session.ID] = session
	s.answered[session.ID] = make(map[string]struct{})
	s.active[key] = session.ID
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

// RecordAnswer appends a write-once answer and applies the score increments in
// the same critical section.
func (s *SessionStore) RecordAnswer(_ context.Context, record domain.AnswerRecord, points int) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[record.SessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if session.Status != domain.StatusInProgress {
		return domain.Session{}, domain.ErrSessionNotActive
	}
	if _, dup := s.answered[record.SessionID][record.QuestionID]; dup {
		return domain.Session{}, domain.ErrDuplicateAnswer
	}

	s.answered[record.SessionID][record.QuestionID] = struct{}{}
	s.answers[record.SessionID] = append(s.answers[record.SessionID], record)

	session.Score += points
	if record.IsCorrect {
		session.CorrectAnswers++
	}
	s.sessions[record.SessionID] = session
	return session, nil
}

// Answers returns the session's answer log in submission order.
func (s *SessionStore) Answers(_ context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, domain.ErrSessionNotFound
	}
	log := s.answers[sessionID]
	out := make([]domain.AnswerRecord, len(log))
	copy(out, log)
	return out, nil
}

// Complete is the in_progress -> completed compare-and-swap. The caller that
// wins the swap is the one that runs progression.
func (s *SessionStore) Complete(_ context.Context, sessionID string, completedAt time.Time, timeTaken int) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if session.Status != domain.StatusInProgress {
		return domain.Session{}, domain.ErrSessionNotActive
	}

	session.Status = domain.StatusCompleted
	session.CompletedAt = completedAt
	session.TimeTakenSeconds = timeTaken
	s.sessions[sessionID] = session
	delete(s.active, activeKey{userID: session.UserID, quizID: session.QuizID})
	return session, nil
}

// ExpireDue flips every overdue in_progress session to expired and frees its
// active slot.
func (s *SessionStore) ExpireDue(_ context.Context, now time.Time) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []domain.Session
	for id, session := range s.sessions {
		if session.Status != domain.StatusInProgress || session.ExpiresAt.IsZero() {
			continue
		}
		if session.ExpiresAt.After(now) {
			continue
		}
		session.Status = domain.StatusExpired
		s.sessions[id] = session
		delete(s.active, activeKey{userID: session.UserID, quizID: session.QuizID})
		expired = append(expired, session)
	}
	return expired, nil
}
