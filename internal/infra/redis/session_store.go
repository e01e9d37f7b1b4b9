package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"prepquiz-service/internal/domain"
	"prepquiz-service/internal/infra/memory"
)

// SessionStore layers a Redis active-session guard over the in-memory store.
// Notes:
//   - Session state and the answer log still live in the in-process store; a
//     session is driven by a single client against one instance.
//   - Redis holds the (user, quiz) active marker via SETNX, so the
//     one-in_progress-session invariant survives concurrent Start calls even
//     across instances.
//   - The marker TTL is a safety valve against instances dying mid-session.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	inner  *memory.SessionStore
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		inner:  memory.NewSessionStore(),
	}
}

func (s *SessionStore) Create(ctx context.Context, session domain.Session) error {
	key := s.activeKey(session.UserID, session.QuizID)
	ok, err := s.client.SetNX(ctx, key, session.ID, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrActiveSessionExists
	}
	if err := s.inner.Create(ctx, session); err != nil {
		_ = s.client.Del(ctx, key).Err()
		return err
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.inner.Get(ctx, sessionID)
}

func (s *SessionStore) RecordAnswer(ctx context.Context, record domain.AnswerRecord, points int) (domain.Session, error) {
	return s.inner.RecordAnswer(ctx, record, points)
}

func (s *SessionStore) Answers(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	return s.inner.Answers(ctx, sessionID)
}

func (s *SessionStore) Complete(ctx context.Context, sessionID string, completedAt time.Time, timeTaken int) (domain.Session, error) {
	session, err := s.inner.Complete(ctx, sessionID, completedAt, timeTaken)
	if err != nil {
		return domain.Session{}, err
	}
	_ = s.client.Del(ctx, s.activeKey(session.UserID, session.QuizID)).Err()
	return session, nil
}

func (s *SessionStore) ExpireDue(ctx context.Context, now time.Time) ([]domain.Session, error) {
	expired, err := s.inner.ExpireDue(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, session := range expired {
		_ = s.client.Del(ctx, s.activeKey(session.UserID, session.QuizID)).Err()
	}
	return expired, nil
}

func (s *SessionStore) activeKey(userID, quizID string) string {
	return "session:active:" + userID + ":" + quizID
}
