package memory

import (
	"context"
	"testing"
	"time"

	"prepquiz-service/internal/domain"
)

func newSession(id, userID, quizID string) domain.Session {
	return domain.Session{
		ID:             id,
		UserID:         userID,
		QuizID:         quizID,
		Status:         domain.StatusInProgress,
		TotalQuestions: 2,
		StartedAt:      time.Now(),
	}
}

func TestSessionStoreSingleActivePerUserQuiz(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	if err := store.Create(ctx, newSession("s1", "u1", "quiz-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, newSession("s2", "u1", "quiz-1")); err != domain.ErrActiveSessionExists {
		t.Fatalf("expected active session conflict, got %v", err)
	}
	// Other users and other quizzes are unaffected.
	if err := store.Create(ctx, newSession("s3", "u2", "quiz-1")); err != nil {
		t.Fatalf("create other user: %v", err)
	}
	if err := store.Create(ctx, newSession("s4", "u1", "quiz-2")); err != nil {
		t.Fatalf("create other quiz: %v", err)
	}

	// Completion frees the slot.
	if _, err := store.Complete(ctx, "s1", time.Now(), 30); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.Create(ctx, newSession("s5", "u1", "quiz-1")); err != nil {
		t.Fatalf("expected slot freed after completion, got %v", err)
	}
}

func TestSessionStoreRecordAnswerWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	if err := store.Create(ctx, newSession("s1", "u1", "quiz-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	record := domain.AnswerRecord{ID: "a1", SessionID: "s1", QuestionID: "q1", Selected: domain.OptionB, IsCorrect: true}
	session, err := store.RecordAnswer(ctx, record, 10)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if session.Score != 10 || session.CorrectAnswers != 1 {
		t.Fatalf("expected score 10 correct 1, got %+v", session)
	}

	if _, err := store.RecordAnswer(ctx, record, 10); err != domain.ErrDuplicateAnswer {
		t.Fatalf("expected duplicate answer error, got %v", err)
	}
	// The failed duplicate left the session untouched.
	session, _ = store.Get(ctx, "s1")
	if session.Score != 10 || session.CorrectAnswers != 1 {
		t.Fatalf("duplicate mutated the session: %+v", session)
	}

	answers, err := store.Answers(ctx, "s1")
	if err != nil || len(answers) != 1 {
		t.Fatalf("expected one answer, got %d err=%v", len(answers), err)
	}
}

func TestSessionStoreCompleteIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	if err := store.Create(ctx, newSession("s1", "u1", "quiz-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Complete(ctx, "s1", time.Now(), 12); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := store.Complete(ctx, "s1", time.Now(), 12); err != domain.ErrSessionNotActive {
		t.Fatalf("expected CAS failure on second complete, got %v", err)
	}
	rec := domain.AnswerRecord{ID: "a1", SessionID: "s1", QuestionID: "q1", Selected: domain.OptionA}
	if _, err := store.RecordAnswer(ctx, rec, 0); err != domain.ErrSessionNotActive {
		t.Fatalf("expected answers rejected on completed session, got %v", err)
	}
}

func TestSessionStoreExpireDue(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now()

	due := newSession("s1", "u1", "quiz-1")
	due.ExpiresAt = now.Add(-time.Minute)
	untimed := newSession("s2", "u1", "quiz-2")
	future := newSession("s3", "u1", "quiz-3")
	future.ExpiresAt = now.Add(time.Hour)
	for _, s := range []domain.Session{due, untimed, future} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("create %s: %v", s.ID, err)
		}
	}

	expired, err := store.ExpireDue(ctx, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "s1" {
		t.Fatalf("expected only s1 expired, got %+v", expired)
	}
	got, _ := store.Get(ctx, "s1")
	if got.Status != domain.StatusExpired {
		t.Fatalf("expected expired status, got %s", got.Status)
	}
	// The expired slot is free for a fresh start.
	if err := store.Create(ctx, newSession("s4", "u1", "quiz-1")); err != nil {
		t.Fatalf("expected slot freed after expiry, got %v", err)
	}
}
