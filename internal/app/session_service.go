package app

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"prepquiz-service/internal/domain"
	"prepquiz-service/internal/progression"
)

// Catalog loads quiz and question content (from cache/backing store). It is
// read-only to this engine; the engine never performs joins of its own.
type Catalog interface {
	Quiz(ctx context.Context, quizID string) (domain.Quiz, error)
	Question(ctx context.Context, questionID string) (domain.Question, error)
}

// SessionStore persists sessions and their write-once answer log. Mutations
// are atomic: Create enforces the single-active-session invariant, RecordAnswer
// rejects duplicates and applies score increments in one step, and Complete is
// a compare-and-swap of in_progress into completed.
type SessionStore interface {
	Create(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, sessionID string) (domain.Session, error)
	RecordAnswer(ctx context.Context, record domain.AnswerRecord, points int) (domain.Session, error)
	Answers(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error)
	Complete(ctx context.Context, sessionID string, completedAt time.Time, timeTaken int) (domain.Session, error)
	ExpireDue(ctx context.Context, now time.Time) ([]domain.Session, error)
}

// ProgressionStore applies progression updates atomically; the update function
// runs under the store's ownership of the record so experience, level and
// streak change together or not at all.
type ProgressionStore interface {
	Get(ctx context.Context, userID string) (domain.Progression, error)
	Apply(ctx context.Context, userID string, update func(domain.Progression) domain.Progression) (domain.Progression, error)
}

// SessionService contains the session-scoring use cases: lifecycle, answer
// processing, progression hand-off and results aggregation.
type SessionService struct {
	catalog  Catalog
	sessions SessionStore
	progress ProgressionStore
	now      func() time.Time
}

func NewSessionService(catalog Catalog, sessions SessionStore, progress ProgressionStore) *SessionService {
	return NewSessionServiceWithClock(catalog, sessions, progress, time.Now)
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(catalog Catalog, sessions SessionStore, progress ProgressionStore, now func() time.Time) *SessionService {
	return &SessionService{catalog: catalog, sessions: sessions, progress: progress, now: now}
}

// Start opens a new session for (user, quiz). At most one in_progress session
// may exist per pair; the store's check-then-create is atomic, so a concurrent
// second Start loses with ErrActiveSessionExists.
func (s *SessionService) Start(ctx context.Context, userID, quizID string) (domain.StartResult, error) {
	quiz, err := s.catalog.Quiz(ctx, quizID)
	if err != nil {
		return domain.StartResult{}, err
	}

	startedAt := s.now()
	session := domain.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		QuizID:         quizID,
		Status:         domain.StatusInProgress,
		TotalQuestions: quiz.TotalQuestions,
		StartedAt:      startedAt,
	}
	var expiresAt *time.Time
	if quiz.TimeLimitMinutes > 0 {
		t := startedAt.Add(time.Duration(quiz.TimeLimitMinutes) * time.Minute)
		session.ExpiresAt = t
		expiresAt = &t
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.StartResult{}, err
	}

	first, err := s.questionAt(ctx, quiz, 0)
	if err != nil {
		// The quiz references a question the catalog cannot serve. Close the
		// just-created session so the (user, quiz) slot is not held until the
		// sweep gets to it.
		_, _ = s.sessions.Complete(ctx, session.ID, s.now(), 0)
		return domain.StartResult{}, err
	}

	return domain.StartResult{
		SessionID: session.ID,
		Quiz: domain.QuizSummary{
			ID:             quiz.ID,
			Title:          quiz.Title,
			TimeLimit:      quiz.TimeLimitMinutes,
			TotalQuestions: quiz.TotalQuestions,
			PassingScore:   quiz.PassingScore,
		},
		StartedAt:     startedAt,
		ExpiresAt:     expiresAt,
		FirstQuestion: first,
	}, nil
}

// Get returns the current state of a session for polling clients. Expiry is
// not evaluated here; the sweep owns status transitions, Get only reports the
// advisory time remaining.
func (s *SessionService) Get(ctx context.Context, sessionID, userID string) (domain.SessionView, error) {
	session, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return domain.SessionView{}, err
	}
	quiz, err := s.catalog.Quiz(ctx, session.QuizID)
	if err != nil {
		return domain.SessionView{}, err
	}
	answers, err := s.sessions.Answers(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}

	answered := make([]string, 0, len(answers))
	bookmarked := make([]string, 0)
	for _, a := range answers {
		answered = append(answered, a.QuestionID)
		if a.Bookmarked {
			bookmarked = append(bookmarked, a.QuestionID)
		}
	}

	currentNumber := len(answers) + 1
	var current *domain.QuestionView
	if currentNumber <= session.TotalQuestions {
		current, err = s.questionAt(ctx, quiz, len(answers))
		if err != nil {
			return domain.SessionView{}, err
		}
	}

	var remaining *int
	if !session.ExpiresAt.IsZero() {
		secs := int(session.ExpiresAt.Sub(s.now()).Seconds())
		if secs < 0 {
			secs = 0
		}
		remaining = &secs
	}

	return domain.SessionView{
		SessionID:             session.ID,
		Status:                session.Status,
		CurrentQuestionNumber: currentNumber,
		TotalQuestions:        session.TotalQuestions,
		TimeRemaining:         remaining,
		Score:                 session.Score,
		CurrentQuestion:       current,
		AnsweredQuestions:     answered,
		BookmarkedQuestions:   bookmarked,
	}, nil
}

// AnswerSubmission is one answer coming in from a client.
type AnswerSubmission struct {
	QuestionID       string
	SelectedAnswer   string
	TimeTakenSeconds int
	Bookmarked       bool
}

// SubmitAnswer grades and records one answer. The answer is write-once; the
// correct answer and explanation are revealed only in the result, after the
// record is locked in. Completing the last question transitions the session
// and runs the progression engine before returning.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID, userID string, sub AnswerSubmission) (domain.AnswerResult, error) {
	session, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if session.Status != domain.StatusInProgress {
		return domain.AnswerResult{}, domain.ErrSessionNotActive
	}
	selected, err := domain.ParseAnswerOption(sub.SelectedAnswer)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	quiz, err := s.catalog.Quiz(ctx, session.QuizID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if !quizContains(quiz, sub.QuestionID) {
		return domain.AnswerResult{}, domain.ErrQuestionNotInQuiz
	}
	question, err := s.catalog.Question(ctx, sub.QuestionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	isCorrect := question.IsCorrect(selected)
	points := 0
	if isCorrect {
		points = 10
	}

	session, err = s.sessions.RecordAnswer(ctx, domain.AnswerRecord{
		ID:               uuid.NewString(),
		SessionID:        session.ID,
		QuestionID:       question.ID,
		Selected:         selected,
		IsCorrect:        isCorrect,
		TimeTakenSeconds: sub.TimeTakenSeconds,
		Bookmarked:       sub.Bookmarked,
	}, points)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	answers, err := s.sessions.Answers(ctx, sessionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	isCompleted := len(answers) >= session.TotalQuestions

	var next *domain.QuestionView
	if isCompleted {
		if _, err := s.complete(ctx, session); err != nil {
			return domain.AnswerResult{}, err
		}
	} else {
		next, err = s.questionAt(ctx, quiz, len(answers))
		if err != nil {
			return domain.AnswerResult{}, err
		}
	}

	return domain.AnswerResult{
		IsCorrect:     isCorrect,
		CorrectAnswer: question.Correct,
		Explanation:   question.Explanation,
		PointsEarned:  points,
		CurrentScore:  session.Score,
		NextQuestion:  next,
		IsCompleted:   isCompleted,
	}, nil
}

// Submit ends a session early. Unanswered questions simply score nothing; the
// percentage is still computed over the full question count.
func (s *SessionService) Submit(ctx context.Context, sessionID, userID string) (domain.SessionSummary, error) {
	session, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	if session.Status != domain.StatusInProgress {
		return domain.SessionSummary{}, domain.ErrSessionNotActive
	}

	outcome, err := s.complete(ctx, session)
	if err != nil {
		return domain.SessionSummary{}, err
	}

	quiz, err := s.catalog.Quiz(ctx, session.QuizID)
	if err != nil {
		return domain.SessionSummary{}, err
	}

	session = outcome.session
	percentage := session.Percentage()
	return domain.SessionSummary{
		SessionID:            session.ID,
		FinalScore:           session.Score,
		TotalQuestions:       session.TotalQuestions,
		CorrectAnswers:       session.CorrectAnswers,
		TimeTaken:            session.TimeTakenSeconds,
		Percentage:           percentage,
		Passed:               percentage >= quiz.PassingScore,
		ExperienceGained:     outcome.experienceGained,
		NewLevel:             outcome.newLevel,
		LevelUp:              outcome.levelUp,
		AchievementsUnlocked: []string{},
	}, nil
}

// Results assembles the post-hoc report from the session's answer log.
func (s *SessionService) Results(ctx context.Context, sessionID, userID string) (domain.ResultsReport, error) {
	session, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return domain.ResultsReport{}, err
	}
	quiz, err := s.catalog.Quiz(ctx, session.QuizID)
	if err != nil {
		return domain.ResultsReport{}, err
	}
	answers, err := s.sessions.Answers(ctx, sessionID)
	if err != nil {
		return domain.ResultsReport{}, err
	}

	analysis := make([]domain.AnswerBreakdown, 0, len(answers))
	type subjectAgg struct {
		name    string
		total   int
		correct int
	}
	subjectOrder := make([]string, 0)
	subjects := make(map[string]*subjectAgg)

	for _, a := range answers {
		question, err := s.catalog.Question(ctx, a.QuestionID)
		if err != nil {
			return domain.ResultsReport{}, err
		}
		analysis = append(analysis, domain.AnswerBreakdown{
			QuestionID:    question.ID,
			QuestionText:  question.Text,
			Selected:      a.Selected,
			CorrectAnswer: question.Correct,
			IsCorrect:     a.IsCorrect,
			TimeTaken:     a.TimeTakenSeconds,
			Explanation:   question.Explanation,
			IsBookmarked:  a.Bookmarked,
		})

		agg, ok := subjects[question.SubjectID]
		if !ok {
			agg = &subjectAgg{name: question.SubjectName}
			subjects[question.SubjectID] = agg
			subjectOrder = append(subjectOrder, question.SubjectID)
		}
		agg.total++
		if a.IsCorrect {
			agg.correct++
		}
	}

	perSubject := make([]domain.SubjectPerformance, 0, len(subjectOrder))
	for _, id := range subjectOrder {
		agg := subjects[id]
		accuracy := 0.0
		if agg.total > 0 {
			accuracy = math.Round(float64(agg.correct)/float64(agg.total)*100*10) / 10
		}
		perSubject = append(perSubject, domain.SubjectPerformance{
			SubjectID:          id,
			SubjectName:        agg.name,
			QuestionsAttempted: agg.total,
			CorrectAnswers:     agg.correct,
			Accuracy:           accuracy,
		})
	}

	return domain.ResultsReport{
		SessionSummary: domain.ResultsSummary{
			QuizTitle:  quiz.Title,
			FinalScore: session.Score,
			Percentage: session.Percentage(),
			TimeTaken:  session.TimeTakenSeconds,
		},
		QuestionAnalysis: analysis,
		SubjectWise:      perSubject,
	}, nil
}

// ExpireDue transitions every in_progress session whose deadline has passed to
// expired. Invoked by the periodic sweep, never inline with user requests.
// Expired sessions earn no progression.
func (s *SessionService) ExpireDue(ctx context.Context) (int, error) {
	expired, err := s.sessions.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}

type completionOutcome struct {
	session          domain.Session
	experienceGained int
	newLevel         int
	levelUp          bool
}

// complete performs the in_progress -> completed transition and, when this
// call wins the compare-and-swap, runs the progression engine exactly once.
func (s *SessionService) complete(ctx context.Context, session domain.Session) (completionOutcome, error) {
	completedAt := s.now()
	timeTaken := int(completedAt.Sub(session.StartedAt).Seconds())

	updated, err := s.sessions.Complete(ctx, session.ID, completedAt, timeTaken)
	if errors.Is(err, domain.ErrSessionNotActive) {
		// Lost the completion race; the winner already ran progression.
		current, getErr := s.sessions.Get(ctx, session.ID)
		if getErr != nil {
			return completionOutcome{}, getErr
		}
		prog, getErr := s.progress.Get(ctx, session.UserID)
		if getErr != nil {
			return completionOutcome{}, getErr
		}
		return completionOutcome{session: current, newLevel: prog.Level}, nil
	}
	if err != nil {
		return completionOutcome{}, err
	}

	outcome := completionOutcome{session: updated}
	_, err = s.progress.Apply(ctx, updated.UserID, func(p domain.Progression) domain.Progression {
		next, gained, levelUp := progression.Apply(p, updated.CorrectAnswers, updated.TotalQuestions, completedAt)
		outcome.experienceGained = gained
		outcome.newLevel = next.Level
		outcome.levelUp = levelUp
		return next
	})
	if err != nil {
		return completionOutcome{}, err
	}
	return outcome, nil
}

func (s *SessionService) owned(ctx context.Context, sessionID, userID string) (domain.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.UserID != userID {
		return domain.Session{}, domain.ErrForbidden
	}
	return session, nil
}

// questionAt resolves the question at the given zero-based position in the
// quiz's declared order. Answer order is advisory: the position is the count
// of answers given so far, not a per-question cursor.
func (s *SessionService) questionAt(ctx context.Context, quiz domain.Quiz, index int) (*domain.QuestionView, error) {
	refs := orderedRefs(quiz)
	if index < 0 || index >= len(refs) {
		return nil, nil
	}
	question, err := s.catalog.Question(ctx, refs[index].QuestionID)
	if err != nil {
		return nil, err
	}
	return domain.RenderQuestion(question, index+1), nil
}

func orderedRefs(quiz domain.Quiz) []domain.QuestionRef {
	refs := make([]domain.QuestionRef, len(quiz.Questions))
	copy(refs, quiz.Questions)
	sort.Slice(refs, func(i, j int) bool { return refs[i].OrderNumber < refs[j].OrderNumber })
	return refs
}

func quizContains(quiz domain.Quiz, questionID string) bool {
	for _, ref := range quiz.Questions {
		if ref.QuestionID == questionID {
			return true
		}
	}
	return false
}
