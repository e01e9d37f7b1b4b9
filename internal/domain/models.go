package domain

import (
	"math"
	"strings"
	"time"
)

// AnswerOption is one of the four choice letters of an MCQ question.
type AnswerOption string

const (
	OptionA AnswerOption = "A"
	OptionB AnswerOption = "B"
	OptionC AnswerOption = "C"
	OptionD AnswerOption = "D"
)

// ParseAnswerOption normalizes a submitted letter; lowercase input is accepted.
func ParseAnswerOption(raw string) (AnswerOption, error) {
	switch AnswerOption(strings.ToUpper(strings.TrimSpace(raw))) {
	case OptionA:
		return OptionA, nil
	case OptionB:
		return OptionB, nil
	case OptionC:
		return OptionC, nil
	case OptionD:
		return OptionD, nil
	}
	return "", ErrInvalidOption
}

// Difficulty classifies a question.
type Difficulty string

const (
	DifficultyBasic        Difficulty = "basic"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Question is the catalog's answer-key record for one MCQ question. Only views
// derived from it leave the engine before an answer is locked in.
type Question struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	OptionA     string       `json:"option_a"`
	OptionB     string       `json:"option_b"`
	OptionC     string       `json:"option_c"`
	OptionD     string       `json:"option_d"`
	Correct     AnswerOption `json:"correct_answer"`
	Explanation string       `json:"explanation"`
	Difficulty  Difficulty   `json:"difficulty"`
	SubjectID   string       `json:"subject_id"`
	SubjectName string       `json:"subject_name"`
	TopicID     string       `json:"topic_id"`
}

// IsCorrect compares case-insensitively, matching how answers are graded.
func (q Question) IsCorrect(selected AnswerOption) bool {
	return strings.EqualFold(string(selected), string(q.Correct))
}

// QuestionRef ties a question into a quiz at a position. OrderNumber is unique
// and contiguous within a quiz, starting at 1.
type QuestionRef struct {
	QuestionID  string `json:"question_id"`
	OrderNumber int    `json:"order_number"`
}

// Quiz is a catalog quiz definition, immutable during a session.
type Quiz struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Questions        []QuestionRef `json:"questions"`
	TimeLimitMinutes int           `json:"time_limit_minutes"` // 0 means untimed
	TotalQuestions   int           `json:"total_questions"`
	PassingScore     float64       `json:"passing_score"` // percentage
}

// SessionStatus is the session state machine value:
// in_progress -> completed (last answer or explicit submit),
// in_progress -> expired (time-based sweep); both targets are terminal.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusExpired    SessionStatus = "expired"
)

// Session is one user's attempt at a quiz.
type Session struct {
	ID               string
	UserID           string
	QuizID           string
	Status           SessionStatus
	Score            int
	TotalQuestions   int // copied from the quiz at start time
	CorrectAnswers   int
	TimeTakenSeconds int
	StartedAt        time.Time
	ExpiresAt        time.Time // zero when the quiz is untimed
	CompletedAt      time.Time // zero until completed
}

// Percentage is correct/total as a percentage rounded to two decimals.
func (s Session) Percentage() float64 {
	if s.TotalQuestions == 0 {
		return 0
	}
	return math.Round(float64(s.CorrectAnswers)/float64(s.TotalQuestions)*100*100) / 100
}

// AnswerRecord is the immutable log entry for one submitted answer.
// At most one exists per (session, question).
type AnswerRecord struct {
	ID               string
	SessionID        string
	QuestionID       string
	Selected         AnswerOption
	IsCorrect        bool
	TimeTakenSeconds int
	Bookmarked       bool
}

// Progression is the per-user experience/level/streak state, updated only at
// session completion.
type Progression struct {
	UserID           string
	ExperiencePoints int
	Level            int
	DailyStreak      int
	LastQuizDate     time.Time // date precision; zero if the user never finished a quiz
}
