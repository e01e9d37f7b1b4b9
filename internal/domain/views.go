package domain

import "time"

// Per-question advisory time limit surfaced on rendered questions.
const QuestionTimeLimitSeconds = 60

// QuestionView renders a question for a client, without the answer key.
type QuestionView struct {
	ID             string `json:"id"`
	QuestionNumber int    `json:"question_number"`
	Text           string `json:"question_text"`
	OptionA        string `json:"option_a"`
	OptionB        string `json:"option_b"`
	OptionC        string `json:"option_c"`
	OptionD        string `json:"option_d"`
	TimeLimit      int    `json:"time_limit"`
}

// RenderQuestion builds the answer-key-free view of a question.
func RenderQuestion(q Question, number int) *QuestionView {
	return &QuestionView{
		ID:             q.ID,
		QuestionNumber: number,
		Text:           q.Text,
		OptionA:        q.OptionA,
		OptionB:        q.OptionB,
		OptionC:        q.OptionC,
		OptionD:        q.OptionD,
		TimeLimit:      QuestionTimeLimitSeconds,
	}
}

// QuizSummary is the quiz header echoed back when a session starts.
type QuizSummary struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	TimeLimit      int     `json:"time_limit"`
	TotalQuestions int     `json:"total_questions"`
	PassingScore   float64 `json:"passing_score"`
}

// StartResult is returned by starting a session.
type StartResult struct {
	SessionID     string        `json:"session_id"`
	Quiz          QuizSummary   `json:"quiz"`
	StartedAt     time.Time     `json:"started_at"`
	ExpiresAt     *time.Time    `json:"expires_at"`
	FirstQuestion *QuestionView `json:"first_question"`
}

// SessionView is the polling view of an in-flight (or finished) session.
type SessionView struct {
	SessionID             string        `json:"session_id"`
	Status                SessionStatus `json:"status"`
	CurrentQuestionNumber int           `json:"current_question_number"`
	TotalQuestions        int           `json:"total_questions"`
	TimeRemaining         *int          `json:"time_remaining"` // seconds; nil when untimed
	Score                 int           `json:"score"`
	CurrentQuestion       *QuestionView `json:"current_question"`
	AnsweredQuestions     []string      `json:"answered_questions"`
	BookmarkedQuestions   []string      `json:"bookmarked_questions"`
}

// AnswerResult reveals the outcome of one submitted answer. The correct answer
// and explanation are safe to expose here: the answer is already locked in.
type AnswerResult struct {
	IsCorrect     bool          `json:"is_correct"`
	CorrectAnswer AnswerOption  `json:"correct_answer"`
	Explanation   string        `json:"explanation"`
	PointsEarned  int           `json:"points_earned"`
	CurrentScore  int           `json:"current_score"`
	NextQuestion  *QuestionView `json:"next_question"`
	IsCompleted   bool          `json:"is_completed"`
}

// SessionSummary is the final report of a completed session.
// AchievementsUnlocked is reserved and always empty here.
type SessionSummary struct {
	SessionID            string   `json:"session_id"`
	FinalScore           int      `json:"final_score"`
	TotalQuestions       int      `json:"total_questions"`
	CorrectAnswers       int      `json:"correct_answers"`
	TimeTaken            int      `json:"time_taken"`
	Percentage           float64  `json:"percentage"`
	Passed               bool     `json:"passed"`
	ExperienceGained     int      `json:"experience_gained"`
	NewLevel             int      `json:"new_level"`
	LevelUp              bool     `json:"level_up"`
	AchievementsUnlocked []string `json:"achievements_unlocked"`
}

// AnswerBreakdown is one row of the post-hoc per-question analysis.
type AnswerBreakdown struct {
	QuestionID    string       `json:"question_id"`
	QuestionText  string       `json:"question_text"`
	Selected      AnswerOption `json:"selected_answer"`
	CorrectAnswer AnswerOption `json:"correct_answer"`
	IsCorrect     bool         `json:"is_correct"`
	TimeTaken     int          `json:"time_taken"`
	Explanation   string       `json:"explanation"`
	IsBookmarked  bool         `json:"is_bookmarked"`
}

// SubjectPerformance aggregates accuracy for one subject within a session.
type SubjectPerformance struct {
	SubjectID          string  `json:"subject_id"`
	SubjectName        string  `json:"subject_name"`
	QuestionsAttempted int     `json:"questions_attempted"`
	CorrectAnswers     int     `json:"correct_answers"`
	Accuracy           float64 `json:"accuracy"`
}

// ResultsReport is the detailed results view of a session.
type ResultsReport struct {
	SessionSummary   ResultsSummary       `json:"session_summary"`
	QuestionAnalysis []AnswerBreakdown    `json:"question_analysis"`
	SubjectWise      []SubjectPerformance `json:"subject_wise_performance"`
}

// ResultsSummary heads the results report.
type ResultsSummary struct {
	QuizTitle  string  `json:"quiz_title"`
	FinalScore int     `json:"final_score"`
	Percentage float64 `json:"percentage"`
	TimeTaken  int     `json:"time_taken"`
}
