package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question ID is unknown to the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrForbidden is returned when a session does not belong to the caller.
	ErrForbidden = errors.New("unauthorized access to quiz session")
	// ErrActiveSessionExists is returned when the user already holds an
	// in-progress session for the quiz.
	ErrActiveSessionExists = errors.New("active session already exists for this quiz")
	// ErrSessionNotActive is returned by mutating operations on a completed or
	// expired session.
	ErrSessionNotActive = errors.New("quiz session is not active")
	// ErrDuplicateAnswer is returned when the question was already answered in
	// this session; answers are write-once.
	ErrDuplicateAnswer = errors.New("question already answered")
	// ErrInvalidOption indicates the selected answer is not A, B, C or D.
	ErrInvalidOption = errors.New("selected answer must be one of A, B, C, D")
	// ErrQuestionNotInQuiz indicates the question is not attached to the
	// session's quiz.
	ErrQuestionNotInQuiz = errors.New("question does not belong to this quiz")
	// ErrProgressionNotFound indicates the user's progression record is missing.
	ErrProgressionNotFound = errors.New("user progression not found")
)
