package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"prepquiz-service/internal/app"
	"prepquiz-service/internal/domain"
)

// APIHandler exposes the session-scoring use cases as a JSON API. The caller's
// identity arrives in the X-User-ID header; authentication itself is handled
// upstream.
type APIHandler struct {
	service *app.SessionService
}

func NewAPIHandler(service *app.SessionService) *APIHandler {
	return &APIHandler{service: service}
}

func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /quizzes/{quizID}/start", h.startSession)
	mux.HandleFunc("GET /sessions/{sessionID}", h.getSession)
	mux.HandleFunc("POST /sessions/{sessionID}/answers", h.submitAnswer)
	mux.HandleFunc("POST /sessions/{sessionID}/submit", h.submitSession)
	mux.HandleFunc("GET /sessions/{sessionID}/results", h.results)
}

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (h *APIHandler) startSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	started, err := h.service.Start(r.Context(), userID, r.PathValue("quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "Quiz session started", Data: started})
}

func (h *APIHandler) getSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(r.Context(), r.PathValue("sessionID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: view})
}

type answerRequest struct {
	QuestionID     string `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
	TimeTaken      int    `json:"time_taken"`
	IsBookmarked   bool   `json:"is_bookmarked"`
}

func (h *APIHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Success: false, Message: "invalid request body"})
		return
	}
	if req.TimeTaken < 0 {
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Success: false, Message: "time_taken must not be negative"})
		return
	}
	result, err := h.service.SubmitAnswer(r.Context(), r.PathValue("sessionID"), userID, app.AnswerSubmission{
		QuestionID:       req.QuestionID,
		SelectedAnswer:   req.SelectedAnswer,
		TimeTakenSeconds: req.TimeTaken,
		Bookmarked:       req.IsBookmarked,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Answer submitted successfully", Data: result})
}

func (h *APIHandler) submitSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Submit(r.Context(), r.PathValue("sessionID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Quiz submitted successfully", Data: summary})
}

func (h *APIHandler) results(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	report, err := h.service.Results(r.Context(), r.PathValue("sessionID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: report})
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "missing X-User-ID header"})
		return "", false
	}
	return userID, true
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), envelope{Success: false, Message: err.Error()})
}

// statusFor maps the engine's error taxonomy onto transport status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrActiveSessionExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidOption):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrQuestionNotInQuiz),
		errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrDuplicateAnswer):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
