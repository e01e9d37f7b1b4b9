package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketSessionFlow(t *testing.T) {
	wsHandler := NewWSHandler(newTestService(t))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1&userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Connecting starts the session.
	_, payload := readNext(conn, t, "started")
	first, ok := payload["first_question"].(map[string]any)
	if !ok || first["id"] != "q1" {
		t.Fatalf("expected first question in started frame, got %v", payload)
	}

	// Question order is advisory: answering q2 before q1 is accepted.
	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"question_id":     "q2",
			"selected_answer": "C",
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_, payload = readNext(conn, t, "answerResult")
	if payload["is_correct"] != true || payload["is_completed"] != false {
		t.Fatalf("unexpected answer result: %v", payload)
	}

	// q1 is the last unanswered question, so the results frame follows the
	// graded answer.
	answer["payload"].(map[string]any)["question_id"] = "q1"
	answer["payload"].(map[string]any)["selected_answer"] = "B"
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer 2: %v", err)
	}
	_, payload = readNext(conn, t, "answerResult")
	if payload["is_completed"] != true {
		t.Fatalf("expected completion, got %v", payload)
	}
	_, payload = readNext(conn, t, "results")
	summary, ok := payload["session_summary"].(map[string]any)
	if !ok || summary["final_score"].(float64) != 20 {
		t.Fatalf("expected final score 20 in results, got %v", payload)
	}
}

func TestWebSocketRejectsSecondSession(t *testing.T) {
	wsHandler := NewWSHandler(newTestService(t))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1&userId=u1"
	first, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer first.Close()
	readNext(first, t, "started")

	second, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()
	readNext(second, t, "error")
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}
