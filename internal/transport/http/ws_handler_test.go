package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	service := app.NewBattleService(memory.NewRoomStore(), quizzes, memory.NewResultStore(), app.Settings{
		QuestionTime: 10 * time.Second,
	})
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", query, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketBattleFlow(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server, "quizId=quiz-1&playerId=p1&name=Alice")

	created := readUntil(host, t, "room_created")
	code, _ := created["code"].(string)
	if code == "" {
		t.Fatalf("expected room code, got %v", created)
	}
	readUntil(host, t, "joined")

	guest := dial(t, server, "code="+code+"&playerId=p2&name=Bob")
	joined := readUntil(guest, t, "joined")
	room, _ := joined["room"].(map[string]any)
	if room == nil || room["status"] != string(domain.RoomWaiting) {
		t.Fatalf("expected waiting room in join ack, got %v", joined)
	}

	// Host sees the guest arrive.
	readUntil(host, t, "player_joined")

	if err := host.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	started := readUntil(guest, t, "game_started")
	question, _ := started["question"].(map[string]any)
	if question == nil || question["id"] != "q1" {
		t.Fatalf("expected q1 broadcast, got %v", started)
	}
	if opts, ok := question["options"].([]any); ok {
		for _, raw := range opts {
			if opt, ok := raw.(map[string]any); ok {
				if _, leaked := opt["correct"]; leaked {
					t.Fatalf("broadcast question leaked correctness: %v", opt)
				}
			}
		}
	}
	readUntil(host, t, "game_started")

	if err := host.WriteJSON(map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": "q1", "optionId": "o2", "timeSpentMs": 1500},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	result := readUntil(host, t, "answer_result")
	if result["correct"] != true {
		t.Fatalf("expected correct answer ack, got %v", result)
	}

	// The guest can re-fetch the in-flight question (reconnect projection).
	if err := guest.WriteJSON(map[string]any{"type": "question"}); err != nil {
		t.Fatalf("write question request: %v", err)
	}
	progress := readUntil(guest, t, "current_question")
	if progress["questionNumber"] != float64(1) {
		t.Fatalf("expected question 1, got %v", progress)
	}
}

func TestWebSocketRejectsUnknownRoom(t *testing.T) {
	server := newTestServer(t)

	conn := dial(t, server, "code=zzzzzz&playerId=p1&name=Alice")
	msg := readUntil(conn, t, "error")
	if msg["message"] == "" {
		t.Fatalf("expected error message, got %v", msg)
	}
}

func TestSendOrDropAbortsWhenWriterGone(t *testing.T) {
	send := make(chan outboundMessage, 1)
	writerDone := make(chan struct{})

	if !sendOrDrop(send, writerDone, outboundMessage{Type: "joined"}) {
		t.Fatalf("send with a live writer should succeed")
	}

	// Writer exited with the buffer full: the send must bail out instead of
	// blocking the read loop forever.
	close(writerDone)
	done := make(chan bool, 1)
	go func() { done <- sendOrDrop(send, writerDone, outboundMessage{Type: "error"}) }()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("send should report the writer is gone")
		}
	case <-time.After(time.Second):
		t.Fatalf("send blocked with no writer draining the channel")
	}
}

func readUntil(conn *websocket.Conn, t *testing.T, want string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json while waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
	t.Fatalf("gave up waiting for %s", want)
	return nil
}

func sampleQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
					Points: 100,
				},
				{
					ID:     "q2",
					Prompt: "What is 3 * 3?",
					Options: []domain.Option{
						{ID: "o1", Text: "9", Correct: true},
						{ID: "o2", Text: "6", Correct: false},
					},
					Points: 100,
				},
			},
		},
	}
}
