package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSHandler is the session gateway: it maps websocket events onto battle
// use cases and fans room broadcasts back out to the connection. Taxonomy
// errors are delivered to the offending client only; they never reach the
// rest of the room.
type WSHandler struct {
	service  *app.BattleService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.BattleService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID  string `json:"questionId"`
	OptionID    string `json:"optionId"`
	TimeSpentMs int64  `json:"timeSpentMs"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type roomCreatedPayload struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
}

type joinedPayload struct {
	PlayerID string              `json:"playerId"`
	Room     domain.RoomSnapshot `json:"room"`
}

// ServeWS upgrades the request and drives one player's session. The client
// either creates a room (?quizId=...) or joins one (?code=...); either way it
// must send a display name and may carry its own playerId for reconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	code := r.URL.Query().Get("code")
	playerID := r.URL.Query().Get("playerId")
	displayName := r.URL.Query().Get("name")
	if displayName == "" || (quizID == "" && code == "") {
		http.Error(w, "missing name and one of quizId or code", http.StatusBadRequest)
		return
	}
	if playerID == "" {
		playerID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var snap domain.RoomSnapshot
	var updates <-chan app.Event
	var cancel func()
	// Seat and subscription happen in one room command, so a broadcast fired
	// right after the join cannot slip past this client.
	if code == "" {
		snap, updates, cancel, err = h.service.CreateRoomAndSubscribe(ctx, quizID, playerID, displayName)
	} else {
		snap, updates, cancel, err = h.service.JoinAndSubscribe(ctx, code, playerID, displayName)
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	code = snap.Code
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case evt, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: string(evt.Type), Payload: evt.Payload}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			case <-writerDone:
				return
			}
		}
	}()

	if quizID != "" {
		sendOrDrop(send, writerDone, outboundMessage{Type: "room_created", Payload: roomCreatedPayload{Code: code, PlayerID: playerID}})
	}
	sendOrDrop(send, writerDone, outboundMessage{Type: "joined", Payload: joinedPayload{PlayerID: playerID, Room: snap}})

	left := h.readLoop(ctx, conn, send, writerDone, code, playerID)

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone

	if !left {
		// Dropped connection: give the player a grace window to come back
		// before their seat is released.
		h.service.Disconnect(ctx, code, playerID)
	}
}

// readLoop processes inbound messages until the connection drops or the
// client leaves explicitly. It reports whether an explicit leave happened.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, send chan<- outboundMessage, writerDone <-chan struct{}, code, playerID string) bool {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return false
		}
		switch inbound.Type {
		case "start":
			if err := h.service.Start(ctx, code, playerID); err != nil {
				if !sendOrDrop(send, writerDone, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}) {
					return false
				}
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				if !sendOrDrop(send, writerDone, outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}) {
					return false
				}
				continue
			}
			result, err := h.service.SubmitAnswer(ctx, code, playerID,
				payload.QuestionID, payload.OptionID, time.Duration(payload.TimeSpentMs)*time.Millisecond)
			if err != nil {
				if !sendOrDrop(send, writerDone, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}) {
					return false
				}
				continue
			}
			if !sendOrDrop(send, writerDone, outboundMessage{Type: "answer_result", Payload: result}) {
				return false
			}
		case "question":
			progress, err := h.service.CurrentQuestion(ctx, code, playerID)
			if err != nil {
				if !sendOrDrop(send, writerDone, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}) {
					return false
				}
				continue
			}
			if !sendOrDrop(send, writerDone, outboundMessage{Type: "current_question", Payload: progress}) {
				return false
			}
		case "leave":
			h.service.Leave(ctx, code, playerID)
			return true
		default:
			if !sendOrDrop(send, writerDone, outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}) {
				return false
			}
		}
	}
}

// sendOrDrop queues msg for the writer goroutine. It reports false once the
// writer has exited, so producers never block on a dead connection.
func sendOrDrop(send chan<- outboundMessage, writerDone <-chan struct{}, msg outboundMessage) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}
