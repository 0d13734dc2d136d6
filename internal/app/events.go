package app

import "quiz-battle-service/internal/domain"

// EventType names the state deltas a room broadcasts to its subscribers.
type EventType string

const (
	EventPlayerJoined   EventType = "player_joined"
	EventPlayerLeft     EventType = "player_left"
	EventHostChanged    EventType = "host_changed"
	EventGameStarted    EventType = "game_started"
	EventScoreUpdate    EventType = "score_update"
	EventQuestionResult EventType = "question_result"
	EventNextQuestion   EventType = "next_question"
	EventGameCompleted  EventType = "game_completed"
)

// Event is a broadcast state delta. Payloads are the JSON-tagged view types
// from the domain package.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

type HostChangedPayload struct {
	HostID string `json:"hostId"`
}

type ScoreUpdatePayload struct {
	Players []domain.PlayerView `json:"players"`
}

type GameCompletedPayload struct {
	Results []domain.RankedResult `json:"results"`
}
