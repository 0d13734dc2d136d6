package domain

import "time"

// RoomStatus is the lifecycle phase of a battle room. It only moves forward.
type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomActive    RoomStatus = "active"
	RoomCompleted RoomStatus = "completed"
)

// ScoringPolicy selects how correct answers are rewarded for speed.
// Both formulas exist upstream; the caller picks one, we never unify them.
type ScoringPolicy string

const (
	// PolicyFullDecay lets the time factor decay to zero: a correct answer
	// at the buzzer can still earn nothing.
	PolicyFullDecay ScoringPolicy = "full_decay"
	// PolicyFloorHalf guarantees a correct answer at least half of the base
	// points regardless of speed.
	PolicyFloorHalf ScoringPolicy = "floor_half"
)

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
	Points  int      `json:"points"` // defaults to 1 if zero
}

// Quiz is an ordered collection of questions. TimeLimitSec, when set, is a
// whole-quiz budget that gets divided evenly across questions.
type Quiz struct {
	ID           string     `json:"id"`
	Questions    []Question `json:"questions"`
	TimeLimitSec int        `json:"timeLimitSec,omitempty"`
}

// OptionView is an Option with the correct flag stripped for broadcast.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the client-facing projection of a Question. It never
// carries correctness information.
type QuestionView struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Options []OptionView `json:"options"`
	Points  int          `json:"points"`
}

// View strips the correct-option flags so a question can be broadcast.
func (q Question) View() QuestionView {
	opts := make([]OptionView, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, OptionView{ID: o.ID, Text: o.Text})
	}
	return QuestionView{ID: q.ID, Prompt: q.Prompt, Options: opts, Points: q.BasePoints()}
}

// BasePoints returns the question's point value, defaulting to 1.
func (q Question) BasePoints() int {
	if q.Points > 0 {
		return q.Points
	}
	return 1
}

// CorrectOptionID returns the ID of the first option flagged correct.
func (q Question) CorrectOptionID() string {
	for _, o := range q.Options {
		if o.Correct {
			return o.ID
		}
	}
	return ""
}

// AnswerRecord is one player's submission for one question, including the
// zero-point entries recorded when a deadline passes without an answer.
type AnswerRecord struct {
	QuestionID string        `json:"questionId"`
	OptionID   string        `json:"optionId"`
	Correct    bool          `json:"correct"`
	Points     int           `json:"points"`
	TimeSpent  time.Duration `json:"timeSpent"`
}

// AnswerResult is the private acknowledgement sent back to a submitter.
type AnswerResult struct {
	QuestionID      string `json:"questionId"`
	Correct         bool   `json:"correct"`
	CorrectOptionID string `json:"correctOptionId"`
	Awarded         int    `json:"awarded"`
	TotalScore      int    `json:"totalScore"`
}

// PlayerView is the broadcast-safe projection of a room member.
type PlayerView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
	Score       int    `json:"score"`
}

// RoomSnapshot captures a room's public state at a point in time.
type RoomSnapshot struct {
	Code           string       `json:"code"`
	QuizID         string       `json:"quizId"`
	HostID         string       `json:"hostId"`
	Status         RoomStatus   `json:"status"`
	Players        []PlayerView `json:"players"`
	QuestionNumber int          `json:"questionNumber,omitempty"` // 1-based, active rooms only
	TotalQuestions int          `json:"totalQuestions,omitempty"`
}

// QuestionStart announces a new in-flight question to the room.
type QuestionStart struct {
	Question       QuestionView `json:"question"`
	QuestionNumber int          `json:"questionNumber"`
	TotalQuestions int          `json:"totalQuestions"`
	TimeLimitMs    int64        `json:"timeLimitMs"`
}

// QuestionProgress is the read-only reconnect projection: the in-flight
// question without its answer, plus position within the quiz.
type QuestionProgress struct {
	Question       QuestionView `json:"question"`
	QuestionNumber int          `json:"questionNumber"`
	TotalQuestions int          `json:"totalQuestions"`
	TimeLeftMs     int64        `json:"timeLeftMs"`
}

// AnswerOutcome is the per-player slice of a settled question.
type AnswerOutcome struct {
	PlayerID string `json:"playerId"`
	OptionID string `json:"optionId"`
	Correct  bool   `json:"correct"`
	Points   int    `json:"points"`
}

// QuestionResult reveals the correct answer and everyone's outcome once a
// question settles.
type QuestionResult struct {
	QuestionID      string          `json:"questionId"`
	CorrectOptionID string          `json:"correctOptionId"`
	Answers         []AnswerOutcome `json:"answers"`
}

// RankedResult is one row of the final leaderboard.
type RankedResult struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Correct     int    `json:"correct"`
}
