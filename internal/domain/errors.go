package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room code does not match a live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a player acts in a room they never joined.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrJoinRejected signals a genuinely new player trying to enter a room
	// whose game already started.
	ErrJoinRejected = errors.New("game already started, new players cannot join")
	// ErrNotAuthorized signals a non-host attempting a host-only action.
	ErrNotAuthorized = errors.New("only the host may do that")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz indicates a start attempt against a quiz with no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAlreadyAnswered rejects a second submission for the same question.
	ErrAlreadyAnswered = errors.New("answer already recorded for this question")
	// ErrQuestionClosed rejects submissions for a question that has settled.
	ErrQuestionClosed = errors.New("question is closed")
	// ErrGameNotStarted rejects gameplay actions while the room is waiting.
	ErrGameNotStarted = errors.New("game has not started")
	// ErrGameAlreadyStarted rejects a second start of the same room.
	ErrGameAlreadyStarted = errors.New("game already started")
	// ErrGameCompleted rejects mutation of a finished room.
	ErrGameCompleted = errors.New("game already completed")
)
