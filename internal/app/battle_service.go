package app

import (
	"context"
	"time"

	"quiz-battle-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultStore persists final rankings. The engine calls it fire-and-forget and
// never blocks gameplay on it.
type ResultStore interface {
	SaveResults(ctx context.Context, code, quizID string, results []domain.RankedResult) error
}

// Settings are the engine-wide defaults applied to every room.
type Settings struct {
	QuestionTime       time.Duration
	Scoring            domain.ScoringPolicy
	CodeLength         int
	WaitingTTL         time.Duration
	CompletedRetention time.Duration
	DisconnectGrace    time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.QuestionTime <= 0 {
		s.QuestionTime = 20 * time.Second
	}
	if s.Scoring == "" {
		s.Scoring = domain.PolicyFloorHalf
	}
	if s.CodeLength <= 0 {
		s.CodeLength = defaultCodeLength
	}
	if s.WaitingTTL <= 0 {
		s.WaitingTTL = 15 * time.Minute
	}
	if s.CompletedRetention <= 0 {
		s.CompletedRetention = 5 * time.Minute
	}
	if s.DisconnectGrace <= 0 {
		s.DisconnectGrace = 10 * time.Second
	}
	return s
}

// BattleService contains the quiz-battle use cases. It routes every call to
// the owning room's serial queue; rooms never share state with each other.
type BattleService struct {
	registry *Registry
	quizzes  QuizRepository
}

func NewBattleService(store RoomStore, quizzes QuizRepository, results ResultStore, settings Settings) *BattleService {
	settings = settings.withDefaults()
	cfg := RoomConfig{
		QuestionTime:       settings.QuestionTime,
		Scoring:            settings.Scoring,
		WaitingTTL:         settings.WaitingTTL,
		CompletedRetention: settings.CompletedRetention,
		DisconnectGrace:    settings.DisconnectGrace,
	}
	return &BattleService{
		registry: NewRegistry(store, cfg, settings.CodeLength, results),
		quizzes:  quizzes,
	}
}

// CreateRoom opens a waiting room for the quiz and seats the creator as host.
// The quiz must exist; rooms for unknown quizzes are never created.
func (s *BattleService) CreateRoom(ctx context.Context, quizID, hostID, hostName string) (domain.RoomSnapshot, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.RoomSnapshot{}, err
	}
	room := s.registry.Create(quizID)
	return room.Join(hostID, hostName)
}

// CreateRoomAndSubscribe opens a room, seats the creator as host and returns
// their event stream in one step.
func (s *BattleService) CreateRoomAndSubscribe(ctx context.Context, quizID, hostID, hostName string) (domain.RoomSnapshot, <-chan Event, func(), error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.RoomSnapshot{}, nil, nil, err
	}
	room := s.registry.Create(quizID)
	return room.JoinAndSubscribe(hostID, hostName)
}

// Join seats a player in a room, idempotently for already-known player IDs.
func (s *BattleService) Join(ctx context.Context, code, playerID, name string) (domain.RoomSnapshot, error) {
	room, err := s.registry.Find(code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.Join(playerID, name)
}

// JoinAndSubscribe seats a player and opens their event stream in one room
// command, so broadcasts fired right after the join cannot be missed.
func (s *BattleService) JoinAndSubscribe(ctx context.Context, code, playerID, name string) (domain.RoomSnapshot, <-chan Event, func(), error) {
	room, err := s.registry.Find(code)
	if err != nil {
		return domain.RoomSnapshot{}, nil, nil, err
	}
	return room.JoinAndSubscribe(playerID, name)
}

// Start begins the game. Host only; the question list is snapshotted from the
// quiz repository at this moment.
func (s *BattleService) Start(ctx context.Context, code, requesterID string) error {
	room, err := s.registry.Find(code)
	if err != nil {
		return err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, room.QuizID())
	if err != nil {
		return err
	}
	if len(quiz.Questions) == 0 {
		return domain.ErrEmptyQuiz
	}
	return room.Start(requesterID, quiz)
}

// SubmitAnswer scores one answer for the in-flight question.
func (s *BattleService) SubmitAnswer(ctx context.Context, code, playerID, questionID, optionID string, timeSpent time.Duration) (domain.AnswerResult, error) {
	room, err := s.registry.Find(code)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return room.SubmitAnswer(playerID, questionID, optionID, timeSpent)
}

// Leave removes a player immediately (no grace window).
func (s *BattleService) Leave(ctx context.Context, code, playerID string) {
	room, err := s.registry.Find(code)
	if err != nil {
		return
	}
	_ = room.Leave(playerID)
}

// Disconnect begins the grace window that converts a dropped connection into
// a leave unless the player reconnects first.
func (s *BattleService) Disconnect(ctx context.Context, code, playerID string) {
	room, err := s.registry.Find(code)
	if err != nil {
		return
	}
	room.Disconnect(playerID)
}

// CurrentQuestion is the reconnect projection; it reads the room without
// mutating it.
func (s *BattleService) CurrentQuestion(ctx context.Context, code, playerID string) (domain.QuestionProgress, error) {
	room, err := s.registry.Find(code)
	if err != nil {
		return domain.QuestionProgress{}, err
	}
	return room.CurrentQuestion(playerID)
}

// Snapshot returns a room's public state.
func (s *BattleService) Snapshot(ctx context.Context, code string) (domain.RoomSnapshot, error) {
	room, err := s.registry.Find(code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.Snapshot()
}

// Subscribe returns a channel of room events. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *BattleService) Subscribe(ctx context.Context, code string) (<-chan Event, func(), error) {
	room, err := s.registry.Find(code)
	if err != nil {
		return nil, nil, err
	}
	return room.Subscribe()
}
