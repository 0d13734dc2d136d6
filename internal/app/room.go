package app

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// RoomConfig carries the per-room policy knobs.
type RoomConfig struct {
	QuestionTime       time.Duration
	Scoring            domain.ScoringPolicy
	WaitingTTL         time.Duration
	CompletedRetention time.Duration
	DisconnectGrace    time.Duration
}

// playerState is a room member. Owned exclusively by the room's run loop.
type playerState struct {
	id           string
	displayName  string
	isHost       bool
	score        int
	answers      []domain.AnswerRecord
	answered     map[int]bool
	connected    bool
	connEpoch    int
	lastScoredAt time.Time
	joinedAt     time.Time
}

// Room is one quiz-battle session. All mutation goes through a serial command
// queue consumed by a single goroutine, so transitions against one room are
// linearized in arrival order. Deadline expiry is a scheduled command posted
// into the same queue, which makes "deadline fired" and "last player answered"
// mutually exclusive settlement triggers.
type Room struct {
	code    string
	quizID  string
	cfg     RoomConfig
	results ResultStore
	onClose func(code string)
	now     func() time.Time

	cmds     chan func()
	quit     chan struct{}
	quitOnce sync.Once

	// Everything below is owned by the run loop.
	status      domain.RoomStatus
	hostID      string
	players     []*playerState
	byID        map[string]*playerState
	questions   []domain.Question
	current     int
	limit       time.Duration
	deadline    time.Time
	round       int // settlement guard: bumped whenever a question opens or closes
	timer       *time.Timer
	waitTimer   *time.Timer
	subscribers map[chan Event]struct{}
	createdAt   time.Time
}

func newRoom(code, quizID string, cfg RoomConfig, results ResultStore, now func() time.Time) *Room {
	return &Room{
		code:        code,
		quizID:      quizID,
		cfg:         cfg,
		results:     results,
		now:         now,
		cmds:        make(chan func()),
		quit:        make(chan struct{}),
		status:      domain.RoomWaiting,
		byID:        make(map[string]*playerState),
		subscribers: make(map[chan Event]struct{}),
		createdAt:   now(),
	}
}

// start spawns the run loop and arms the waiting-room expiry. Called once,
// after the room has been registered under its code.
func (r *Room) start() {
	if r.cfg.WaitingTTL > 0 {
		r.waitTimer = time.AfterFunc(r.cfg.WaitingTTL, func() {
			r.post(func() {
				if r.status == domain.RoomWaiting {
					r.destroy()
				}
			})
		})
	}
	go r.run()
}

// Code returns the room's join code.
func (r *Room) Code() string { return r.code }

// QuizID returns the quiz this room plays.
func (r *Room) QuizID() string { return r.quizID }

func (r *Room) run() {
	for {
		select {
		case fn := <-r.cmds:
			fn()
		case <-r.quit:
			// Run whatever was already queued so callers never hang.
			for {
				select {
				case fn := <-r.cmds:
					fn()
				default:
					for ch := range r.subscribers {
						delete(r.subscribers, ch)
						close(ch)
					}
					return
				}
			}
		}
	}
}

// exec runs fn on the room's loop and waits for it.
func (r *Room) exec(fn func()) error {
	done := make(chan struct{})
	select {
	case r.cmds <- func() { fn(); close(done) }:
		<-done
		return nil
	case <-r.quit:
		return domain.ErrRoomNotFound
	}
}

// post queues fn without waiting; used by timer callbacks.
func (r *Room) post(fn func()) {
	select {
	case r.cmds <- fn:
	case <-r.quit:
	}
}

// destroy tears the room down. Run-loop only.
func (r *Room) destroy() {
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.waitTimer != nil {
		r.waitTimer.Stop()
	}
	r.quitOnce.Do(func() { close(r.quit) })
	if r.onClose != nil {
		r.onClose(r.code)
	}
}

// Join adds a player, or refreshes an existing one (idempotent re-join: the
// player keeps their score and their single entry). New players are rejected
// once the game started.
func (r *Room) Join(playerID, displayName string) (domain.RoomSnapshot, error) {
	var snap domain.RoomSnapshot
	var joinErr error
	err := r.exec(func() {
		snap, joinErr = r.joinPlayer(playerID, displayName)
	})
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return snap, joinErr
}

// JoinAndSubscribe seats the player and registers their event listener in the
// same command, so no broadcast can slip between the seat and the stream.
func (r *Room) JoinAndSubscribe(playerID, displayName string) (domain.RoomSnapshot, <-chan Event, func(), error) {
	ch := make(chan Event, 16)
	var snap domain.RoomSnapshot
	var joinErr error
	err := r.exec(func() {
		snap, joinErr = r.joinPlayer(playerID, displayName)
		if joinErr == nil {
			r.subscribers[ch] = struct{}{}
		}
	})
	if err != nil {
		return domain.RoomSnapshot{}, nil, nil, err
	}
	if joinErr != nil {
		return domain.RoomSnapshot{}, nil, nil, joinErr
	}
	return snap, ch, r.unsubscribeFunc(ch), nil
}

// joinPlayer implements join semantics. Run-loop only.
func (r *Room) joinPlayer(playerID, displayName string) (domain.RoomSnapshot, error) {
	if p, ok := r.byID[playerID]; ok {
		p.connected = true
		p.connEpoch++
		if displayName != "" {
			p.displayName = displayName
		}
		return r.snapshot(), nil
	}
	switch r.status {
	case domain.RoomCompleted:
		return domain.RoomSnapshot{}, domain.ErrGameCompleted
	case domain.RoomActive:
		return domain.RoomSnapshot{}, domain.ErrJoinRejected
	}
	p := &playerState{
		id:          playerID,
		displayName: displayName,
		answered:    make(map[int]bool),
		connected:   true,
		joinedAt:    r.now(),
	}
	if len(r.players) == 0 {
		p.isHost = true
		r.hostID = p.id
	}
	r.players = append(r.players, p)
	r.byID[playerID] = p
	r.broadcast(Event{Type: EventPlayerJoined, Payload: r.playerView(p)})
	return r.snapshot(), nil
}

// Start moves the room to active and opens the first question. Host only.
// The question list is snapshotted here; later edits to the quiz cannot shift
// the cursor mid-game.
func (r *Room) Start(requesterID string, quiz domain.Quiz) error {
	var startErr error
	err := r.exec(func() {
		switch r.status {
		case domain.RoomActive:
			startErr = domain.ErrGameAlreadyStarted
			return
		case domain.RoomCompleted:
			startErr = domain.ErrGameCompleted
			return
		}
		if _, ok := r.byID[requesterID]; !ok {
			startErr = domain.ErrPlayerNotFound
			return
		}
		if requesterID != r.hostID {
			startErr = domain.ErrNotAuthorized
			return
		}
		if len(quiz.Questions) == 0 {
			startErr = domain.ErrEmptyQuiz
			return
		}

		r.questions = snapshotQuestions(quiz.Questions)
		r.limit = questionLimit(quiz, r.cfg.QuestionTime)
		r.status = domain.RoomActive
		if r.waitTimer != nil {
			r.waitTimer.Stop()
		}
		r.current = 0
		r.openQuestion(EventGameStarted)
	})
	if err != nil {
		return err
	}
	return startErr
}

// SubmitAnswer records one answer for the in-flight question and settles the
// question if everyone has now answered. One submission per player per
// question; late submissions for settled questions are rejected.
func (r *Room) SubmitAnswer(playerID, questionID, optionID string, timeSpent time.Duration) (domain.AnswerResult, error) {
	var res domain.AnswerResult
	var subErr error
	err := r.exec(func() {
		switch r.status {
		case domain.RoomWaiting:
			subErr = domain.ErrGameNotStarted
			return
		case domain.RoomCompleted:
			subErr = domain.ErrGameCompleted
			return
		}
		p, ok := r.byID[playerID]
		if !ok {
			subErr = domain.ErrPlayerNotFound
			return
		}

		q := r.questions[r.current]
		if questionID != q.ID {
			if indexOfQuestion(r.questions, questionID) >= 0 {
				subErr = domain.ErrQuestionClosed
			} else {
				subErr = domain.ErrQuestionNotFound
			}
			return
		}
		if p.answered[r.current] {
			subErr = domain.ErrAlreadyAnswered
			return
		}
		if indexOfOption(q.Options, optionID) < 0 {
			subErr = domain.ErrOptionNotFound
			return
		}

		if timeSpent < 0 {
			timeSpent = 0
		}
		if timeSpent > r.limit {
			timeSpent = r.limit
		}
		correct := optionID == q.CorrectOptionID()
		points := scorePoints(r.cfg.Scoring, correct, q.BasePoints(), timeSpent, r.limit)

		p.answers = append(p.answers, domain.AnswerRecord{
			QuestionID: q.ID,
			OptionID:   optionID,
			Correct:    correct,
			Points:     points,
			TimeSpent:  timeSpent,
		})
		p.answered[r.current] = true
		p.score += points
		if points > 0 {
			p.lastScoredAt = r.now()
		}

		res = domain.AnswerResult{
			QuestionID:      q.ID,
			Correct:         correct,
			CorrectOptionID: q.CorrectOptionID(),
			Awarded:         points,
			TotalScore:      p.score,
		}
		r.broadcast(Event{Type: EventScoreUpdate, Payload: ScoreUpdatePayload{Players: r.playerViews()}})

		if r.allAnswered() {
			r.settle()
		}
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return res, subErr
}

// Leave removes a player. The host role fails over to the earliest-joined
// remaining player; an empty room is destroyed immediately.
func (r *Room) Leave(playerID string) error {
	var leaveErr error
	err := r.exec(func() {
		leaveErr = r.removePlayer(playerID)
	})
	if err != nil {
		return err
	}
	return leaveErr
}

// removePlayer implements leave semantics. Run-loop only.
func (r *Room) removePlayer(playerID string) error {
	p, ok := r.byID[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	delete(r.byID, playerID)
	for i, other := range r.players {
		if other.id == playerID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	if len(r.players) == 0 {
		r.destroy()
		return nil
	}
	r.broadcast(Event{Type: EventPlayerLeft, Payload: PlayerLeftPayload{PlayerID: playerID}})
	if p.isHost {
		next := r.players[0]
		next.isHost = true
		r.hostID = next.id
		r.broadcast(Event{Type: EventHostChanged, Payload: HostChangedPayload{HostID: next.id}})
	}
	// The leaver no longer counts toward completeness.
	if r.status == domain.RoomActive && r.allAnswered() {
		r.settle()
	}
	return nil
}

// Disconnect marks a player as gone and converts the disconnect into a leave
// after the grace window, unless they reconnect first.
func (r *Room) Disconnect(playerID string) {
	_ = r.exec(func() {
		p, ok := r.byID[playerID]
		if !ok {
			return
		}
		p.connected = false
		p.connEpoch++
		epoch := p.connEpoch
		grace := r.cfg.DisconnectGrace
		time.AfterFunc(grace, func() {
			r.post(func() {
				if p2, ok := r.byID[playerID]; ok && !p2.connected && p2.connEpoch == epoch {
					_ = r.removePlayer(playerID)
				}
			})
		})
	})
}

// CurrentQuestion is the reconnect projection: a pure read of the in-flight
// question state. It never mutates the room.
func (r *Room) CurrentQuestion(playerID string) (domain.QuestionProgress, error) {
	var prog domain.QuestionProgress
	var readErr error
	err := r.exec(func() {
		if _, ok := r.byID[playerID]; !ok {
			readErr = domain.ErrPlayerNotFound
			return
		}
		switch r.status {
		case domain.RoomWaiting:
			readErr = domain.ErrGameNotStarted
			return
		case domain.RoomCompleted:
			readErr = domain.ErrGameCompleted
			return
		}
		left := r.deadline.Sub(r.now())
		if left < 0 {
			left = 0
		}
		prog = domain.QuestionProgress{
			Question:       r.questions[r.current].View(),
			QuestionNumber: r.current + 1,
			TotalQuestions: len(r.questions),
			TimeLeftMs:     left.Milliseconds(),
		}
	})
	if err != nil {
		return domain.QuestionProgress{}, err
	}
	return prog, readErr
}

// Snapshot returns the room's public state.
func (r *Room) Snapshot() (domain.RoomSnapshot, error) {
	var snap domain.RoomSnapshot
	err := r.exec(func() { snap = r.snapshot() })
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return snap, nil
}

// Subscribe registers a listener for room events. The cancel func must be
// called to avoid leaks; it is safe to call after the room is gone.
func (r *Room) Subscribe() (<-chan Event, func(), error) {
	ch := make(chan Event, 16)
	err := r.exec(func() {
		r.subscribers[ch] = struct{}{}
	})
	if err != nil {
		return nil, nil, err
	}
	return ch, r.unsubscribeFunc(ch), nil
}

func (r *Room) unsubscribeFunc(ch chan Event) func() {
	return func() {
		_ = r.exec(func() {
			if _, ok := r.subscribers[ch]; ok {
				delete(r.subscribers, ch)
				close(ch)
			}
		})
	}
}

// openQuestion arms the deadline for the current question and announces it.
// Run-loop only.
func (r *Room) openQuestion(kind EventType) {
	r.round++
	round := r.round
	r.deadline = r.now().Add(r.limit)
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.limit, func() {
		r.post(func() {
			if r.status == domain.RoomActive && round == r.round {
				r.settle()
			}
		})
	})
	r.broadcast(Event{Type: kind, Payload: domain.QuestionStart{
		Question:       r.questions[r.current].View(),
		QuestionNumber: r.current + 1,
		TotalQuestions: len(r.questions),
		TimeLimitMs:    r.limit.Milliseconds(),
	}})
}

// settle closes the current question: records zero-point entries for anyone
// who never answered, reveals the correct option, then advances or completes.
// Bumping round here invalidates the pending deadline timer, so a question is
// settled exactly once. Run-loop only.
func (r *Room) settle() {
	r.round++
	if r.timer != nil {
		r.timer.Stop()
	}
	q := r.questions[r.current]
	for _, p := range r.players {
		if p.answered[r.current] {
			continue
		}
		p.answers = append(p.answers, domain.AnswerRecord{
			QuestionID: q.ID,
			Correct:    false,
			Points:     0,
			TimeSpent:  r.limit,
		})
		p.answered[r.current] = true
	}

	outcomes := make([]domain.AnswerOutcome, 0, len(r.players))
	for _, p := range r.players {
		var rec domain.AnswerRecord
		for i := range p.answers {
			if p.answers[i].QuestionID == q.ID {
				rec = p.answers[i]
				break
			}
		}
		outcomes = append(outcomes, domain.AnswerOutcome{
			PlayerID: p.id,
			OptionID: rec.OptionID,
			Correct:  rec.Correct,
			Points:   rec.Points,
		})
	}
	r.broadcast(Event{Type: EventQuestionResult, Payload: domain.QuestionResult{
		QuestionID:      q.ID,
		CorrectOptionID: q.CorrectOptionID(),
		Answers:         outcomes,
	}})

	if r.current+1 < len(r.questions) {
		r.current++
		r.openQuestion(EventNextQuestion)
		return
	}
	r.complete()
}

// complete finalizes the room: ranks players, broadcasts the result, hands it
// to the result store without blocking, and schedules the retention teardown.
// Run-loop only.
func (r *Room) complete() {
	r.status = domain.RoomCompleted
	ranked := r.rankings()
	r.broadcast(Event{Type: EventGameCompleted, Payload: GameCompletedPayload{Results: ranked}})

	if r.results != nil {
		code, quizID := r.code, r.quizID
		store := r.results
		go func() {
			if err := store.SaveResults(context.Background(), code, quizID, ranked); err != nil {
				log.Printf("room %s: save results failed: %v", code, err)
			}
		}()
	}

	retention := r.cfg.CompletedRetention
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	time.AfterFunc(retention, func() {
		r.post(r.destroy)
	})
}

// rankings orders players by score descending. Ties go to whoever reached
// their score first, then to original join order.
func (r *Room) rankings() []domain.RankedResult {
	ordered := make([]*playerState, len(r.players))
	copy(ordered, r.players)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		a, b := ordered[i].lastScoredAt, ordered[j].lastScoredAt
		if !a.IsZero() && !b.IsZero() && !a.Equal(b) {
			return a.Before(b)
		}
		return false // SliceStable keeps join order
	})

	results := make([]domain.RankedResult, 0, len(ordered))
	for i, p := range ordered {
		correct := 0
		for _, rec := range p.answers {
			if rec.Correct {
				correct++
			}
		}
		results = append(results, domain.RankedResult{
			Rank:        i + 1,
			PlayerID:    p.id,
			DisplayName: p.displayName,
			Score:       p.score,
			Correct:     correct,
		})
	}
	return results
}

func (r *Room) allAnswered() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.answered[r.current] {
			return false
		}
	}
	return true
}

func (r *Room) broadcast(evt Event) {
	for ch := range r.subscribers {
		select {
		case ch <- evt:
		default:
			// Drop the oldest update rather than block the loop on a slow client.
			select {
			case <-ch:
			default:
			}
			ch <- evt
		}
	}
}

func (r *Room) playerView(p *playerState) domain.PlayerView {
	return domain.PlayerView{
		ID:          p.id,
		DisplayName: p.displayName,
		IsHost:      p.isHost,
		Score:       p.score,
	}
}

func (r *Room) playerViews() []domain.PlayerView {
	views := make([]domain.PlayerView, 0, len(r.players))
	for _, p := range r.players {
		views = append(views, r.playerView(p))
	}
	return views
}

func (r *Room) snapshot() domain.RoomSnapshot {
	snap := domain.RoomSnapshot{
		Code:    r.code,
		QuizID:  r.quizID,
		HostID:  r.hostID,
		Status:  r.status,
		Players: r.playerViews(),
	}
	if r.status == domain.RoomActive {
		snap.QuestionNumber = r.current + 1
		snap.TotalQuestions = len(r.questions)
	}
	return snap
}

// snapshotQuestions deep-copies the question list so the room owns an
// immutable view for the whole game.
func snapshotQuestions(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		opts := make([]domain.Option, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		out[i] = q
	}
	return out
}

func indexOfQuestion(questions []domain.Question, id string) int {
	for i := range questions {
		if questions[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfOption(options []domain.Option, id string) int {
	for i := range options {
		if options[i].ID == id {
			return i
		}
	}
	return -1
}
