package app

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// codeAlphabet is the room-code character set: lowercase letters and digits
// with the visually ambiguous i, l, o, 0 and 1 removed.
const codeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

const defaultCodeLength = 6

// RoomStore abstracts how live rooms are indexed by code (in-memory, Redis
// liveness markers, etc). Implementations must be safe for concurrent use.
type RoomStore interface {
	// Insert adds the room under its code; it returns false when the code is
	// already taken so the caller can draw a new one.
	Insert(code string, room *Room) bool
	Get(code string) (*Room, bool)
	Remove(code string)
}

// Registry owns room creation and lookup. Code generation draws from the
// fixed alphabet and retries on collision; codes are unique across live rooms
// and case-insensitive on lookup.
type Registry struct {
	store      RoomStore
	cfg        RoomConfig
	codeLength int
	results    ResultStore
	now        func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRegistry(store RoomStore, cfg RoomConfig, codeLength int, results ResultStore) *Registry {
	if codeLength <= 0 {
		codeLength = defaultCodeLength
	}
	return &Registry{
		store:      store,
		cfg:        cfg,
		codeLength: codeLength,
		results:    results,
		now:        time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create allocates a room with a fresh code and starts its event loop. On a
// code collision the unstarted candidate is discarded and a new code drawn.
func (g *Registry) Create(quizID string) *Room {
	for {
		code := g.randomCode()
		room := newRoom(code, quizID, g.cfg, g.results, g.now)
		room.onClose = g.store.Remove
		if g.store.Insert(code, room) {
			room.start()
			return room
		}
	}
}

// Find resolves a room by code. Codes are matched case-insensitively.
func (g *Registry) Find(code string) (*Room, error) {
	room, ok := g.store.Get(NormalizeCode(code))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (g *Registry) randomCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := make([]byte, g.codeLength)
	for i := range b {
		b[i] = codeAlphabet[g.rnd.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// NormalizeCode canonicalizes user-typed room codes.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
