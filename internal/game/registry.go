package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"marketduel/internal/match"
)

// ErrCodeSpace is returned when the code generator keeps colliding with live
// rooms.
var ErrCodeSpace = errors.New("could not allocate a free room code")

const (
	codeAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultCodeLen = 6

	maxCodeAttempts = 64
)

// CodeGenerator returns a candidate room code. The registry retries on
// collision.
type CodeGenerator func() string

// RandomCodes generates n-character codes from A-Z0-9.
func RandomCodes(n int) CodeGenerator {
	if n <= 0 {
		n = DefaultCodeLen
	}
	return func() string {
		b := make([]byte, n)
		for i := range b {
			b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
		}
		return string(b)
	}
}

// NormalizeCode upper-cases and trims a user supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type room struct {
	session *match.Session
	created time.Time
}

// Registry owns every live session, keyed by room code.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]room

	session match.Config
	newCode CodeGenerator
	now     func() time.Time
	seq     int64

	log *slog.Logger
}

// NewRegistry creates an empty registry. Sessions are created with cfg; a
// non-zero cfg.Seed is offset per room so rooms do not replay each other.
func NewRegistry(cfg match.Config, gen CodeGenerator, logger *slog.Logger) *Registry {
	if gen == nil {
		gen = RandomCodes(DefaultCodeLen)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:   make(map[string]room),
		session: cfg,
		newCode: gen,
		now:     time.Now,
		log:     logger.With("component", "registry"),
	}
}

// Create allocates a fresh code and an empty session in the lobby.
func (r *Registry) Create() (string, *match.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			return "", nil, ErrCodeSpace
		}
		code = NormalizeCode(r.newCode())
		if _, taken := r.rooms[code]; code != "" && !taken {
			break
		}
	}

	r.seq++
	cfg := r.session
	if cfg.Seed != 0 && cfg.Source == nil {
		cfg.Seed += r.seq
	}

	s := match.NewSession(code, cfg)
	r.rooms[code] = room{session: s, created: r.now()}
	r.log.Info("room created", "code", code, "rooms", len(r.rooms))
	return code, s, nil
}

// Get looks up a live session.
func (r *Registry) Get(code string) (*match.Session, error) {
	code = NormalizeCode(code)

	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", match.ErrRoomNotFound, code)
	}
	return rm.session, nil
}

// Remove drops a room regardless of who is still in it.
func (r *Registry) Remove(code string) {
	code = NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[code]; ok {
		rm.session.Discard()
		delete(r.rooms, code)
		r.log.Info("room deleted", "code", code, "rooms", len(r.rooms))
	}
}

// Leave removes a player and drops the room once it is empty. It reports
// whether the room was dropped.
func (r *Registry) Leave(code, playerID string) (bool, error) {
	code = NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return false, fmt.Errorf("%w: %s", match.ErrRoomNotFound, code)
	}

	empty, err := rm.session.RemovePlayer(playerID)
	if err != nil {
		return false, err
	}
	if !empty {
		return false, nil
	}

	delete(r.rooms, code)
	r.log.Info("room deleted", "code", code, "reason", "empty", "rooms", len(r.rooms))
	return true, nil
}

// Prune drops rooms that nobody ever joined and that are older than maxAge.
// Rooms created over HTTP sit empty until someone joins; this collects the
// ones that never get used.
func (r *Registry) Prune(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped int
	for code, rm := range r.rooms {
		if rm.created.After(cutoff) || !rm.session.DiscardIfEmpty() {
			continue
		}
		delete(r.rooms, code)
		dropped++
	}
	if dropped > 0 {
		r.log.Info("pruned idle rooms", "dropped", dropped, "rooms", len(r.rooms))
	}
	return dropped
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Codes returns the live room codes in sorted order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}
