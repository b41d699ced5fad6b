package match

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketduel/internal/market"
	"marketduel/internal/payoff"
)

// Phase is the lifecycle stage of a session. Phases only move forward.
type Phase int

const (
	PhaseLobby      Phase = iota // Waiting for two ready players
	PhaseInProgress              // Rounds 1..MaxRounds
	PhaseEnded                   // Terminal
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "LOBBY"
	case PhaseInProgress:
		return "IN_PROGRESS"
	case PhaseEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Player is a seat holder. Owned by its session.
type Player struct {
	ID    string
	Name  string
	Role  market.Role
	Ready bool
}

func (p *Player) view() PlayerView {
	return PlayerView{ID: p.ID, Name: p.Name, Role: p.Role, Ready: p.Ready}
}

// Config contains configuration for a session
type Config struct {
	MaxRounds  int
	StartPrice decimal.Decimal

	// ClampNegative zeroes sentiment weights the action adjustment pushes
	// below zero. Off reproduces the legacy unclamped walk.
	ClampNegative bool

	Seed   int64         // 0 seeds from the clock
	Source market.Source // overrides Seed when set
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxRounds:     10,
		StartPrice:    decimal.NewFromInt(20),
		ClampNegative: true,
	}
}

// Session is one room's game. All methods are safe for concurrent use; every
// mutation, round resolution included, runs under the session lock.
type Session struct {
	mu sync.RWMutex

	code string
	cfg  Config

	players map[market.Role]*Player
	phase   Phase
	round   int

	price        decimal.Decimal
	priceHistory []PricePoint
	sentiment    market.Sentiment
	scores       [2]decimal.Decimal
	ledger       market.Ledger
	pending      map[market.Role]market.Action
	history      []RoundResult
	optimal      [2]int
	winner       *market.Role

	// discarded is set when the last player leaves or the registry drops the
	// room and any stale handle gets ErrRoomNotFound.
	discarded bool

	src     market.Source
	pricing *market.PriceModel
	chain   market.SentimentChain
}

// NewSession creates a session in the lobby.
func NewSession(code string, cfg Config) *Session {
	def := DefaultConfig()
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.StartPrice.LessThan(market.MinPrice) {
		cfg.StartPrice = def.StartPrice
	}
	src := cfg.Source
	if src == nil {
		src = market.NewSource(cfg.Seed)
	}

	return &Session{
		code:         code,
		cfg:          cfg,
		players:      make(map[market.Role]*Player, 2),
		phase:        PhaseLobby,
		price:        cfg.StartPrice,
		priceHistory: []PricePoint{{Round: 0, Price: cfg.StartPrice}},
		sentiment:    market.SentimentNeutral,
		pending:      make(map[market.Role]market.Action, 2),
		src:          src,
		pricing:      market.NewPriceModel(src),
		chain:        market.SentimentChain{ClampNegative: cfg.ClampNegative},
	}
}

// Code returns the room code the session was created under.
func (s *Session) Code() string {
	return s.code
}

// AddPlayer seats a new player in the lobby.
func (s *Session) AddPlayer(name string, role market.Role) (Player, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return Player{}, ErrRoomNotFound
	}
	if name == "" {
		return Player{}, ErrInvalidName
	}
	if role != market.RoleRetail && role != market.RoleHedge {
		return Player{}, ErrInvalidRole
	}
	if len(s.players) >= 2 {
		return Player{}, ErrRoomFull
	}
	if _, taken := s.players[role]; taken {
		return Player{}, fmt.Errorf("%w: %s", ErrRoleTaken, role)
	}
	if s.phase != PhaseLobby {
		return Player{}, fmt.Errorf("%w: cannot join in %s", ErrInvalidPhase, s.phase)
	}

	p := &Player{ID: uuid.NewString(), Name: name, Role: role}
	s.players[role] = p
	return *p, nil
}

// SetReady marks a player ready. It reports true when this call started the
// game.
func (s *Session) SetReady(playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return false, ErrRoomNotFound
	}
	p := s.playerByID(playerID)
	if p == nil {
		return false, ErrPlayerNotFound
	}
	p.Ready = true

	if s.phase != PhaseLobby || len(s.players) != 2 {
		return false, nil
	}
	for _, other := range s.players {
		if !other.Ready {
			return false, nil
		}
	}
	s.phase = PhaseInProgress
	s.round = 1
	return true, nil
}

// SubmitAction stores the player's move for the current round, replacing any
// earlier one. When both roles have moved the round is resolved before the
// lock is released and its result returned; otherwise the result is nil.
func (s *Session) SubmitAction(playerID string, action market.Action) (*RoundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return nil, ErrRoomNotFound
	}
	p := s.playerByID(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if s.phase != PhaseInProgress {
		return nil, fmt.Errorf("%w: cannot act in %s", ErrInvalidPhase, s.phase)
	}
	if !market.Legal(p.Role, action) {
		return nil, fmt.Errorf("%w: %s cannot %s", ErrInvalidAction, p.Role, action)
	}

	s.pending[p.Role] = action

	_, retailIn := s.pending[market.RoleRetail]
	_, hedgeIn := s.pending[market.RoleHedge]
	if !retailIn || !hedgeIn {
		return nil, nil
	}

	result := s.resolve()
	return &result, nil
}

// HoldMissing submits HOLD for every seated player that has not acted in the
// given round. It does nothing once the session has moved past that round, so
// a late timer cannot touch the next one. A role with nobody seated is left
// empty and the round keeps waiting.
func (s *Session) HoldMissing(round int) ([]market.Role, *RoundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return nil, nil, ErrRoomNotFound
	}
	if s.phase != PhaseInProgress || s.round != round {
		return nil, nil, nil
	}

	var filled []market.Role
	for _, r := range market.Roles {
		if _, seated := s.players[r]; !seated {
			continue
		}
		if _, in := s.pending[r]; in {
			continue
		}
		s.pending[r] = market.ActionHold
		filled = append(filled, r)
	}

	if len(s.pending) < 2 {
		return filled, nil, nil
	}
	result := s.resolve()
	return filled, &result, nil
}

// resolve settles the in-flight round. Caller holds the lock and has checked
// that both actions are pending.
func (s *Session) resolve() RoundResult {
	retail := s.pending[market.RoleRetail]
	hedge := s.pending[market.RoleHedge]
	oldPrice := s.price

	// The analysis is always against the matrix seen before the move.
	matrix := payoff.Build(oldPrice, s.sentiment)

	newPrice := s.pricing.Next(oldPrice, retail, hedge, s.sentiment)
	change := newPrice.Sub(oldPrice)
	retailProfit, hedgeProfit := s.ledger.Settle(change, retail, hedge)

	s.scores[market.RoleRetail] = s.scores[market.RoleRetail].Add(retailProfit)
	s.scores[market.RoleHedge] = s.scores[market.RoleHedge].Add(hedgeProfit)
	s.price = newPrice

	s.sentiment = s.chain.Next(s.sentiment, retail, hedge, s.src)

	// Pending actions were checked for legality on submit.
	analysis, _ := payoff.Analyze(matrix, retail, hedge)
	if analysis.OptimalPlay.RetailOptimal {
		s.optimal[market.RoleRetail]++
	}
	if analysis.OptimalPlay.HedgeOptimal {
		s.optimal[market.RoleHedge]++
	}

	result := RoundResult{
		Round:        s.round,
		RetailAction: retail,
		HedgeAction:  hedge,
		OldPrice:     oldPrice,
		NewPrice:     newPrice,
		PriceChange:  change,
		RetailProfit: retailProfit,
		HedgeProfit:  hedgeProfit,
		Sentiment:    s.sentiment,
		PayoffMatrix: matrix,
		Equilibria:   analysis.Equilibria,
		Mixed:        analysis.Mixed,
		OptimalPlay:  analysis.OptimalPlay,
		Achievement:  achievementFor(newPrice),
	}

	s.priceHistory = append(s.priceHistory, PricePoint{Round: s.round, Price: newPrice})
	s.history = append(s.history, result)
	clear(s.pending)

	if s.round >= s.cfg.MaxRounds {
		s.phase = PhaseEnded
		w := market.RoleHedge
		if s.scores[market.RoleRetail].GreaterThan(s.scores[market.RoleHedge]) {
			w = market.RoleRetail
		}
		s.winner = &w
	} else {
		s.round++
	}

	return result
}

// RemovePlayer drops a player and reports whether the session is now empty.
// An empty session is discarded. A lone remaining player keeps the current
// phase; nothing forfeits or times out here.
func (s *Session) RemovePlayer(playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return true, ErrRoomNotFound
	}
	p := s.playerByID(playerID)
	if p == nil {
		return len(s.players) == 0, ErrPlayerNotFound
	}
	delete(s.players, p.Role)

	if len(s.players) == 0 {
		s.discarded = true
		return true, nil
	}
	return false, nil
}

// Discard retires the session. Every later mutation returns ErrRoomNotFound.
func (s *Session) Discard() {
	s.mu.Lock()
	s.discarded = true
	s.mu.Unlock()
}

// DiscardIfEmpty retires the session only when nobody is seated. The check
// and the discard happen under one lock, so a concurrent join either lands
// first (and nothing is discarded) or fails.
func (s *Session) DiscardIfEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.players) > 0 {
		return false
	}
	s.discarded = true
	return true
}

func (s *Session) playerByID(id string) *Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Getters

// Player looks up a player by id.
func (s *Session) Player(id string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.playerByID(id)
	if p == nil {
		return Player{}, false
	}
	return *p, true
}

// PlayerByRole returns the player seated in role.
func (s *Session) PlayerByRole(role market.Role) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[role]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

func (s *Session) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *Session) Round() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.round
}

func (s *Session) Price() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price
}

// Pending reports which roles have an action in for the current round.
func (s *Session) Pending() map[market.Role]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[market.Role]bool, 2)
	for r := range s.pending {
		out[r] = true
	}
	return out
}

// History returns a copy of the resolved rounds.
func (s *Session) History() []RoundResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// Snapshot returns a copy of the session safe to serialize.
func (s *Session) Snapshot() GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]PlayerView, 0, len(s.players))
	for _, r := range market.Roles {
		if p, ok := s.players[r]; ok {
			players = append(players, p.view())
		}
	}
	_, retailIn := s.pending[market.RoleRetail]
	_, hedgeIn := s.pending[market.RoleHedge]

	gs := GameState{
		Code:               s.code,
		Phase:              s.phase,
		Players:            players,
		Round:              s.round,
		MaxRounds:          s.cfg.MaxRounds,
		Price:              s.price,
		PriceHistory:       slices.Clone(s.priceHistory),
		Sentiment:          s.sentiment,
		RetailScore:        s.scores[market.RoleRetail],
		HedgeScore:         s.scores[market.RoleHedge],
		RetailShares:       s.ledger.Shares(market.RoleRetail),
		HedgeShares:        s.ledger.Shares(market.RoleHedge),
		RetailSubmitted:    retailIn,
		HedgeSubmitted:     hedgeIn,
		RetailOptimalCount: s.optimal[market.RoleRetail],
		HedgeOptimalCount:  s.optimal[market.RoleHedge],
		RoundHistory:       slices.Clone(s.history),
	}
	if s.winner != nil {
		w := *s.winner
		gs.Winner = &w
	}
	return gs
}

// Stats returns the end-of-game summary once the session has ended.
func (s *Session) Stats() (GameStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.phase != PhaseEnded || s.winner == nil {
		return GameStats{}, false
	}
	rounds := decimal.NewFromInt(int64(s.cfg.MaxRounds))
	return GameStats{
		Winner:                  *s.winner,
		RetailScore:             s.scores[market.RoleRetail],
		HedgeScore:              s.scores[market.RoleHedge],
		RetailOptimalPercentage: percentOf(decimal.NewFromInt(int64(s.optimal[market.RoleRetail])), rounds),
		HedgeOptimalPercentage:  percentOf(decimal.NewFromInt(int64(s.optimal[market.RoleHedge])), rounds),
		FinalPrice:              s.price,
		PriceChangePercentage:   percentOf(s.price.Sub(s.cfg.StartPrice), s.cfg.StartPrice),
		RoundHistory:            slices.Clone(s.history),
	}, true
}
