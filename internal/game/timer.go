package game

import (
	"log/slog"
	"sync"
	"time"

	"marketduel/internal/match"
)

type turn struct {
	round int
	timer *time.Timer
}

// TurnTimer submits HOLD for players who sit out a round longer than the
// timeout. It watches the events the dispatcher emits: game_start and
// next_round arm a room, game_end disarms it.
type TurnTimer struct {
	mu      sync.Mutex
	timeout time.Duration
	d       *Dispatcher
	deliver func([]Event)
	turns   map[string]turn
	stopped bool

	log *slog.Logger
}

// NewTurnTimer returns a timer that hands the events of forced rounds to
// deliver. A zero timeout disables it.
func NewTurnTimer(timeout time.Duration, d *Dispatcher, deliver func([]Event), logger *slog.Logger) *TurnTimer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnTimer{
		timeout: timeout,
		d:       d,
		deliver: deliver,
		turns:   make(map[string]turn),
		log:     logger.With("component", "turn_timer"),
	}
}

// Enabled reports whether the timer does anything.
func (t *TurnTimer) Enabled() bool {
	return t != nil && t.timeout > 0
}

// Observe arms or disarms rooms based on outbound events.
func (t *TurnTimer) Observe(events []Event) {
	if !t.Enabled() {
		return
	}
	for _, e := range events {
		if e.Room == "" {
			continue
		}
		switch e.Type {
		case EvtGameStart, EvtNextRound:
			if gs, ok := e.Data["gameState"].(match.GameState); ok {
				t.arm(e.Room, gs.Round)
			}
		case EvtGameEnd:
			t.disarm(e.Room)
		}
	}
}

// Armed reports the round a room's timer is waiting on.
func (t *TurnTimer) Armed(code string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.turns[code]
	return tr.round, ok
}

func (t *TurnTimer) arm(code string, round int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	if old, ok := t.turns[code]; ok {
		old.timer.Stop()
	}
	t.turns[code] = turn{
		round: round,
		timer: time.AfterFunc(t.timeout, func() { t.fire(code, round) }),
	}
}

func (t *TurnTimer) disarm(code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.turns[code]; ok {
		old.timer.Stop()
		delete(t.turns, code)
	}
}

func (t *TurnTimer) fire(code string, round int) {
	t.mu.Lock()
	tr, ok := t.turns[code]
	if t.stopped || !ok || tr.round != round {
		t.mu.Unlock()
		return
	}
	delete(t.turns, code)
	t.mu.Unlock()

	events := t.d.AutoHold(code, round)
	if len(events) == 0 {
		return
	}
	t.log.Debug("forced round", "code", code, "round", round)
	t.Observe(events)
	if t.deliver != nil {
		t.deliver(events)
	}
}

// Stop cancels every pending timer. Later events are ignored.
func (t *TurnTimer) Stop() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for code, tr := range t.turns {
		tr.timer.Stop()
		delete(t.turns, code)
	}
}
