package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"marketduel/internal/market"
	"marketduel/internal/match"
)

// Inbound message types.
const (
	MsgCreateRoom   = "create_room"
	MsgJoinRoom     = "join_room"
	MsgReady        = "ready"
	MsgSubmitAction = "submit_action"
	MsgLeave        = "leave"
)

// Outbound event types.
const (
	EvtRoomCreated  = "room_created"
	EvtRoomJoined   = "room_joined"
	EvtPlayerJoined = "player_joined"
	EvtPlayerReady  = "player_ready"
	EvtGameStart    = "game_start"
	EvtRoundResult  = "round_result"
	EvtNextRound    = "next_round"
	EvtGameEnd      = "game_end"
	EvtPlayerLeft   = "player_left"
	EvtError        = "error"
)

var (
	ErrAlreadySeated  = errors.New("connection already seated in a room")
	ErrNotSeated      = errors.New("connection is not in a room")
	ErrUnknownMessage = errors.New("unknown message type")
)

// Message is one inbound client request.
type Message struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Code   string `json:"code,omitempty"`
	Action string `json:"action,omitempty"`
}

// Event is one outbound message. Exactly one of Conn and Room is set: Conn
// targets a single connection, Room every connection seated in that room.
type Event struct {
	Type string
	Conn string
	Room string
	Data map[string]any
}

// MarshalJSON flattens Data next to the type field.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		out[k] = v
	}
	out["type"] = e.Type
	return json.Marshal(out)
}

func toConn(conn, typ string, data map[string]any) Event {
	return Event{Type: typ, Conn: conn, Data: data}
}

func toRoom(code, typ string, data map[string]any) Event {
	return Event{Type: typ, Room: code, Data: data}
}

// ErrorCode maps an error to the stable code sent in error events.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, match.ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, match.ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, match.ErrRoleTaken):
		return "ROLE_TAKEN"
	case errors.Is(err, match.ErrInvalidAction):
		return "INVALID_ACTION"
	case errors.Is(err, match.ErrInvalidPhase):
		return "INVALID_PHASE"
	case errors.Is(err, match.ErrPlayerNotFound):
		return "PLAYER_NOT_FOUND"
	case errors.Is(err, match.ErrInvalidName):
		return "INVALID_NAME"
	case errors.Is(err, match.ErrInvalidRole):
		return "INVALID_ROLE"
	case errors.Is(err, ErrAlreadySeated):
		return "ALREADY_SEATED"
	case errors.Is(err, ErrNotSeated):
		return "NOT_SEATED"
	case errors.Is(err, ErrUnknownMessage):
		return "UNKNOWN_MESSAGE"
	default:
		return "INTERNAL"
	}
}

// NewErrorEvent builds an error event for one connection.
func NewErrorEvent(conn, code, message string) Event {
	return toConn(conn, EvtError, map[string]any{
		"code":    code,
		"message": message,
	})
}

func errorEvent(conn string, err error) Event {
	return NewErrorEvent(conn, ErrorCode(err), err.Error())
}

type seat struct {
	code     string
	playerID string
}

// Dispatcher turns client messages into session calls and returns the events
// the transport should deliver. It performs no I/O; it only remembers which
// connection holds which seat.
type Dispatcher struct {
	mu    sync.RWMutex
	reg   *Registry
	seats map[string]seat

	log *slog.Logger
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		reg:   reg,
		seats: make(map[string]seat),
		log:   logger.With("component", "dispatcher"),
	}
}

// Registry returns the registry the dispatcher acts on.
func (d *Dispatcher) Registry() *Registry {
	return d.reg
}

// Handle processes one message from connID.
func (d *Dispatcher) Handle(connID string, msg Message) []Event {
	var (
		events []Event
		err    error
	)
	switch msg.Type {
	case MsgCreateRoom:
		events, err = d.createRoom(connID, msg)
	case MsgJoinRoom:
		events, err = d.joinRoom(connID, msg)
	case MsgReady:
		events, err = d.ready(connID)
	case MsgSubmitAction:
		events, err = d.submitAction(connID, msg)
	case MsgLeave:
		events, err = d.leave(connID)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	if err != nil {
		d.log.Debug("message rejected", "conn", connID, "type", msg.Type, "err", err)
		return []Event{errorEvent(connID, err)}
	}
	return events
}

// Disconnect releases connID's seat, if any. It is leave without the error
// for connections that never sat down.
func (d *Dispatcher) Disconnect(connID string) []Event {
	events, err := d.leave(connID)
	if err != nil && !errors.Is(err, ErrNotSeated) {
		d.log.Warn("disconnect cleanup failed", "conn", connID, "err", err)
	}
	return events
}

// Seat returns the room and player held by connID.
func (d *Dispatcher) Seat(connID string) (code, playerID string, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.seats[connID]
	return st.code, st.playerID, ok && st.code != ""
}

// Members returns the connections seated in a room, sorted.
func (d *Dispatcher) Members(code string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var conns []string
	for conn, st := range d.seats {
		if code != "" && st.code == code {
			conns = append(conns, conn)
		}
	}
	slices.Sort(conns)
	return conns
}

// claim reserves connID before the session call so two concurrent joins from
// one connection cannot both succeed.
func (d *Dispatcher) claim(connID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seats[connID]; ok {
		return ErrAlreadySeated
	}
	d.seats[connID] = seat{}
	return nil
}

func (d *Dispatcher) release(connID string) {
	d.mu.Lock()
	delete(d.seats, connID)
	d.mu.Unlock()
}

func (d *Dispatcher) sit(connID, code, playerID string) {
	d.mu.Lock()
	d.seats[connID] = seat{code: code, playerID: playerID}
	d.mu.Unlock()
}

func (d *Dispatcher) seated(connID string) (seat, *match.Session, error) {
	d.mu.RLock()
	st, ok := d.seats[connID]
	d.mu.RUnlock()
	if !ok || st.code == "" {
		return seat{}, nil, ErrNotSeated
	}
	s, err := d.reg.Get(st.code)
	if err != nil {
		return seat{}, nil, err
	}
	return st, s, nil
}

func (d *Dispatcher) createRoom(connID string, msg Message) ([]Event, error) {
	role, err := market.ParseRole(msg.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", match.ErrInvalidRole, msg.Role)
	}
	if strings.TrimSpace(msg.Name) == "" {
		return nil, match.ErrInvalidName
	}
	if err := d.claim(connID); err != nil {
		return nil, err
	}

	code, s, err := d.reg.Create()
	if err != nil {
		d.release(connID)
		return nil, err
	}
	p, err := s.AddPlayer(msg.Name, role)
	if err != nil {
		d.release(connID)
		d.reg.Remove(code)
		return nil, err
	}
	d.sit(connID, code, p.ID)

	d.log.Info("room opened by player", "code", code, "player", p.Name, "role", p.Role)
	return []Event{
		toConn(connID, EvtRoomCreated, map[string]any{
			"roomCode":  code,
			"playerId":  p.ID,
			"gameState": s.Snapshot(),
		}),
	}, nil
}

func (d *Dispatcher) joinRoom(connID string, msg Message) ([]Event, error) {
	role, err := market.ParseRole(msg.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", match.ErrInvalidRole, msg.Role)
	}
	if err := d.claim(connID); err != nil {
		return nil, err
	}

	code := NormalizeCode(msg.Code)
	s, err := d.reg.Get(code)
	if err != nil {
		d.release(connID)
		return nil, err
	}
	p, err := s.AddPlayer(msg.Name, role)
	if err != nil {
		d.release(connID)
		return nil, err
	}
	d.sit(connID, code, p.ID)

	d.log.Info("player joined", "code", code, "player", p.Name, "role", p.Role)
	state := s.Snapshot()
	return []Event{
		toRoom(code, EvtPlayerJoined, map[string]any{"gameState": state}),
		toConn(connID, EvtRoomJoined, map[string]any{
			"roomCode":  code,
			"playerId":  p.ID,
			"gameState": state,
		}),
	}, nil
}

func (d *Dispatcher) ready(connID string) ([]Event, error) {
	st, s, err := d.seated(connID)
	if err != nil {
		return nil, err
	}
	started, err := s.SetReady(st.playerID)
	if err != nil {
		return nil, err
	}

	state := s.Snapshot()
	events := []Event{toRoom(st.code, EvtPlayerReady, map[string]any{"gameState": state})}
	if started {
		d.log.Info("game started", "code", st.code, "round", state.Round, "price", state.Price.String())
		events = append(events, toRoom(st.code, EvtGameStart, map[string]any{"gameState": state}))
	}
	return events, nil
}

func (d *Dispatcher) submitAction(connID string, msg Message) ([]Event, error) {
	st, s, err := d.seated(connID)
	if err != nil {
		return nil, err
	}
	action, err := market.ParseAction(msg.Action)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", match.ErrInvalidAction, msg.Action)
	}
	res, err := s.SubmitAction(st.playerID, action)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return d.roundEvents(st.code, s, res), nil
}

// AutoHold fills HOLD for seated players who have not acted in round and
// returns the events of the resolution, if it happened.
func (d *Dispatcher) AutoHold(code string, round int) []Event {
	s, err := d.reg.Get(code)
	if err != nil {
		return nil
	}
	filled, res, err := s.HoldMissing(round)
	if err != nil {
		return nil
	}
	if len(filled) > 0 {
		d.log.Info("turn timed out", "code", code, "round", round, "held", filled)
	}
	if res == nil {
		return nil
	}
	return d.roundEvents(code, s, res)
}

func (d *Dispatcher) roundEvents(code string, s *match.Session, res *match.RoundResult) []Event {
	state := s.Snapshot()
	d.log.Info("round resolved",
		"code", code,
		"round", res.Round,
		"retail", res.RetailAction,
		"hedge", res.HedgeAction,
		"price", res.NewPrice.String(),
		"sentiment", res.Sentiment,
	)

	events := []Event{
		toRoom(code, EvtRoundResult, map[string]any{"roundResult": res, "gameState": state}),
	}
	if res.Round >= state.MaxRounds {
		stats, _ := s.Stats()
		d.log.Info("game ended", "code", code, "winner", stats.Winner,
			"retail_score", stats.RetailScore.String(), "hedge_score", stats.HedgeScore.String())
		return append(events, toRoom(code, EvtGameEnd, map[string]any{"gameStats": stats, "gameState": state}))
	}
	return append(events, toRoom(code, EvtNextRound, map[string]any{"gameState": state}))
}

func (d *Dispatcher) leave(connID string) ([]Event, error) {
	d.mu.Lock()
	st, ok := d.seats[connID]
	delete(d.seats, connID)
	d.mu.Unlock()
	if !ok || st.code == "" {
		return nil, ErrNotSeated
	}

	dropped, err := d.reg.Leave(st.code, st.playerID)
	if err != nil {
		return nil, err
	}
	d.log.Info("player left", "code", st.code, "player", st.playerID, "room_dropped", dropped)
	if dropped {
		return nil, nil
	}

	s, err := d.reg.Get(st.code)
	if err != nil {
		return nil, nil
	}
	return []Event{toRoom(st.code, EvtPlayerLeft, map[string]any{"gameState": s.Snapshot()})}, nil
}
