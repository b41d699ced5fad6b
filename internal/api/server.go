package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"marketduel/internal/bus"
	"marketduel/internal/game"
	"marketduel/internal/match"
)

const publishTimeout = 2 * time.Second

// Options tunes the transport. Zero values fall back to defaults.
type Options struct {
	// Allowed CORS origins (empty = allow all)
	CORSOrigins []string

	MessageLimit  int
	MessageWindow time.Duration

	// Zero RequestLimit disables REST rate limiting.
	RequestLimit  int
	RequestWindow time.Duration

	// Zero disables the turn timer.
	TurnTimeout time.Duration
}

type Server struct {
	dispatcher *game.Dispatcher
	registry   *game.Registry
	hub        *Hub
	timer      *game.TurnTimer
	events     bus.Publisher

	messages *RateLimiter
	requests *RateLimiter

	upgrader    websocket.Upgrader
	corsOrigins []string
	log         *slog.Logger
}

// NewServer wires the transport around a dispatcher. pub mirrors room events;
// nil means no mirror.
func NewServer(d *game.Dispatcher, pub bus.Publisher, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = bus.Nop{}
	}
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = 20
	}
	if opts.MessageWindow <= 0 {
		opts.MessageWindow = time.Second
	}

	s := &Server{
		dispatcher:  d,
		registry:    d.Registry(),
		hub:         NewHub(logger),
		events:      pub,
		messages:    NewRateLimiter(opts.MessageLimit, opts.MessageWindow),
		corsOrigins: opts.CORSOrigins,
		log:         logger.With("component", "api"),
	}
	if opts.RequestLimit > 0 {
		s.requests = NewRateLimiter(opts.RequestLimit, opts.RequestWindow)
	}
	s.timer = game.NewTurnTimer(opts.TurnTimeout, d, s.Deliver, logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.checkCORSOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// checkCORSOrigin checks if an origin is allowed
func (s *Server) checkCORSOrigin(origin string) bool {
	// Empty list = allow all (development mode)
	if len(s.corsOrigins) == 0 {
		return true
	}
	// Empty origin header = same-origin request, always allow
	if origin == "" {
		return true
	}
	return slices.Contains(s.corsOrigins, origin)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"} // Allow all in development mode
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		if s.requests != nil {
			r.Use(s.requests.Middleware)
		}
		r.Get("/health", s.handleHealth)

		r.Get("/rooms", s.listRooms)
		r.Post("/rooms", s.createRoom)
		r.Get("/rooms/{code}", s.getRoom)
		r.Get("/rooms/{code}/history", s.getHistory)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

// ==== REST ====

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, match.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, match.ErrRoomFull),
		errors.Is(err, match.ErrRoleTaken),
		errors.Is(err, match.ErrInvalidPhase):
		return http.StatusConflict
	case errors.Is(err, game.ErrCodeSpace):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rooms":       s.registry.Len(),
		"connections": s.hub.Count(),
	})
}

type roomSummary struct {
	Code    string             `json:"code"`
	Phase   match.Phase        `json:"phase"`
	Players []match.PlayerView `json:"players"`
	Round   int                `json:"round"`
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms := make([]roomSummary, 0)
	for _, code := range s.registry.Codes() {
		sess, err := s.registry.Get(code)
		if err != nil {
			continue // dropped since Codes
		}
		gs := sess.Snapshot()
		rooms = append(rooms, roomSummary{Code: gs.Code, Phase: gs.Phase, Players: gs.Players, Round: gs.Round})
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	code, sess, err := s.registry.Create()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"roomCode":  code,
		"gameState": sess.Snapshot(),
	})
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	gs := sess.Snapshot()
	resp := map[string]any{
		"roomCode":     gs.Code,
		"rounds":       gs.RoundHistory,
		"priceHistory": gs.PriceHistory,
	}
	if stats, ok := sess.Stats(); ok {
		resp["gameStats"] = stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// ==== WebSocket ====

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws: upgrade failed", "err", err)
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(s.handleMessage, s.handleClose)
}

func (s *Server) handleMessage(c *Client, raw []byte) {
	if !s.messages.Allow(c.ID) {
		s.Deliver([]game.Event{game.NewErrorEvent(c.ID, "RATE_LIMITED", "too many messages")})
		return
	}

	var msg game.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.Deliver([]game.Event{game.NewErrorEvent(c.ID, "BAD_MESSAGE", "message is not valid JSON")})
		return
	}

	events := s.dispatcher.Handle(c.ID, msg)
	s.timer.Observe(events)
	s.Deliver(events)
}

func (s *Server) handleClose(c *Client) {
	s.messages.Forget(c.ID)
	s.Deliver(s.dispatcher.Disconnect(c.ID))
}

// Deliver sends each event to its audience and mirrors room events to the
// event bus.
func (s *Server) Deliver(events []game.Event) {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			s.log.Error("encode event", "type", e.Type, "err", err)
			continue
		}

		if e.Conn != "" {
			s.hub.Send(e.Conn, data)
			continue
		}
		for _, conn := range s.dispatcher.Members(e.Room) {
			s.hub.Send(conn, data)
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := s.events.Publish(ctx, e.Room, data); err != nil {
			s.log.Warn("publish event", "room", e.Room, "type", e.Type, "err", err)
		}
		cancel()
	}
}

// PruneRooms drops rooms nobody joined within ttl, every interval, until ctx
// is done.
func (s *Server) PruneRooms(ctx context.Context, ttl, interval time.Duration) error {
	if ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	if interval <= 0 {
		interval = ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.registry.Prune(ttl)
		}
	}
}

// Shutdown stops internal goroutines (turn timers, rate limiters, hub).
func (s *Server) Shutdown() {
	s.timer.Stop()
	s.messages.Stop()
	if s.requests != nil {
		s.requests.Stop()
	}
	s.hub.CloseAll()
}
