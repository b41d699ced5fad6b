package match

import "errors"

// Every error is local to one call and leaves the session untouched.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrRoleTaken      = errors.New("role already taken")
	ErrInvalidAction  = errors.New("action not legal for role")
	ErrInvalidPhase   = errors.New("not allowed in current phase")
	ErrPlayerNotFound = errors.New("player not found")
	ErrInvalidName    = errors.New("player name required")
	ErrInvalidRole    = errors.New("unknown role")
)
