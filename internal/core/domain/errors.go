package domain

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomExists        = errors.New("room already exists")
	ErrInvalidRoomCode   = errors.New("invalid room code")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrNotConnected      = errors.New("not connected")
	ErrInvalidCommand    = errors.New("invalid command")
)
