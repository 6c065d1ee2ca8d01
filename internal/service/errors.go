package service

import "errors"

// Handshake errors. Any of these closes the connection before it is
// admitted to a room.
var (
	ErrUnauthenticated   = errors.New("no credential presented")
	ErrInvalidCredential = errors.New("credential is malformed or unverifiable")
	ErrUnknownIdentity   = errors.New("credential resolves to no known identity")
)

// Per-event errors. These are reported back to the originating connection
// only; the connection stays open.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrNotRoomHost      = errors.New("only the room host can do this")
	ErrStoreUnavailable = errors.New("persistence store unavailable")
)
