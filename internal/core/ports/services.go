package ports

import (
	"context"

	"watchsync/internal/core/domain"
)

type RoomService interface {
	CreateRoom(ctx context.Context, createdBy string) (*domain.Room, error)
	// GetRoom returns domain.ErrRoomNotFound for unknown, inactive or
	// malformed codes.
	GetRoom(ctx context.Context, code string) (*domain.Room, error)
	CloseRoom(ctx context.Context, code string) error
	ListRooms(ctx context.Context) ([]*domain.Room, error)
}
