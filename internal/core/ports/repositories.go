package ports

import (
	"context"

	"watchsync/internal/core/domain"
)

// RoomRepository stores room records for the lifecycle side-channel.
// Codes passed in are already normalized.
type RoomRepository interface {
	// Create fails with domain.ErrRoomExists when the code is taken.
	Create(ctx context.Context, room *domain.Room) error
	GetByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error)
	SetActive(ctx context.Context, code domain.RoomCode, active bool) error
	ListActive(ctx context.Context) ([]*domain.Room, error)
}
