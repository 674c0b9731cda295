package memory

import (
	"context"
	"sort"
	"sync"

	"watchsync/internal/core/domain"
	"watchsync/internal/core/ports"
)

type MemoryRoomRepository struct {
	rooms map[domain.RoomCode]domain.Room
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[domain.RoomCode]domain.Room),
	}
}

func (r *MemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.Code]; exists {
		return domain.ErrRoomExists
	}

	r.rooms[room.Code] = *room
	return nil
}

func (r *MemoryRoomRepository) GetByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[code]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	return &room, nil
}

func (r *MemoryRoomRepository) SetActive(ctx context.Context, code domain.RoomCode, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[code]
	if !exists {
		return domain.ErrRoomNotFound
	}

	room.Active = active
	r.rooms[code] = room
	return nil
}

func (r *MemoryRoomRepository) ListActive(ctx context.Context) ([]*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*domain.Room
	for _, room := range r.rooms {
		if room.Active {
			room := room
			active = append(active, &room)
		}
	}
	sortByCreation(active)
	return active, nil
}

func sortByCreation(rooms []*domain.Room) {
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].Code < rooms[j].Code
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
}
