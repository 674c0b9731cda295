// Package pebble keeps room records in an embedded Pebble store so a single
// relay node survives restarts without an external database.
package pebble

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"

	"watchsync/internal/core/domain"
)

const roomKeyPrefix = "room:"

type PebbleRoomRepository struct {
	db *pebble.DB
	// serializes read-modify-write sequences; pebble batches alone do not
	// give check-and-set
	mu sync.Mutex
}

// Open creates the directory if needed and opens the store.
func Open(dir string) (*PebbleRoomRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create pebble dir: %w", err)
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleRoomRepository{db: db}, nil
}

func (r *PebbleRoomRepository) Close() error {
	return r.db.Close()
}

func roomKey(code domain.RoomCode) []byte {
	return []byte(roomKeyPrefix + string(code))
}

func (r *PebbleRoomRepository) get(code domain.RoomCode) (*domain.Room, error) {
	val, closer, err := r.db.Get(roomKey(code))
	if err == pebble.ErrNotFound {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read room: %w", err)
	}
	defer closer.Close()

	var room domain.Room
	if err := json.Unmarshal(val, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}

func (r *PebbleRoomRepository) put(room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	return r.db.Set(roomKey(room.Code), data, pebble.Sync)
}

func (r *PebbleRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.get(room.Code); err == nil {
		return domain.ErrRoomExists
	} else if err != domain.ErrRoomNotFound {
		return err
	}
	return r.put(room)
}

func (r *PebbleRoomRepository) GetByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	return r.get(code)
}

func (r *PebbleRoomRepository) SetActive(ctx context.Context, code domain.RoomCode, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.get(code)
	if err != nil {
		return err
	}
	room.Active = active
	return r.put(room)
}

func (r *PebbleRoomRepository) ListActive(ctx context.Context) ([]*domain.Room, error) {
	it, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(roomKeyPrefix),
		UpperBound: []byte("room;"), // ';' sorts right after ':'
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}
	defer func() { _ = it.Close() }()

	var rooms []*domain.Room
	for it.First(); it.Valid(); it.Next() {
		var room domain.Room
		if err := json.Unmarshal(it.Value(), &room); err != nil {
			continue
		}
		if room.Active {
			rooms = append(rooms, &room)
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}
