package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"watchsync/internal/core/domain"
	"watchsync/internal/core/ports"
)

const (
	keyPrefix      = "watchsync:"
	roomKeyPrefix  = keyPrefix + "room:"
	activeRoomsKey = keyPrefix + "rooms:active"
)

type RedisRoomRepository struct {
	client *redis.Client
}

func NewRedisRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RedisRoomRepository{client: client}
}

func roomKey(code domain.RoomCode) string {
	return roomKeyPrefix + string(code)
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	created, err := r.client.SetNX(ctx, roomKey(room.Code), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set room in Redis: %w", err)
	}
	if !created {
		return domain.ErrRoomExists
	}

	if room.Active {
		if err := r.client.SAdd(ctx, activeRoomsKey, string(room.Code)).Err(); err != nil {
			return fmt.Errorf("failed to add room to active set: %w", err)
		}
	}

	return nil
}

func (r *RedisRoomRepository) GetByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	data, err := r.client.Get(ctx, roomKey(code)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", err)
	}

	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

func (r *RedisRoomRepository) SetActive(ctx context.Context, code domain.RoomCode, active bool) error {
	room, err := r.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	room.Active = active

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, roomKey(code), data, 0)
	if active {
		pipe.SAdd(ctx, activeRoomsKey, string(code))
	} else {
		pipe.SRem(ctx, activeRoomsKey, string(code))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update room state: %w", err)
	}

	return nil
}

func (r *RedisRoomRepository) ListActive(ctx context.Context) ([]*domain.Room, error) {
	codes, err := r.client.SMembers(ctx, activeRoomsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active rooms: %w", err)
	}

	rooms := make([]*domain.Room, 0, len(codes))
	for _, code := range codes {
		room, err := r.GetByCode(ctx, domain.RoomCode(code))
		if err != nil {
			// index entry without a record
			continue
		}
		if room.Active {
			rooms = append(rooms, room)
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}
