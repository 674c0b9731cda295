package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"watchsync/internal/core/domain"
	"watchsync/internal/core/ports"
	"watchsync/pkg/retry"
)

// collisions against a 36^6 code space are rare; a handful of attempts is plenty
const maxCodeAttempts = 5

type roomService struct {
	repo    ports.RoomRepository
	logger  *zap.SugaredLogger
	now     func() time.Time
	newCode func() (domain.RoomCode, error)
}

type RoomServiceOption func(*roomService)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) RoomServiceOption {
	return func(s *roomService) { s.now = now }
}

// WithCodeGenerator overrides room code generation.
func WithCodeGenerator(gen func() (domain.RoomCode, error)) RoomServiceOption {
	return func(s *roomService) { s.newCode = gen }
}

func NewRoomService(repo ports.RoomRepository, logger *zap.SugaredLogger, opts ...RoomServiceOption) ports.RoomService {
	s := &roomService{
		repo:    repo,
		logger:  logger,
		now:     time.Now,
		newCode: domain.GenerateRoomCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *roomService) CreateRoom(ctx context.Context, createdBy string) (*domain.Room, error) {
	cfg := retry.Config{
		Enabled:      true,
		MaxAttempts:  maxCodeAttempts - 1,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2,
		RetryOn:      []error{domain.ErrRoomExists},
	}

	room, err := retry.Do(ctx, cfg, func() (*domain.Room, error) {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		room := &domain.Room{
			Code:      code,
			CreatedBy: strings.TrimSpace(createdBy),
			CreatedAt: s.now().UTC(),
			Active:    true,
		}
		if err := s.repo.Create(ctx, room); err != nil {
			if errors.Is(err, domain.ErrRoomExists) {
				s.logger.Debugw("room code collision", "room_id", code)
			}
			return nil, err
		}
		return room, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	s.logger.Infow("room created", "room_id", room.Code, "created_by", room.CreatedBy)
	return room, nil
}

func (s *roomService) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	normalized := domain.NormalizeRoomCode(code)
	if !normalized.Valid() {
		return nil, domain.ErrRoomNotFound
	}

	room, err := s.repo.GetByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *roomService) CloseRoom(ctx context.Context, code string) error {
	normalized := domain.NormalizeRoomCode(code)
	if !normalized.Valid() {
		return domain.ErrRoomNotFound
	}
	if err := s.repo.SetActive(ctx, normalized, false); err != nil {
		return err
	}
	s.logger.Infow("room closed", "room_id", normalized)
	return nil
}

func (s *roomService) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	return s.repo.ListActive(ctx)
}
