package repositories

import (
	"context"
	"errors"

	"watchsync/internal/core/domain"
	"watchsync/internal/core/ports"
	"watchsync/pkg/tracing"
)

// tracedRoomRepository records a client span per storage call. Not-found and
// already-exists results are outcomes, not span errors.
type tracedRoomRepository struct {
	inner  ports.RoomRepository
	driver string
}

func newTracedRoomRepository(inner ports.RoomRepository, driver string) ports.RoomRepository {
	return &tracedRoomRepository{inner: inner, driver: driver}
}

func (r *tracedRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	ctx, span := tracing.TraceStorageOperation(ctx, r.driver, "create")
	defer span.End()
	span.SetAttributes(tracing.RoomIDKey.String(string(room.Code)))

	err := r.inner.Create(ctx, room)
	r.record(ctx, err)
	return err
}

func (r *tracedRoomRepository) GetByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	ctx, span := tracing.TraceStorageOperation(ctx, r.driver, "get")
	defer span.End()
	span.SetAttributes(tracing.RoomIDKey.String(string(code)))

	room, err := r.inner.GetByCode(ctx, code)
	r.record(ctx, err)
	return room, err
}

func (r *tracedRoomRepository) SetActive(ctx context.Context, code domain.RoomCode, active bool) error {
	ctx, span := tracing.TraceStorageOperation(ctx, r.driver, "set_active")
	defer span.End()
	span.SetAttributes(tracing.RoomIDKey.String(string(code)))

	err := r.inner.SetActive(ctx, code, active)
	r.record(ctx, err)
	return err
}

func (r *tracedRoomRepository) ListActive(ctx context.Context) ([]*domain.Room, error) {
	ctx, span := tracing.TraceStorageOperation(ctx, r.driver, "list_active")
	defer span.End()

	rooms, err := r.inner.ListActive(ctx)
	r.record(ctx, err)
	return rooms, err
}

func (r *tracedRoomRepository) record(ctx context.Context, err error) {
	if err == nil || errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrRoomExists) {
		return
	}
	tracing.RecordError(ctx, err)
}
