package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchsync/internal/core/domain"
	"watchsync/internal/infrastructure/repositories/memory"
)

type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRoomRepository) GetByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	args := m.Called(ctx, code)
	if r, ok := args.Get(0).(*domain.Room); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoomRepository) SetActive(ctx context.Context, code domain.RoomCode, active bool) error {
	args := m.Called(ctx, code, active)
	return args.Error(0)
}

func (m *MockRoomRepository) ListActive(ctx context.Context) ([]*domain.Room, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.Room), args.Error(1)
}

func sequenceCodes(codes ...domain.RoomCode) func() (domain.RoomCode, error) {
	i := 0
	return func() (domain.RoomCode, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func TestRoomService_CreateRoom(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewRoomService(memory.NewMemoryRoomRepository(), zap.NewNop().Sugar(), WithClock(func() time.Time { return fixed }))

	room, err := svc.CreateRoom(context.Background(), "  alice ")
	require.NoError(t, err)

	assert.True(t, room.Code.Valid())
	assert.Equal(t, "alice", room.CreatedBy)
	assert.Equal(t, fixed, room.CreatedAt)
	assert.True(t, room.Active)
}

func TestRoomService_CreateRoom_RetriesCollision(t *testing.T) {
	repo := memory.NewMemoryRoomRepository()
	require.NoError(t, repo.Create(context.Background(), &domain.Room{Code: "TAKEN1", Active: true}))

	svc := NewRoomService(repo, zap.NewNop().Sugar(), WithCodeGenerator(sequenceCodes("TAKEN1", "TAKEN1", "FRESH1")))

	room, err := svc.CreateRoom(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomCode("FRESH1"), room.Code)
}

func TestRoomService_CreateRoom_GivesUpAfterCollisions(t *testing.T) {
	repo := new(MockRoomRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrRoomExists)

	svc := NewRoomService(repo, zap.NewNop().Sugar(), WithCodeGenerator(sequenceCodes("SAME01")))

	_, err := svc.CreateRoom(context.Background(), "bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRoomExists)
	repo.AssertNumberOfCalls(t, "Create", maxCodeAttempts)
}

func TestRoomService_CreateRoom_StoreFailureNotRetried(t *testing.T) {
	repo := new(MockRoomRepository)
	storeErr := errors.New("disk full")
	repo.On("Create", mock.Anything, mock.Anything).Return(storeErr)

	svc := NewRoomService(repo, zap.NewNop().Sugar())

	_, err := svc.CreateRoom(context.Background(), "bob")
	assert.ErrorIs(t, err, storeErr)
	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestRoomService_GetRoom(t *testing.T) {
	svc := NewRoomService(memory.NewMemoryRoomRepository(), zap.NewNop().Sugar(), WithCodeGenerator(sequenceCodes("ABC123")))
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, "alice")
	require.NoError(t, err)

	t.Run("case insensitive", func(t *testing.T) {
		room, err := svc.GetRoom(ctx, " abc123 ")
		require.NoError(t, err)
		assert.Equal(t, domain.RoomCode("ABC123"), room.Code)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := svc.GetRoom(ctx, "ZZZ999")
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := svc.GetRoom(ctx, "abc")
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	})

	t.Run("closed", func(t *testing.T) {
		require.NoError(t, svc.CloseRoom(ctx, "abc123"))
		_, err := svc.GetRoom(ctx, "ABC123")
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	})
}

func TestRoomService_ListRooms(t *testing.T) {
	repo := new(MockRoomRepository)
	rooms := []*domain.Room{{Code: "ROOM01", Active: true}}
	repo.On("ListActive", mock.Anything).Return(rooms, nil)

	svc := NewRoomService(repo, zap.NewNop().Sugar())
	got, err := svc.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rooms, got)
}

func TestRoomService_CloseRoom_Unknown(t *testing.T) {
	svc := NewRoomService(memory.NewMemoryRoomRepository(), zap.NewNop().Sugar())
	assert.ErrorIs(t, svc.CloseRoom(context.Background(), "NONE00"), domain.ErrRoomNotFound)
	assert.ErrorIs(t, svc.CloseRoom(context.Background(), "bad"), domain.ErrRoomNotFound)
}
