package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/repository"
	"ephemeral-chat/internal/repository/mocks"
	"ephemeral-chat/internal/service"
)

func TestArchiveService_PersistRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate is treated as success", func(t *testing.T) {
		rooms := new(mocks.RoomRepository)
		svc := service.NewArchiveService(rooms, new(mocks.MessageRepository))
		rooms.On("Create", ctx, mock.MatchedBy(func(r *domain.Room) bool { return r.IsActive })).
			Return(repository.ErrDuplicateEntry).Once()

		assert.NoError(t, svc.PersistRoom(ctx, liveRoom("ABC-123", "alice")))
		rooms.AssertExpectations(t)
	})

	t.Run("other errors are returned", func(t *testing.T) {
		rooms := new(mocks.RoomRepository)
		svc := service.NewArchiveService(rooms, new(mocks.MessageRepository))
		rooms.On("Create", ctx, mock.Anything).Return(errors.New("disk full")).Once()

		err := svc.PersistRoom(ctx, liveRoom("ABC-123", "alice"))
		assert.ErrorContains(t, err, "disk full")
	})
}

func TestArchiveService_PersistMessageUpdatesCount(t *testing.T) {
	rooms := new(mocks.RoomRepository)
	messages := new(mocks.MessageRepository)
	svc := service.NewArchiveService(rooms, messages)
	ctx := context.Background()
	msg := msgAt("m-1", "bob", "hi", 0)

	messages.On("Save", ctx, "ABC-123", msg).Return(nil).Once()
	messages.On("CountByRoom", ctx, "ABC-123").Return(int64(3), nil).Once()
	rooms.On("UpdateMessageCount", ctx, "ABC-123", int64(3)).Return(nil).Once()

	require.NoError(t, svc.PersistMessage(ctx, "ABC-123", msg))
	rooms.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestInlineArchiver_SwallowsErrors(t *testing.T) {
	rooms := new(mocks.RoomRepository)
	archiver := service.NewInlineArchiver(service.NewArchiveService(rooms, new(mocks.MessageRepository)))
	ctx := context.Background()

	rooms.On("UpsertParticipant", ctx, "ABC-123", "bob", true, fixedNow).Return(errors.New("timeout")).Once()
	rooms.On("UpdateExpiry", ctx, "ABC-123", fixedNow, 45).Return(repository.ErrRoomNotFound).Once()

	assert.NotPanics(t, func() {
		archiver.ArchiveParticipant(ctx, "ABC-123", "bob", true, fixedNow)
		archiver.ArchiveExpiry(ctx, "ABC-123", fixedNow, 45)
	})
	rooms.AssertExpectations(t)
}
