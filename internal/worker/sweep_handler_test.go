package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/repository/mocks"
	"ephemeral-chat/internal/service"
	"ephemeral-chat/internal/tasks"
)

var sweepNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSweepHandler(t *testing.T) (*SweepHandler, *mocks.RoomRepository) {
	t.Helper()
	rooms := new(mocks.RoomRepository)
	t.Cleanup(func() { rooms.AssertExpectations(t) })
	sweeper := service.NewSweepService(rooms, nil, func() time.Time { return sweepNow })
	return NewSweepHandler(sweeper), rooms
}

func TestSweepHandler_PartialFailureStillSucceeds(t *testing.T) {
	h, rooms := newSweepHandler(t)
	rooms.On("MarkInactive", mock.Anything, sweepNow).Return(int64(2), nil).Once()
	rooms.On("FindExpired", mock.Anything, sweepNow).Return([]domain.Room{{Code: "AAA-111"}, {Code: "BBB-222"}}, nil).Once()
	rooms.On("DeleteByCode", mock.Anything, "AAA-111").Return(nil).Once()
	rooms.On("DeleteByCode", mock.Anything, "BBB-222").Return(errors.New("locked")).Once()

	assert.NoError(t, h.ProcessTask(context.Background(), tasks.NewRoomSweepTask()))
}

func TestSweepHandler_ListFailureIsReturned(t *testing.T) {
	h, rooms := newSweepHandler(t)
	rooms.On("MarkInactive", mock.Anything, sweepNow).Return(int64(0), nil).Once()
	rooms.On("FindExpired", mock.Anything, sweepNow).Return(nil, errors.New("db down")).Once()

	assert.Error(t, h.ProcessTask(context.Background(), tasks.NewRoomSweepTask()))
}
