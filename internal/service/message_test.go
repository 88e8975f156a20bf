package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/repository/mocks"
	"ephemeral-chat/internal/service"
)

func msgAt(id, user, text string, offset time.Duration) domain.Message {
	return domain.Message{ID: id, User: user, Message: text, Timestamp: fixedNow.Add(offset)}
}

func TestMessageService_AddMessage_Success(t *testing.T) {
	state := mocks.NewStateRepository(t)
	archiver := new(mockArchiver)
	svc := service.NewMessageService(state, service.MessageServiceDeps{Archiver: archiver, Clock: fixedClock})
	ctx := context.Background()

	state.On("RoomTTL", ctx, "ABC-123").Return(5*time.Minute, nil).Once()
	state.On("PushMessage", ctx, "ABC-123", mock.MatchedBy(func(m domain.Message) bool {
		return m.ID != "" && m.User == "bob" && m.Message == "hello" && m.Timestamp.Equal(fixedNow)
	}), domain.MessageWindow, 5*time.Minute).Return(nil).Once()
	archiver.On("ArchiveMessage", ctx, "ABC-123", mock.AnythingOfType("domain.Message")).Return().Once()

	msg, err := svc.AddMessage(ctx, "ABC-123", "bob", "  hello  ")

	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Message)
	assert.Len(t, msg.ID, 36)
	archiver.AssertExpectations(t)
}

func TestMessageService_AddMessage_Validation(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		user  string
		text  string
		field string
	}{
		{"bad code", "nope", "bob", "hi", "code"},
		{"empty user", "ABC-123", " ", "hi", "name"},
		{"blank text", "ABC-123", "bob", " \n\t ", "message"},
		{"text too long", "ABC-123", "bob", strings.Repeat("x", 1001), "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := mocks.NewStateRepository(t)
			svc := service.NewMessageService(state, service.MessageServiceDeps{Clock: fixedClock})

			_, err := svc.AddMessage(context.Background(), tt.code, tt.user, tt.text)

			var vErr *service.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestMessageService_AddMessage_AcceptsMaxLength(t *testing.T) {
	state := mocks.NewStateRepository(t)
	svc := service.NewMessageService(state, service.MessageServiceDeps{Clock: fixedClock})
	ctx := context.Background()
	text := strings.Repeat("é", domain.MaxMessageLength)

	state.On("RoomTTL", ctx, "ABC-123").Return(time.Minute, nil).Once()
	state.On("PushMessage", ctx, "ABC-123", mock.Anything, domain.MessageWindow, time.Minute).Return(nil).Once()

	msg, err := svc.AddMessage(ctx, "ABC-123", "bob", text)

	require.NoError(t, err)
	assert.Equal(t, text, msg.Message)
}

func TestMessageService_AddMessage_RoomGone(t *testing.T) {
	state := mocks.NewStateRepository(t)
	svc := service.NewMessageService(state, service.MessageServiceDeps{Clock: fixedClock})
	ctx := context.Background()

	state.On("RoomTTL", ctx, "ABC-123").Return(time.Duration(-2), nil).Once()

	_, err := svc.AddMessage(ctx, "ABC-123", "bob", "hi")

	assert.ErrorIs(t, err, service.ErrRoomNotFound)
	state.AssertNotCalled(t, "PushMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMessageService_SendMessage_BroadcastFailureIsNotFatal(t *testing.T) {
	state := mocks.NewStateRepository(t)
	notifier := new(mockNotifier)
	svc := service.NewMessageService(state, service.MessageServiceDeps{Notifier: notifier, Clock: fixedClock})
	ctx := context.Background()

	state.On("RoomTTL", ctx, "ABC-123").Return(time.Minute, nil).Once()
	state.On("PushMessage", ctx, "ABC-123", mock.Anything, domain.MessageWindow, time.Minute).Return(nil).Once()
	notifier.On("NotifyMessage", mock.Anything, "ABC-123", mock.AnythingOfType("domain.Message")).
		Return(errors.New("publish failed")).Once()

	msg, err := svc.SendMessage(ctx, " ABC-123", "bob", "hi")

	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Message)
	notifier.AssertExpectations(t)
}

func TestMessageService_SendMessage_BroadcastHasDeadline(t *testing.T) {
	state := mocks.NewStateRepository(t)
	notifier := new(mockNotifier)
	svc := service.NewMessageService(state, service.MessageServiceDeps{Notifier: notifier, Clock: fixedClock})
	ctx := context.Background()

	state.On("RoomTTL", ctx, "ABC-123").Return(time.Minute, nil).Once()
	state.On("PushMessage", ctx, "ABC-123", mock.Anything, domain.MessageWindow, time.Minute).Return(nil).Once()
	notifier.On("NotifyMessage", mock.MatchedBy(func(c context.Context) bool {
		deadline, ok := c.Deadline()
		return ok && time.Until(deadline) <= 3*time.Second
	}), "ABC-123", mock.AnythingOfType("domain.Message")).Return(nil).Once()

	_, err := svc.SendMessage(ctx, "ABC-123", "bob", "hi")

	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestMessageService_GetMessages_FromCache(t *testing.T) {
	state := mocks.NewStateRepository(t)
	svc := service.NewMessageService(state, service.MessageServiceDeps{Clock: fixedClock})
	ctx := context.Background()
	newestFirst := []domain.Message{
		msgAt("3", "bob", "c", 3*time.Second),
		msgAt("2", "alice", "b", 2*time.Second),
		msgAt("1", "bob", "a", time.Second),
	}

	state.On("RecentMessages", ctx, "ABC-123", domain.DefaultMessagePageLimit).Return(newestFirst, nil).Once()

	msgs, err := svc.GetMessages(ctx, "ABC-123", 0)

	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "1", msgs[0].ID)
	assert.Equal(t, "3", msgs[2].ID)
}

func TestMessageService_GetMessages_LimitIsCapped(t *testing.T) {
	state := mocks.NewStateRepository(t)
	svc := service.NewMessageService(state, service.MessageServiceDeps{Clock: fixedClock})
	ctx := context.Background()

	state.On("RecentMessages", ctx, "ABC-123", domain.MessageWindow).Return([]domain.Message{}, nil).Once()

	msgs, err := svc.GetMessages(ctx, "ABC-123", 500)

	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessageService_GetMessages_RepopulatesFromDurableStore(t *testing.T) {
	state := mocks.NewStateRepository(t)
	rooms := new(mocks.RoomRepository)
	messages := new(mocks.MessageRepository)
	svc := service.NewMessageService(state, service.MessageServiceDeps{Rooms: rooms, Messages: messages, Clock: fixedClock})
	ctx := context.Background()
	stored := []domain.Message{
		msgAt("3", "bob", "c", 3*time.Second),
		msgAt("2", "alice", "b", 2*time.Second),
		msgAt("1", "bob", "a", time.Second),
	}

	state.On("RecentMessages", ctx, "ABC-123", 2).Return([]domain.Message{}, nil).Once()
	state.On("RoomTTL", ctx, "ABC-123").Return(4*time.Minute, nil).Once()
	messages.On("Recent", ctx, "ABC-123", domain.MessageWindow).Return(stored, nil).Once()
	state.On("ReplaceMessages", ctx, "ABC-123", stored, 4*time.Minute).Return(nil).Once()

	msgs, err := svc.GetMessages(ctx, "ABC-123", 2)

	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "2", msgs[0].ID)
	assert.Equal(t, "3", msgs[1].ID)
	// 回填使用的切片不应被反转
	assert.Equal(t, "3", stored[0].ID)
	messages.AssertExpectations(t)
}

func TestMessageService_GetMessages_ExpiredRoomSkipsDurableStore(t *testing.T) {
	state := mocks.NewStateRepository(t)
	rooms := new(mocks.RoomRepository)
	messages := new(mocks.MessageRepository)
	svc := service.NewMessageService(state, service.MessageServiceDeps{Rooms: rooms, Messages: messages, Clock: fixedClock})
	ctx := context.Background()
	expired := liveRoom("ABC-123", "alice")
	expired.ExpiresAt = fixedNow.Add(-time.Minute)

	state.On("RecentMessages", ctx, "ABC-123", domain.DefaultMessagePageLimit).Return([]domain.Message{}, nil).Once()
	state.On("RoomTTL", ctx, "ABC-123").Return(time.Duration(-2), nil).Once()
	rooms.On("FindByCode", ctx, "ABC-123").Return(expired, nil).Once()

	msgs, err := svc.GetMessages(ctx, "ABC-123", 0)

	require.NoError(t, err)
	assert.Empty(t, msgs)
	messages.AssertNotCalled(t, "Recent", mock.Anything, mock.Anything, mock.Anything)
}

func TestMessageService_CountMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("cache count", func(t *testing.T) {
		state := mocks.NewStateRepository(t)
		svc := service.NewMessageService(state, service.MessageServiceDeps{})
		state.On("MessageCount", ctx, "ABC-123").Return(int64(12), nil).Once()

		n, err := svc.CountMessages(ctx, "ABC-123")
		require.NoError(t, err)
		assert.Equal(t, int64(12), n)
	})

	t.Run("durable count is capped to the window", func(t *testing.T) {
		state := mocks.NewStateRepository(t)
		messages := new(mocks.MessageRepository)
		svc := service.NewMessageService(state, service.MessageServiceDeps{Messages: messages})
		state.On("MessageCount", ctx, "ABC-123").Return(int64(0), nil).Once()
		messages.On("CountByRoom", ctx, "ABC-123").Return(int64(250), nil).Once()

		n, err := svc.CountMessages(ctx, "ABC-123")
		require.NoError(t, err)
		assert.Equal(t, int64(domain.MessageWindow), n)
	})
}
