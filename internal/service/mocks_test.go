package service_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"ephemeral-chat/internal/domain"
)

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) ArchiveRoom(ctx context.Context, room domain.Room) {
	m.Called(ctx, room)
}

func (m *mockArchiver) ArchiveParticipant(ctx context.Context, code, userName string, online bool, at time.Time) {
	m.Called(ctx, code, userName, online, at)
}

func (m *mockArchiver) ArchiveExpiry(ctx context.Context, code string, expiresAt time.Time, duration int) {
	m.Called(ctx, code, expiresAt, duration)
}

func (m *mockArchiver) ArchiveMessage(ctx context.Context, code string, msg domain.Message) {
	m.Called(ctx, code, msg)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyMessage(ctx context.Context, code string, msg domain.Message) error {
	return m.Called(ctx, code, msg).Error(0)
}

// fixedNow 测试中统一使用的时间点
var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }
