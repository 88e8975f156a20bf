package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ephemeral-chat/internal/domain"
)

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) NotifyMessage(ctx context.Context, code string, msg domain.Message) error {
	r.calls++
	return r.err
}

func testMessage() domain.Message {
	return domain.Message{
		ID:        "5f1c2d1e-0000-4000-8000-000000000001",
		User:      "alice",
		Message:   "hello",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMulti_CallsAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("kafka down")
	a := &recordingNotifier{err: errA}
	b := &recordingNotifier{}
	m := Multi{a, nil, b}

	err := m.NotifyMessage(context.Background(), "ABC-123", testMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestMulti_NoErrors(t *testing.T) {
	assert.NoError(t, Multi{&recordingNotifier{}}.NotifyMessage(context.Background(), "ABC-123", testMessage()))
	assert.NoError(t, Multi{}.NotifyMessage(context.Background(), "ABC-123", testMessage()))
}

func TestRedisNotifier_PublishesEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, "chat-ABC-123")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedisNotifier(rdb)
	require.NoError(t, n.NotifyMessage(ctx, "ABC-123", testMessage()))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chat-ABC-123", msg.Channel)

	var env domain.Envelope
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
	assert.Equal(t, "chat-ABC-123", env.Channel)
	assert.Equal(t, domain.EventIncomingMessage, env.Event)
	assert.Equal(t, "alice", env.Data.User)
	assert.Equal(t, "hello", env.Data.Message)
	assert.True(t, env.Data.Timestamp.Equal(testMessage().Timestamp))
}

func TestNewKafkaNotifier_SplitsBrokers(t *testing.T) {
	n := NewKafkaNotifier("kafka-1:9092,kafka-2:9092", "chat-messages")
	t.Cleanup(func() { _ = n.Close() })
	assert.Equal(t, "chat-messages", n.w.Topic)
	assert.NotNil(t, n.w.Addr)
	assert.True(t, n.w.Async, "kafka writes must not block the send path")
	require.NotNil(t, n.w.Completion)
	assert.NotPanics(t, func() {
		n.w.Completion([]kafka.Message{{Key: []byte("ABC-123")}}, errors.New("broker unreachable"))
		n.w.Completion(nil, nil)
	})
}
