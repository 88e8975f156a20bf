package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ephemeral-chat/internal/domain"
)

type sentMessage struct {
	code, user, text string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, code, userName, text string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentMessage{code: code, user: userName, text: text})
	return &domain.Message{ID: "m", User: userName, Message: text}, nil
}

func (f *fakeSender) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message: %s", msg)
	default:
	}
}

func TestHub_DispatchToRoomClients(t *testing.T) {
	h := NewHub(&fakeSender{}, nil)
	alice := NewClient(h, nil, "ABC-123", "alice")
	bob := NewClient(h, nil, "ABC-123", "bob")
	other := NewClient(h, nil, "XYZ-789", "carol")
	h.registerClient(alice)
	h.registerClient(bob)
	h.registerClient(other)

	assert.Equal(t, 2, h.ClientCount("ABC-123"))
	assert.ElementsMatch(t, []string{"ABC-123", "XYZ-789"}, h.ActiveRoomCodes())

	payload := []byte(`{"channel":"chat-ABC-123","event":"incoming-message"}`)
	h.Dispatch(domain.ChannelName("ABC-123"), payload)

	assert.Equal(t, payload, receive(t, alice))
	assert.Equal(t, payload, receive(t, bob))
	assertNoMessage(t, other)
}

func TestHub_DispatchIgnoresUnexpectedChannel(t *testing.T) {
	h := NewHub(&fakeSender{}, nil)
	c := NewClient(h, nil, "ABC-123", "alice")
	h.registerClient(c)

	h.Dispatch("board:ABC-123", []byte("x"))
	h.Dispatch("chat-", []byte("x"))

	assertNoMessage(t, c)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := NewHub(&fakeSender{}, nil)
	c := NewClient(h, nil, "ABC-123", "alice")
	h.registerClient(c)
	h.unregisterClient(c)

	_, ok := <-c.send
	assert.False(t, ok)
	assert.Equal(t, 0, h.ClientCount("ABC-123"))
	assert.Empty(t, h.ActiveRoomCodes())

	// 重复注销不应 panic
	assert.NotPanics(t, func() { h.unregisterClient(c) })
}

func TestHub_HandleClientMessage(t *testing.T) {
	sender := &fakeSender{}
	h := NewHub(sender, nil)
	c := NewClient(h, nil, "ABC-123", "alice")
	h.registerClient(c)

	h.handleClientMessage(HubMessage{Type: msgChat, RoomCode: "ABC-123", Client: c, RawData: []byte(`{"message":"hello"}`)})
	assert.Equal(t, sentMessage{code: "ABC-123", user: "alice", text: "hello"}, sender.last())

	h.handleClientMessage(HubMessage{Type: msgChat, RoomCode: "ABC-123", Client: c, RawData: []byte("plain text")})
	assert.Equal(t, "plain text", sender.last().text)

	// 消息只经由广播回到客户端
	assertNoMessage(t, c)
}

func TestHub_HandleClientMessageJSONWithoutText(t *testing.T) {
	sender := &fakeSender{}
	h := NewHub(sender, nil)
	c := NewClient(h, nil, "ABC-123", "alice")
	h.registerClient(c)

	for _, frame := range []string{`{"message":""}`, `{"text":"hi"}`, `{}`} {
		h.handleClientMessage(HubMessage{Type: msgChat, RoomCode: "ABC-123", Client: c, RawData: []byte(frame)})
		require.NotEmpty(t, sender.sent, "frame %s", frame)
		assert.Equal(t, "", sender.last().text, "frame %s must not be stored as raw JSON", frame)
	}
}

func TestHub_HandleClientMessageErrorNotifiesClient(t *testing.T) {
	h := NewHub(&fakeSender{err: errors.New("room not found")}, nil)
	c := NewClient(h, nil, "ABC-123", "alice")
	h.registerClient(c)

	h.handleClientMessage(HubMessage{Type: msgChat, RoomCode: "ABC-123", Client: c, RawData: []byte("hi")})

	var event map[string]string
	require.NoError(t, json.Unmarshal(receive(t, c), &event))
	assert.Equal(t, "error", event["event"])
	assert.Equal(t, "room not found", event["error"])
}

func TestHub_SubscribeDeliversPublishedMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewHub(&fakeSender{}, rdb)
	t.Cleanup(h.StopAllSubscriptions)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Subscribe(ctx))
	require.NoError(t, h.Subscribe(ctx))

	c := NewClient(h, nil, "ABC-123", "alice")
	h.registerClient(c)

	require.NoError(t, rdb.Publish(ctx, domain.ChannelName("ABC-123"), `{"event":"incoming-message"}`).Err())
	assert.JSONEq(t, `{"event":"incoming-message"}`, string(receive(t, c)))
}

func TestHub_SubscribeWithoutRedis(t *testing.T) {
	h := NewHub(&fakeSender{}, nil)
	assert.Error(t, h.Subscribe(context.Background()))
}
