package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ephemeral-chat/internal/dto"
	redisstate "ephemeral-chat/internal/infra/state/redis"
	"ephemeral-chat/internal/service"
)

// newTestRouter 用 miniredis 组装只依赖缓存的服务和路由
func newTestRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	state := redisstate.NewRedisStateRepository(client, "h:")
	presence := service.NewPresenceService(state)
	messages := service.NewMessageService(state, service.MessageServiceDeps{})
	rooms := service.NewRoomService(state, nil, presence, messages, nil, service.RoomOptions{MaxExtendMinutes: 60})

	roomHandler := NewRoomHandler(rooms, presence)
	messageHandler := NewMessageHandler(messages)
	cleanupHandler := NewCleanupHandler(service.NewSweepService(nil, state, nil))

	r := gin.New()
	api := r.Group("/api")
	api.POST("/rooms", roomHandler.CreateRoom)
	api.POST("/rooms/join", roomHandler.JoinRoom)
	api.POST("/rooms/leave", roomHandler.LeaveRoom)
	api.POST("/rooms/extend", roomHandler.ExtendRoom)
	api.GET("/rooms/:code", roomHandler.GetRoomInfo)
	api.GET("/rooms/:code/exists", roomHandler.RoomExists)
	api.GET("/rooms/:code/online", roomHandler.OnlineUsers)
	api.POST("/messages/send", messageHandler.SendMessage)
	api.GET("/messages/:code", messageHandler.GetMessages)
	api.POST("/cron/cleanup", cleanupHandler.Cleanup)
	return r, mr
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func createRoom(t *testing.T, r http.Handler, name string, capacity int) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/rooms", dto.CreateRoomRequest{Name: name, Duration: 30, ParticipantsCount: capacity})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.CreateRoomResponse](t, w)
	assert.Equal(t, "Room Created Successfully", resp.Message)
	return resp.Code
}

func TestCreateRoom(t *testing.T) {
	r, _ := newTestRouter(t)

	code := createRoom(t, r, "alice", 0)

	assert.Regexp(t, `^[A-Z0-9]{3}-[A-Z0-9]{3}$`, code)
}

func TestCreateRoom_ValidationError(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/rooms", dto.CreateRoomRequest{Name: "alice", Duration: 0})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[dto.ErrorResponse](t, w)
	assert.Equal(t, service.KindValidation, resp.Kind)
	assert.Contains(t, resp.Error, "duration")
}

func TestCreateRoom_MalformedBody(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func TestJoinRoom(t *testing.T) {
	r, _ := newTestRouter(t)
	code := createRoom(t, r, "alice", 2)

	w := doJSON(t, r, http.MethodPost, "/api/rooms/join", dto.RoomMemberRequest{Code: code, Name: "bob"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.JoinRoomResponse](t, w)
	assert.Equal(t, "Joined the Room Successfully", resp.Message)
	assert.Equal(t, []string{"alice", "bob"}, resp.Room.Participants)

	w = doJSON(t, r, http.MethodPost, "/api/rooms/join", dto.RoomMemberRequest{Code: code, Name: "carol"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, service.KindForbidden, decode[dto.ErrorResponse](t, w).Kind)

	w = doJSON(t, r, http.MethodPost, "/api/rooms/join", dto.RoomMemberRequest{Code: "ZZZ-999", Name: "carol"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, service.KindNotFound, decode[dto.ErrorResponse](t, w).Kind)
}

func TestRoomInfoExistsOnlineAndLeave(t *testing.T) {
	r, _ := newTestRouter(t)
	code := createRoom(t, r, "alice", 0)
	doJSON(t, r, http.MethodPost, "/api/rooms/join", dto.RoomMemberRequest{Code: code, Name: "bob"})

	w := doJSON(t, r, http.MethodGet, "/api/rooms/"+code, nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[map[string]interface{}](t, w)
	assert.Equal(t, code, info["code"])
	assert.EqualValues(t, 1800, info["remainingSeconds"])
	assert.ElementsMatch(t, []interface{}{"alice", "bob"}, info["onlineUsers"])

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+code+"/exists", nil)
	assert.True(t, decode[dto.RoomExistsResponse](t, w).Exists)
	w = doJSON(t, r, http.MethodGet, "/api/rooms/AAA-000/exists", nil)
	assert.False(t, decode[dto.RoomExistsResponse](t, w).Exists)

	w = doJSON(t, r, http.MethodPost, "/api/rooms/leave", dto.RoomMemberRequest{Code: code, Name: "bob"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.SuccessResponse](t, w).Success)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+code+"/online", nil)
	online := decode[dto.OnlineUsersResponse](t, w)
	assert.Equal(t, []string{"alice"}, online.Users)
	assert.Equal(t, 1, online.Count)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/AAA-000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtendRoom(t *testing.T) {
	r, mr := newTestRouter(t)
	code := createRoom(t, r, "alice", 0)

	w := doJSON(t, r, http.MethodPost, "/api/rooms/extend", dto.ExtendRoomRequest{Code: code, Minutes: 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[dto.ExtendRoomResponse](t, w).Success)
	assert.Equal(t, 40*60, int(mr.TTL("h:room:"+code).Seconds()))

	w = doJSON(t, r, http.MethodPost, "/api/rooms/extend", dto.ExtendRoomRequest{Code: code, Minutes: 61})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/rooms/extend", dto.ExtendRoomRequest{Code: "AAA-000", Minutes: 5})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendAndListMessages(t *testing.T) {
	r, _ := newTestRouter(t)
	code := createRoom(t, r, "alice", 0)

	for _, text := range []string{"first", "second", "third"} {
		w := doJSON(t, r, http.MethodPost, "/api/messages/send", dto.SendMessageRequest{RoomCode: code, UserName: "alice", Message: text})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.True(t, decode[dto.SendMessageResponse](t, w).Success)
	}

	w := doJSON(t, r, http.MethodGet, "/api/messages/"+code, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.MessagesResponse](t, w)
	assert.True(t, resp.Success)
	require.Equal(t, 3, resp.Count)
	assert.Equal(t, "first", resp.Messages[0].Message)
	assert.Equal(t, "third", resp.Messages[2].Message)

	w = doJSON(t, r, http.MethodGet, "/api/messages/"+code+"?limit=2", nil)
	resp = decode[dto.MessagesResponse](t, w)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "second", resp.Messages[0].Message)

	w = doJSON(t, r, http.MethodGet, "/api/messages/"+code+"?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessage_Errors(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/messages/send", dto.SendMessageRequest{RoomCode: "ABC-123", UserName: "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", decode[dto.ErrorResponse](t, w).Error)

	w = doJSON(t, r, http.MethodPost, "/api/messages/send", dto.SendMessageRequest{RoomCode: "ABC-123", UserName: "bob", Message: "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCleanup(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/cron/cleanup", nil)

	require.Equal(t, http.StatusOK, w.Code)
	result := decode[service.SweepResult](t, w)
	assert.Zero(t, result.DeletedCount)
	assert.Empty(t, result.Errors)
}
