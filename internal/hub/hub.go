package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/metrics"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 单条入站消息的最大字节数，留出 JSON 包装的余量
	maxMessageSize = 8 * 1024

	// 订阅所有房间频道
	channelPattern = "chat-*"
)

// 内部消息类型
const (
	msgRegister   = "register"
	msgUnregister = "unregister"
	msgChat       = "chat"
)

// MessageSender 由 service.MessageService 实现，写入消息并广播
type MessageSender interface {
	SendMessage(ctx context.Context, code, userName, text string) (*domain.Message, error)
}

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type     string // "register", "unregister", "chat"
	RoomCode string
	Client   *Client
	RawData  []byte // 仅用于 chat (原始 WebSocket 消息)
}

// Hub 维护本实例上的 WebSocket 客户端，并把 Redis 频道上的广播分发给对应房间的客户端。
// 消息的写入和发布由 MessageSender 完成，hub 自己不直接向客户端转发入站消息，
// 这样多个实例上的客户端看到的顺序一致。
type Hub struct {
	messageChan chan HubMessage

	// map[roomCode]map[*Client]bool
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	sender      MessageSender
	redisClient *redis.Client

	pubsub *redis.PubSub
	subMu  sync.Mutex
}

// NewHub 创建 Hub。redisClient 为 nil 时不订阅广播，只能通过 Dispatch 投递。
func NewHub(sender MessageSender, redisClient *redis.Client) *Hub {
	if sender == nil {
		panic("MessageSender cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		sender:      sender,
		redisClient: redisClient,
	}
}

// Run 启动 Hub 的主事件处理循环，应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case msgRegister:
			h.registerClient(msg.Client)
		case msgUnregister:
			h.unregisterClient(msg.Client)
		case msgChat:
			// 写入 Redis 可能较慢，不阻塞主循环
			go h.handleClientMessage(msg)
		default:
			log.Warnf("Hub: Received unknown message type: %s in room %s", msg.Type, msg.RoomCode)
		}
	}
	log.Info("Hub is shutting down...")
}

// Subscribe 以 PSUBSCRIBE chat-* 订阅所有房间的广播，订阅确认后才返回。
func (h *Hub) Subscribe(ctx context.Context) error {
	if h.redisClient == nil {
		return errors.New("hub: redis client not configured")
	}
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.pubsub != nil {
		return nil
	}

	pubsub := h.redisClient.PSubscribe(ctx, channelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	h.pubsub = pubsub
	go h.consume(pubsub.Channel())
	logrus.WithField("pattern", channelPattern).Info("Hub subscribed to room channels")
	return nil
}

func (h *Hub) consume(ch <-chan *redis.Message) {
	for msg := range ch {
		h.Dispatch(msg.Channel, []byte(msg.Payload))
	}
	logrus.WithField("component", "hub").Info("Room channel subscription closed")
}

// StopAllSubscriptions 关闭 Redis 订阅
func (h *Hub) StopAllSubscriptions() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.pubsub == nil {
		return
	}
	if err := h.pubsub.Close(); err != nil {
		logrus.WithError(err).Warn("Hub: error closing pubsub")
	}
	h.pubsub = nil
}

// Dispatch 把频道上收到的 payload 发送给该房间在本实例上的所有客户端
func (h *Hub) Dispatch(channel string, payload []byte) {
	code, ok := domain.RoomCodeFromChannel(channel)
	if !ok {
		logrus.WithField("channel", channel).Warn("Hub: ignoring message on unexpected channel")
		return
	}
	h.broadcast(code, payload)
}

// registerClient 处理客户端注册逻辑
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": client.RoomCode(),
		"user_name": client.UserName(),
		"action":    "registerClient",
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.roomCode]; !ok {
		h.rooms[client.roomCode] = make(map[*Client]bool)
	}
	h.rooms[client.roomCode][client] = true
	h.roomsMu.Unlock()

	metrics.WebSocketConnections.Inc()
	logCtx.Info("Client registered to Hub")
}

// unregisterClient 处理客户端注销逻辑
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": client.RoomCode(),
		"user_name": client.UserName(),
		"action":    "unregisterClient",
	})

	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	roomClients, ok := h.rooms[client.roomCode]
	if !ok {
		logCtx.Warn("Room not found during client unregister")
		return
	}
	if _, ok := roomClients[client]; !ok {
		logCtx.Warn("Client not found in room during unregister")
		return
	}
	delete(roomClients, client)
	close(client.send)
	metrics.WebSocketConnections.Dec()
	if len(roomClients) == 0 {
		delete(h.rooms, client.roomCode)
		logCtx.Debug("Room empty, removed from Hub")
	}
	logCtx.Info("Client unregistered from Hub")
}

// inboundMessage 客户端可以发送纯文本，也可以发送 {"message": "..."}。
// 能解析为 JSON 对象的帧一律取 message 字段，为空时交给消息校验拒绝。
type inboundMessage struct {
	Message string `json:"message"`
}

// handleClientMessage 把客户端发来的文本作为聊天消息写入。广播经由 Redis 频道回到 hub。
func (h *Hub) handleClientMessage(msg HubMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text := string(msg.RawData)
	var in inboundMessage
	if err := json.Unmarshal(msg.RawData, &in); err == nil {
		text = in.Message
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": msg.RoomCode,
		"user_name": msg.Client.UserName(),
		"operation": "handleClientMessage",
	})
	if _, err := h.sender.SendMessage(ctx, msg.RoomCode, msg.Client.UserName(), text); err != nil {
		logCtx.WithError(err).Warn("Failed to send message from websocket client")
		msg.Client.sendError(err.Error())
		return
	}
	logCtx.Debug("Websocket message accepted")
}

// broadcast 将消息发送给指定房间的所有客户端
func (h *Hub) broadcast(code string, message []byte) {
	h.roomsMu.RLock()
	roomClients := h.rooms[code]
	clientsToSend := make([]*Client, 0, len(roomClients))
	for client := range roomClients {
		clientsToSend = append(clientsToSend, client)
	}
	// 在持有读锁时发送，避免与 unregister 中的 close(send) 竞争
	for _, client := range clientsToSend {
		select {
		case client.send <- message:
		default:
			logrus.WithFields(logrus.Fields{
				"room_code": code,
				"user_name": client.UserName(),
			}).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
	h.roomsMu.RUnlock()
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。队列已满时返回 false。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_code":    msg.RoomCode,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// ActiveRoomCodes 返回本实例上有连接的房间
func (h *Hub) ActiveRoomCodes() []string {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	codes := make([]string, 0, len(h.rooms))
	for code := range h.rooms {
		codes = append(codes, code)
	}
	return codes
}

// ClientCount 返回房间在本实例上的连接数
func (h *Hub) ClientCount(code string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[code])
}
