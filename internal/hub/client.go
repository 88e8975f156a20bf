package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	roomCode string
	userName string
	send     chan []byte
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, roomCode, userName string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		roomCode: roomCode,
		userName: userName,
		send:     make(chan []byte, 256),
	}
}

// Register 请求 Hub 注册此客户端
func (c *Client) Register() bool {
	return c.hub.QueueMessage(HubMessage{Type: msgRegister, RoomCode: c.roomCode, Client: c})
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) logger() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"room_code": c.roomCode, "user_name": c.userName})
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub。在自己的 goroutine 中运行。
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.messageChan <- HubMessage{Type: msgUnregister, RoomCode: c.roomCode, Client: c}:
		case <-time.After(1 * time.Second):
			c.logger().Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		c.logger().Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logger().Debug("WebSocket connection closed normally or read error")
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger().Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.hub.QueueMessage(HubMessage{
			Type:     msgChat,
			RoomCode: c.roomCode,
			Client:   c,
			RawData:  message,
		})
	}
}

// WritePump 将消息从 send 通道泵送到 WebSocket 连接。在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger().Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了 send 通道
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger().WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger().WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

// sendError 向客户端发送一条错误事件，通道已满时丢弃
func (c *Client) sendError(reason string) {
	payload, _ := json.Marshal(map[string]string{"event": "error", "error": reason})
	c.hub.roomsMu.RLock()
	defer c.hub.roomsMu.RUnlock()
	if !c.hub.rooms[c.roomCode][c] {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) RoomCode() string { return c.roomCode }
func (c *Client) UserName() string { return c.userName }
