package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/domain"
	"ephemeral-chat/internal/metrics"
)

// KafkaNotifier 把消息事件写入 Kafka topic，key 为房间码，同一房间的事件保持有序。
type KafkaNotifier struct {
	w *kafka.Writer
}

// NewKafkaNotifier brokers 为逗号分隔的地址列表。
// writer 以异步模式运行，WriteMessages 只负责入队，写入失败在 Completion 回调中记录。
func NewKafkaNotifier(brokers, topic string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   logCompletion(topic),
	}
	return &KafkaNotifier{w: w}
}

func logCompletion(topic string) func(messages []kafka.Message, err error) {
	return func(messages []kafka.Message, err error) {
		if err == nil {
			return
		}
		metrics.BroadcastFailures.Add(float64(len(messages)))
		logrus.WithFields(logrus.Fields{
			"topic": topic,
			"count": len(messages),
		}).WithError(err).Warn("Failed to deliver messages to kafka")
	}
}

// NotifyMessage 写入一条 incoming-message 事件
func (n *KafkaNotifier) NotifyMessage(ctx context.Context, code string, msg domain.Message) error {
	env := domain.Envelope{
		Channel: domain.ChannelName(code),
		Event:   domain.EventIncomingMessage,
		Data:    msg,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("notify: marshal envelope for room %s: %w", code, err)
	}
	err = n.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(code),
		Value: payload,
		Time:  msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("notify: write kafka message for room %s: %w", code, err)
	}
	return nil
}

// Close 关闭底层 writer
func (n *KafkaNotifier) Close() error { return n.w.Close() }
