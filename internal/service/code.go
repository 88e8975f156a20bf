package service

import (
	"crypto/rand"
	"fmt"

	"ephemeral-chat/internal/domain"
)

const (
	roomCodeCharset     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeSymbols     = 6
	maxCodeAttempts     = 10
	// 大于等于该值的随机字节会被丢弃，避免取模偏差
	roomCodeRejectAbove = 256 - 256%len(roomCodeCharset)
)

// GenerateRoomCode 生成 XXX-XXX 格式的随机房间码。不保证唯一。
func GenerateRoomCode() (string, error) {
	symbols := make([]byte, 0, roomCodeSymbols)
	buf := make([]byte, roomCodeSymbols*2)
	for len(symbols) < roomCodeSymbols {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= roomCodeRejectAbove {
				continue
			}
			symbols = append(symbols, roomCodeCharset[int(b)%len(roomCodeCharset)])
			if len(symbols) == roomCodeSymbols {
				break
			}
		}
	}
	return string(symbols[:3]) + "-" + string(symbols[3:]), nil
}

// ValidRoomCode 检查房间码格式
func ValidRoomCode(code string) bool {
	return domain.ValidRoomCode(code)
}
