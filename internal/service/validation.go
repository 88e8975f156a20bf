package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ephemeral-chat/internal/domain"
)

func validateUserName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	n := utf8.RuneCountInString(trimmed)
	if n == 0 || n > domain.MaxUserNameLength {
		return "", newValidationError("name", fmt.Sprintf("must be between 1 and %d characters", domain.MaxUserNameLength))
	}
	return trimmed, nil
}

func validateRoomCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if !domain.ValidRoomCode(code) {
		return "", newValidationError("code", "invalid room code format, expected ABC-123")
	}
	return code, nil
}

func validateDuration(minutes int) error {
	if minutes < domain.MinDurationMinutes || minutes > domain.MaxDurationMinutes {
		return newValidationError("duration", fmt.Sprintf("must be between %d and %d minutes", domain.MinDurationMinutes, domain.MaxDurationMinutes))
	}
	return nil
}

// normalizeParticipants 0 表示使用默认上限
func normalizeParticipants(count int) (int, error) {
	if count == 0 {
		return domain.DefaultParticipants, nil
	}
	if count < domain.MinParticipants || count > domain.MaxParticipants {
		return 0, newValidationError("participantsCount", fmt.Sprintf("must be between %d and %d", domain.MinParticipants, domain.MaxParticipants))
	}
	return count, nil
}

func validateMessageText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", newValidationError("message", "message cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > domain.MaxMessageLength {
		return "", newValidationError("message", fmt.Sprintf("message too long (max %d characters)", domain.MaxMessageLength))
	}
	return trimmed, nil
}
