package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeParticipants(t *testing.T) {
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{0, 5, false},
		{2, 2, false},
		{50, 50, false},
		{1, 0, true},
		{51, 0, true},
		{-3, 0, true},
	}
	for _, tt := range tests {
		got, err := normalizeParticipants(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %d", tt.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidateUserName(t *testing.T) {
	name, err := validateUserName("  Zoë  ")
	assert.NoError(t, err)
	assert.Equal(t, "Zoë", name)

	_, err = validateUserName("")
	assert.Error(t, err)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{newValidationError("name", "bad"), KindValidation},
		{fmt.Errorf("wrapped: %w", ErrRoomNotFound), KindNotFound},
		{ErrRoomExpired, KindGone},
		{ErrRoomFull, KindForbidden},
		{ErrRoomBusy, KindConflict},
		{ErrCodeAllocation, KindAllocation},
		{ErrInternalServer, KindInternal},
		{errors.New("anything else"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "error %v", tt.err)
	}
}
