package venuebot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// roomNumberLength is the exact digit count of a valid conference room
// number.
const roomNumberLength = 11

// ErrInvalidRoomNumber is returned when a room number isn't exactly
// eleven ASCII digits.
var ErrInvalidRoomNumber = errors.New("room number must be exactly 11 digits")

// SessionState holds the small persisted per-room fields: the current
// room number and the control message reference. It's a thin validation
// boundary over Storage - invalid values are rejected before any write.
type SessionState struct {
	store  *Storage
	logger *slog.Logger
}

func newSessionState(store *Storage, logger *slog.Logger) *SessionState {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionState{
		store:  store,
		logger: logger.With(loggerNameKey, "state"),
	}
}

func validRoomNumber(value string) bool {
	if len(value) != roomNumberLength {
		return false
	}
	for _, c := range value {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SetRoomNumber validates and persists a room number. Surrounding
// whitespace is trimmed first; anything other than exactly eleven digits
// is rejected with ErrInvalidRoomNumber, leaving the stored value
// untouched.
func (s *SessionState) SetRoomNumber(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if !validRoomNumber(value) {
		return ErrInvalidRoomNumber
	}
	if err := s.store.SaveRoomNumber(ctx, value); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "room number updated", "room_number", value)
	return nil
}

// RoomNumber returns the stored room number, or "" when unset.
func (s *SessionState) RoomNumber(ctx context.Context) string {
	return s.store.RoomNumber(ctx)
}

// SetControlMessageID records the message ID of the freshly posted host
// control message.
func (s *SessionState) SetControlMessageID(ctx context.Context, messageID string) error {
	return s.store.SaveControlMessageID(ctx, messageID)
}

// ControlMessageID returns the stored control message ID, or "" when no
// message has been posted yet. Callers treat "" (and a stale ID that no
// longer resolves) as "scan recent channel history instead".
func (s *SessionState) ControlMessageID(ctx context.Context) string {
	return s.store.ControlMessageID(ctx)
}
