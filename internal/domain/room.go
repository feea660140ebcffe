// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	MaxRoomIDLen = 64
	MaxPeerIDLen = 64
)

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
	ErrPeerIDEmpty   = errors.New("peer id empty")
	ErrPeerIDTooLong = errors.New("peer id too long")
)

type (
	RoomID string
	PeerID string
)

func ParseRoomID(raw string) (RoomID, error) {
	if len(raw) == 0 {
		return "", ErrRoomIDEmpty
	}
	if len(raw) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(raw), nil
}

func ParsePeerID(raw string) (PeerID, error) {
	if len(raw) == 0 {
		return "", ErrPeerIDEmpty
	}
	if len(raw) > MaxPeerIDLen {
		return "", ErrPeerIDTooLong
	}
	return PeerID(raw), nil
}

// RoomRecord is the CRUD-facing room entity. It exists independently of live
// signaling state; a record without a live room simply has zero participants.
type RoomRecord struct {
	ID        RoomID    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewRoomRecord(name string) RoomRecord {
	return RoomRecord{
		ID:        RoomID(uuid.NewString()),
		Name:      name,
		CreatedAt: time.Now(),
	}
}
