package domain

import "time"

// Message is a chat message owned by exactly one room.
// A nil DestructionTime means the message never expires.
type Message struct {
	RoomID          string
	MessageID       string
	DestructionTime *time.Time
	Payload         string
}

// MessageRef identifies a message across all rooms.
type MessageRef struct {
	RoomID    string
	MessageID string
}
