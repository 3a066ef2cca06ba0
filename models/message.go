package models

import "time"

// Envelope is the canonical message shape carried over the pub/sub transport.
// Every adapter publishes and consumes this same JSON, tagged with the room it
// targets.
type Envelope struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name,omitempty"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}
