package models

import "time"

// Message is one push published through the hub. Data is carried to
// listeners unmodified; an empty Event means the default "message" type.
type Message struct {
	ID        string    `json:"id"`
	Event     string    `json:"event,omitempty"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}
