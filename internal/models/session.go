package models

import "time"

// Bubble is one rendered chat message as shown to the user.
type Bubble struct {
	Key     string `json:"key"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	IsUser  bool   `json:"is_user"`
}

// Transcript is the rendered state of a session after one UI event.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Bubbles   []Bubble  `json:"bubbles"`
	Errors    []string  `json:"errors"`
	Notice    string    `json:"notice,omitempty"`
	Processed int       `json:"processed"`
	Count     int       `json:"count"`
	Pending   bool      `json:"pending"`
	UpdatedAt time.Time `json:"updated_at"`
}
