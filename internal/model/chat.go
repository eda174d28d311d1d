package model

import "time"

// ChatMessage mirrors `chat_messages`. Messages are append-only and listed
// oldest first.
type ChatMessage struct {
	ID          string           `json:"id"`
	SenderID    string           `json:"sender_id"`
	Message     string           `json:"message"`
	CreatedAt   time.Time        `json:"created_at"`
	FamilyCode  string           `json:"family_code"`
	ProfileData *ProfileSnapshot `json:"profile_data,omitempty"`
}
