package domain

import "time"

// Role identifies who authored a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of a session's history
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionInfo summarizes a live session
type SessionInfo struct {
	ID           string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	LastActive   time.Time `json:"last_active"`
}
