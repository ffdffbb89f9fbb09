package model

import "time"

type ChatCategory string

const (
	ChatCategoryRecent   ChatCategory = "recent"
	ChatCategoryArchived ChatCategory = "archived"
)

// Valid — известная категория (пустая строка не считается категорией).
func (c ChatCategory) Valid() bool {
	return c == ChatCategoryRecent || c == ChatCategoryArchived
}

// Conversation — беседа пользователя с одним ассистентом.
type Conversation struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	AgentName string       `json:"agent_name"`
	Category  ChatCategory `json:"category"`
}

// ConversationSummary — производные данные для списка бесед; не являются источником истины.
type ConversationSummary struct {
	Conversation
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Timestamp     string     `json:"timestamp"`
	UnreadCount   int        `json:"unread_count"`
	MessageCount  int        `json:"message_count"`
	Typing        bool       `json:"typing"`
	Active        bool       `json:"active"`
}
