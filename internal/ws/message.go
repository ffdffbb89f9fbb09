package ws

import (
	"github.com/iseevalue/chat/internal/conversation"
	"github.com/iseevalue/chat/internal/model"
)

type EventType string

const (
	EventNewMessage    EventType = "new_message"
	EventChatOpened    EventType = "chat_opened"
	EventMessageStatus EventType = "message_status"
	EventTyping        EventType = "typing"
	EventChatCreated   EventType = "chat_created"
	EventChatUpdated   EventType = "chat_updated"
	EventError         EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type    EventType `json:"type"`
	ChatID  string    `json:"chat_id,omitempty"`
	Content string    `json:"content,omitempty"`

	// Id returned by POST /api/files/upload.
	AttachmentID string `json:"attachment_id,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// NewMessagePayload is broadcast when a user message or an assistant reply is appended.
type NewMessagePayload struct {
	ChatID  string        `json:"chat_id"`
	Message model.Message `json:"message"`
}

// MessageStatusPayload is broadcast when one or more messages change status.
type MessageStatusPayload struct {
	ChatID     string              `json:"chat_id"`
	MessageIDs []int               `json:"message_ids"`
	Status     model.MessageStatus `json:"status"`
}

// TypingPayload is broadcast while an assistant reply is pending.
type TypingPayload struct {
	ChatID string `json:"chat_id"`
	Typing bool   `json:"typing"`
}

// ChatPayload carries the refreshed list entry of a conversation.
type ChatPayload struct {
	Chat model.ConversationSummary `json:"chat"`
}

// outgoingFromEvent maps a store event onto the wire format.
func outgoingFromEvent(ev conversation.Event) (OutgoingMessage, bool) {
	switch ev.Type {
	case conversation.EventMessageCreated:
		if ev.Message == nil {
			return OutgoingMessage{}, false
		}
		return OutgoingMessage{Type: EventNewMessage, Payload: NewMessagePayload{ChatID: ev.ConversationID, Message: *ev.Message}}, true
	case conversation.EventStatusChanged:
		return OutgoingMessage{Type: EventMessageStatus, Payload: MessageStatusPayload{
			ChatID:     ev.ConversationID,
			MessageIDs: ev.MessageIDs,
			Status:     ev.Status,
		}}, true
	case conversation.EventTyping:
		return OutgoingMessage{Type: EventTyping, Payload: TypingPayload{ChatID: ev.ConversationID, Typing: ev.Typing}}, true
	case conversation.EventConversationCreated, conversation.EventConversationUpdated:
		if ev.Summary == nil {
			return OutgoingMessage{}, false
		}
		t := EventChatUpdated
		if ev.Type == conversation.EventConversationCreated {
			t = EventChatCreated
		}
		return OutgoingMessage{Type: t, Payload: ChatPayload{Chat: *ev.Summary}}, true
	}
	return OutgoingMessage{}, false
}
