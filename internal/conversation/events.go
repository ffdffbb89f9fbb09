package conversation

import "github.com/iseevalue/chat/internal/model"

type EventType string

const (
	EventMessageCreated      EventType = "message_created"
	EventStatusChanged       EventType = "status_changed"
	EventTyping              EventType = "typing"
	EventConversationCreated EventType = "conversation_created"
	EventConversationUpdated EventType = "conversation_updated"
)

// Event — уведомление об изменении состояния стора.
type Event struct {
	Type           EventType                  `json:"type"`
	ConversationID string                     `json:"conversation_id"`
	Message        *model.Message             `json:"message,omitempty"`
	MessageIDs     []int                      `json:"message_ids,omitempty"`
	Status         model.MessageStatus        `json:"status,omitempty"`
	Typing         bool                       `json:"typing"`
	Summary        *model.ConversationSummary `json:"summary,omitempty"`
}

// Subscription — буферизованная лента событий. Медленный подписчик теряет события,
// стор при этом не блокируется.
type Subscription struct {
	C  <-chan Event
	ch chan Event
	s  *Store
}

// Close отписывает и закрывает C. Повторный вызов безопасен.
func (sub *Subscription) Close() {
	sub.s.mu.Lock()
	defer sub.s.mu.Unlock()
	sub.s.unsubscribeLocked(sub)
}

// Observer получает счётчики конвейера (метрики). Методы вызываются под блокировкой стора.
type Observer interface {
	Submitted()
	Rejected(reason string)
	Transitioned(to model.MessageStatus)
	Replied()
	Pending(n int)
}

type nopObserver struct{}

func (nopObserver) Submitted() {}
func (nopObserver) Rejected(string) {}
func (nopObserver) Transitioned(model.MessageStatus) {}
func (nopObserver) Replied() {}
func (nopObserver) Pending(int) {}
