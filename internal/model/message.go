package model

import "time"

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type MessageStatus string

const (
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// statusRank задаёт порядок статусов; неизвестный статус имеет ранг -1.
var statusRank = map[MessageStatus]int{
	MessageStatusSending:   0,
	MessageStatusSent:      1,
	MessageStatusDelivered: 2,
	MessageStatusRead:      3,
}

// Valid сообщает, является ли статус одним из известных.
func (s MessageStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

func (s MessageStatus) rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// Next возвращает единственный допустимый следующий статус. Для read (конечный) — false.
func (s MessageStatus) Next() (MessageStatus, bool) {
	switch s {
	case MessageStatusSending:
		return MessageStatusSent, true
	case MessageStatusSent:
		return MessageStatusDelivered, true
	case MessageStatusDelivered:
		return MessageStatusRead, true
	}
	return "", false
}

// CanAdvanceTo — true только для шага на один статус вперёд.
func (s MessageStatus) CanAdvanceTo(to MessageStatus) bool {
	next, ok := s.Next()
	return ok && next == to
}

// Before сообщает, что s строго раньше to в цепочке sending → sent → delivered → read.
func (s MessageStatus) Before(to MessageStatus) bool {
	return s.Valid() && to.Valid() && s.rank() < to.rank()
}

// Attachment — выбранный пользователем файл: имя для отображения и ссылка на содержимое.
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// Message — сообщение внутри беседы. ID уникален только в пределах беседы.
type Message struct {
	ID         int           `json:"id"`
	Sender     Sender        `json:"sender"`
	Content    string        `json:"content"`
	CreatedAt  time.Time     `json:"created_at"`
	Timestamp  string        `json:"timestamp"`
	Status     MessageStatus `json:"status"`
	Attachment *Attachment   `json:"attachment,omitempty"`
}

// TimestampLayout — формат времени для отображения в ленте ("03:04 PM").
const TimestampLayout = "03:04 PM"

// Clone возвращает копию, не разделяющую вложение с исходным сообщением.
func (m Message) Clone() Message {
	if m.Attachment != nil {
		att := *m.Attachment
		m.Attachment = &att
	}
	return m
}
