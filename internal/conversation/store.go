// Package conversation хранит беседы и их сообщения и прогоняет каждое отправленное
// сообщение по цепочке статусов sending → sent → delivered → read по таймерам планировщика.
package conversation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/iseevalue/chat/internal/logger"
	"github.com/iseevalue/chat/internal/model"
	"github.com/iseevalue/chat/internal/scheduler"
)

const (
	DefaultSentDelay      = 1 * time.Second
	DefaultDeliveredDelay = 2 * time.Second
	DefaultReplyDelay     = 3 * time.Second

	defaultEventBuffer = 64
	previewLen         = 48
	defaultAgentName   = "Assistant"
)

// Options — параметры стора. Задержки отсчитываются от момента отправки
// и должны строго возрастать: SentDelay < DeliveredDelay < ReplyDelay.
type Options struct {
	SentDelay      time.Duration
	DeliveredDelay time.Duration
	ReplyDelay     time.Duration
	EventBuffer    int
	Reply          ReplyFunc
	Observer       Observer
}

func (o Options) withDefaults() Options {
	if o.SentDelay <= 0 {
		o.SentDelay = DefaultSentDelay
	}
	if o.DeliveredDelay <= 0 {
		o.DeliveredDelay = DefaultDeliveredDelay
	}
	if o.ReplyDelay <= 0 {
		o.ReplyDelay = DefaultReplyDelay
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = defaultEventBuffer
	}
	if o.Reply == nil {
		o.Reply = Reply
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	return o
}

// Validate проверяет порядок задержек.
func (o Options) Validate() error {
	o = o.withDefaults()
	if !(o.SentDelay < o.DeliveredDelay && o.DeliveredDelay < o.ReplyDelay) {
		return fmt.Errorf("pipeline delays must increase: sent=%v delivered=%v reply=%v",
			o.SentDelay, o.DeliveredDelay, o.ReplyDelay)
	}
	return nil
}

type conversation struct {
	meta     model.Conversation
	messages []model.Message
	nextID   int
	unread   int
	// pendingReplies — сколько ответов ассистента ещё ожидается (индикатор набора).
	pendingReplies int
}

func (c *conversation) find(id int) *model.Message {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			return &c.messages[i]
		}
	}
	return nil
}

func (c *conversation) append(m model.Message) model.Message {
	m.ID = c.nextID
	c.nextID++
	c.messages = append(c.messages, m)
	return m
}

type pipelineKey struct {
	conversationID string
	messageID      int
}

// Store — владелец отображения id беседы → сообщения. Создаётся в корне приложения
// и передаётся потребителям явно.
type Store struct {
	sched scheduler.Scheduler
	opts  Options

	mu         sync.Mutex
	convs      map[string]*conversation
	nextConvID int
	active     string
	pending    map[pipelineKey]scheduler.Task
	subs       map[*Subscription]struct{}
	closed     bool
}

// NewStore создаёт пустой стор. Ошибка — только при некорректных задержках.
func NewStore(sched scheduler.Scheduler, opts Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		sched:      sched,
		opts:       opts.withDefaults(),
		convs:      make(map[string]*conversation),
		nextConvID: 1,
		pending:    make(map[pipelineKey]scheduler.Task),
		subs:       make(map[*Subscription]struct{}),
	}, nil
}

// Add регистрирует беседу с готовой историей (например, из seed).
// Первая добавленная беседа становится активной.
func (s *Store) Add(meta model.Conversation, messages []model.Message, unread int) error {
	if meta.ID == "" {
		return fmt.Errorf("add conversation: empty id")
	}
	if !meta.Category.Valid() {
		meta.Category = model.ChatCategoryRecent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.convs[meta.ID]; ok {
		return fmt.Errorf("%w: %s", ErrConversationExists, meta.ID)
	}
	c := &conversation{meta: meta, nextID: 1, unread: unread}
	for _, m := range messages {
		c.messages = append(c.messages, m.Clone())
		if m.ID >= c.nextID {
			c.nextID = m.ID + 1
		}
	}
	s.convs[meta.ID] = c
	if n, err := strconv.Atoi(meta.ID); err == nil && n >= s.nextConvID {
		s.nextConvID = n + 1
	}
	if s.active == "" {
		s.active = meta.ID
	}
	return nil
}

// Create добавляет пустую беседу со следующим числовым id.
func (s *Store) Create(title, agentName string) (model.ConversationSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.ConversationSummary{}, ErrEmptyTitle
	}
	agentName = strings.TrimSpace(agentName)
	if agentName == "" {
		agentName = defaultAgentName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ConversationSummary{}, ErrClosed
	}
	id := strconv.Itoa(s.nextConvID)
	for s.convs[id] != nil {
		s.nextConvID++
		id = strconv.Itoa(s.nextConvID)
	}
	s.nextConvID++
	c := &conversation{
		meta:   model.Conversation{ID: id, Title: title, AgentName: agentName, Category: model.ChatCategoryRecent},
		nextID: 1,
	}
	s.convs[id] = c
	sum := s.summaryLocked(c)
	s.emitLocked(Event{Type: EventConversationCreated, ConversationID: id, Summary: &sum})
	logger.Infof("conversation: created id=%s title=%q", id, title)
	return sum, nil
}

// Submit добавляет сообщение пользователя в статусе sending и планирует его конвейер.
// Пустой текст без вложения — ErrEmptyMessage, состояние не меняется.
func (s *Store) Submit(conversationID, text string, att *model.Attachment) (model.Message, error) {
	if strings.TrimSpace(text) == "" && att == nil {
		s.reject("empty")
		return model.Message{}, ErrEmptyMessage
	}
	if att != nil {
		if err := ValidateAttachment(att.Name, att.ContentType); err != nil {
			s.reject("attachment")
			return model.Message{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Message{}, ErrClosed
	}
	c, ok := s.convs[conversationID]
	if !ok {
		s.opts.Observer.Rejected("not_found")
		return model.Message{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	now := s.sched.Now()
	msg := model.Message{
		Sender:    model.SenderUser,
		Content:   text,
		CreatedAt: now,
		Timestamp: now.Format(model.TimestampLayout),
		Status:    model.MessageStatusSending,
	}
	if att != nil {
		a := *att
		msg.Attachment = &a
	}
	msg = c.append(msg)
	created := msg.Clone()
	s.emitLocked(Event{Type: EventMessageCreated, ConversationID: conversationID, Message: &created})

	c.pendingReplies++
	if c.pendingReplies == 1 {
		s.emitLocked(Event{Type: EventTyping, ConversationID: conversationID, Typing: true})
	}

	key := pipelineKey{conversationID: conversationID, messageID: msg.ID}
	s.pending[key] = s.sched.AfterFunc(s.opts.SentDelay, func() { s.onSent(key, text) })
	s.opts.Observer.Submitted()
	s.opts.Observer.Pending(len(s.pending))
	logger.Debugf("conversation: submit chat=%s msg=%d", conversationID, msg.ID)
	return msg.Clone(), nil
}

func (s *Store) reject(reason string) {
	s.mu.Lock()
	s.opts.Observer.Rejected(reason)
	s.mu.Unlock()
}

func (s *Store) onSent(key pipelineKey, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.promoteLocked(key, model.MessageStatusSent)
	s.pending[key] = s.sched.AfterFunc(s.opts.DeliveredDelay-s.opts.SentDelay, func() { s.onDelivered(key, text) })
}

func (s *Store) onDelivered(key pipelineKey, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.promoteLocked(key, model.MessageStatusDelivered)
	s.pending[key] = s.sched.AfterFunc(s.opts.ReplyDelay-s.opts.DeliveredDelay, func() { s.onReply(key, text) })
}

// onReply добавляет ответ ассистента и одним пакетом помечает прочитанными
// все непрочитанные сообщения пользователя этой беседы.
func (s *Store) onReply(key pipelineKey, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	delete(s.pending, key)
	s.opts.Observer.Pending(len(s.pending))
	c, ok := s.convs[key.conversationID]
	if !ok {
		return
	}

	now := s.sched.Now()
	reply := c.append(model.Message{
		Sender:    model.SenderAssistant,
		Content:   s.opts.Reply(key.conversationID, text),
		CreatedAt: now,
		Timestamp: now.Format(model.TimestampLayout),
		Status:    model.MessageStatusRead,
	})
	s.emitLocked(Event{Type: EventMessageCreated, ConversationID: key.conversationID, Message: &reply})
	s.opts.Observer.Replied()

	var readIDs []int
	for i := range c.messages {
		m := &c.messages[i]
		if m.Sender == model.SenderUser && m.Status.Before(model.MessageStatusRead) {
			m.Status = model.MessageStatusRead
			readIDs = append(readIDs, m.ID)
			s.opts.Observer.Transitioned(model.MessageStatusRead)
		}
	}
	if len(readIDs) > 0 {
		s.emitLocked(Event{
			Type:           EventStatusChanged,
			ConversationID: key.conversationID,
			MessageIDs:     readIDs,
			Status:         model.MessageStatusRead,
		})
	}

	if c.pendingReplies > 0 {
		c.pendingReplies--
	}
	if c.pendingReplies == 0 {
		s.emitLocked(Event{Type: EventTyping, ConversationID: key.conversationID, Typing: false})
	}
	if s.active != key.conversationID {
		c.unread++
		sum := s.summaryLocked(c)
		s.emitLocked(Event{Type: EventConversationUpdated, ConversationID: key.conversationID, Summary: &sum})
	}
}

// promoteLocked двигает статус сообщения вперёд; если оно уже дальше — ничего не делает.
func (s *Store) promoteLocked(key pipelineKey, to model.MessageStatus) {
	c, ok := s.convs[key.conversationID]
	if !ok {
		return
	}
	m := c.find(key.messageID)
	if m == nil || !m.Status.Before(to) {
		return
	}
	m.Status = to
	s.opts.Observer.Transitioned(to)
	s.emitLocked(Event{
		Type:           EventStatusChanged,
		ConversationID: key.conversationID,
		MessageIDs:     []int{m.ID},
		Status:         to,
	})
}

// Advance применяет один шаг вперёд по цепочке статусов. Любой другой переход — ErrInvalidTransition.
func (s *Store) Advance(conversationID string, messageID int, to model.MessageStatus) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return model.Message{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	m := c.find(messageID)
	if m == nil {
		return model.Message{}, fmt.Errorf("%w: %s/%d", ErrMessageNotFound, conversationID, messageID)
	}
	if !m.Status.CanAdvanceTo(to) {
		return m.Clone(), fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, to)
	}
	m.Status = to
	s.opts.Observer.Transitioned(to)
	s.emitLocked(Event{
		Type:           EventStatusChanged,
		ConversationID: conversationID,
		MessageIDs:     []int{m.ID},
		Status:         to,
	})
	return m.Clone(), nil
}

// Activate переключает отображаемую беседу и сбрасывает её счётчик непрочитанных.
// Таймеры других бесед не отменяются: фоновые беседы продолжают движение.
func (s *Store) Activate(conversationID string) (model.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return model.ConversationSummary{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	prev := s.active
	s.active = conversationID
	c.unread = 0
	sum := s.summaryLocked(c)
	s.emitLocked(Event{Type: EventConversationUpdated, ConversationID: conversationID, Summary: &sum})
	if p, ok := s.convs[prev]; ok && prev != conversationID {
		prevSum := s.summaryLocked(p)
		s.emitLocked(Event{Type: EventConversationUpdated, ConversationID: prev, Summary: &prevSum})
	}
	return sum, nil
}

// Active — id отображаемой беседы.
func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Filter ограничивает список бесед. Пустые поля не фильтруют.
type Filter struct {
	Category model.ChatCategory
	Query    string
}

func (f Filter) match(meta model.Conversation) bool {
	if f.Category != "" && meta.Category != f.Category {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(meta.Title), q) ||
		strings.Contains(strings.ToLower(meta.AgentName), q)
}

// Conversations возвращает сводки бесед, упорядоченные по id.
func (s *Store) Conversations(f Filter) []model.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ConversationSummary, 0, len(s.convs))
	for _, c := range s.convs {
		if f.match(c.meta) {
			out = append(out, s.summaryLocked(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out
}

func idLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// Conversation возвращает сводку одной беседы.
func (s *Store) Conversation(conversationID string) (model.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return model.ConversationSummary{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return s.summaryLocked(c), nil
}

// Messages возвращает копию истории беседы в порядке отображения.
func (s *Store) Messages(conversationID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	out := make([]model.Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Clone()
	}
	return out, nil
}

// Pending — число сообщений, чей конвейер ещё не завершён.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) summaryLocked(c *conversation) model.ConversationSummary {
	sum := model.ConversationSummary{
		Conversation: c.meta,
		UnreadCount:  c.unread,
		MessageCount: len(c.messages),
		Typing:       c.pendingReplies > 0,
		Active:       s.active == c.meta.ID,
	}
	if n := len(c.messages); n > 0 {
		last := c.messages[n-1]
		sum.LastMessage = preview(last)
		at := last.CreatedAt
		sum.LastMessageAt = &at
		sum.Timestamp = last.Timestamp
	}
	return sum
}

func preview(m model.Message) string {
	text := strings.TrimSpace(m.Content)
	if text == "" && m.Attachment != nil {
		return m.Attachment.Name
	}
	if utf8.RuneCountInString(text) <= previewLen {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:previewLen-3])) + "..."
}

// Subscribe открывает ленту событий стора.
func (s *Store) Subscribe() *Subscription {
	ch := make(chan Event, s.opts.EventBuffer)
	sub := &Subscription{C: ch, ch: ch, s: s}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return sub
	}
	s.subs[sub] = struct{}{}
	return sub
}

func (s *Store) unsubscribeLocked(sub *Subscription) {
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.ch)
}

// emitLocked рассылает событие без блокировки: переполненный буфер — событие теряется.
func (s *Store) emitLocked(ev Event) {
	for sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
			logger.Warnf("conversation: subscriber buffer full, dropping %s chat=%s", ev.Type, ev.ConversationID)
		}
	}
}

// Close отменяет все ожидающие переходы и закрывает подписки.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	stopped := 0
	for key, t := range s.pending {
		if t.Stop() {
			stopped++
		}
		delete(s.pending, key)
	}
	s.opts.Observer.Pending(0)
	for sub := range s.subs {
		s.unsubscribeLocked(sub)
	}
	if stopped > 0 {
		logger.Infof("conversation: store closed, cancelled %d pending transitions", stopped)
	}
}
