package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iseevalue/chat/internal/conversation"
	"github.com/iseevalue/chat/internal/logger"
	"github.com/iseevalue/chat/internal/model"
	"github.com/iseevalue/chat/internal/storage"
)

// ClientGauge получает число подключённых клиентов (метрики). Может быть nil.
type ClientGauge interface {
	ClientsConnected(n int)
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	maxConns int

	store *conversation.Store
	files storage.AttachmentStore
	gauge ClientGauge

	register   chan *Client
	unregister chan *Client
	// stopping закрывается в начале shutdown: Register/Unregister больше не ждут Run.
	stopping chan struct{}
	stopOnce sync.Once
}

func NewHub(store *conversation.Store, files storage.AttachmentStore, maxConns int, gauge ClientGauge) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		maxConns:   maxConns,
		store:      store,
		files:      files,
		gauge:      gauge,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		stopping:   make(chan struct{}),
	}
}

// Run подписывается на события стора и раздаёт их всем клиентам до отмены ctx.
func (h *Hub) Run(ctx context.Context) {
	sub := h.store.Subscribe()
	defer sub.Close()

	events := sub.C
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case ev, ok := <-events:
			if !ok {
				// стор закрыт: событий больше не будет, клиенты живут до ctx
				events = nil
				continue
			}
			if out, ok := outgoingFromEvent(ev); ok {
				h.broadcast(out)
			}
		}
	}
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() { close(h.stopping) })

	// I/O не под мьютексом
	h.mu.Lock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()
	h.reportClients(0)

	// клиенты, успевшие встать в очередь регистрации, тоже закрываются
drain:
	for {
		select {
		case c := <-h.register:
			all = append(all, c)
		default:
			break drain
		}
	}

	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if len(h.clients) >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting client=%s", h.maxConns, c.id)
		c.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.reportClients(n)
	logger.Debugf("ws client connected id=%s total=%d", c.id, n)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	h.reportClients(n)

	c.Close()
	logger.Debugf("ws client disconnected id=%s total=%d", c.id, n)
}

func (h *Hub) reportClients(n int) {
	if h.gauge != nil {
		h.gauge.ClientsConnected(n)
	}
}

// ClientCount — число подключённых клиентов.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventNewMessage:
		h.handleNewMessage(ctx, c, msg)
	case EventChatOpened:
		h.handleChatOpened(c, msg)
	default:
		h.sendError(c, "unknown event type")
	}
}

// handleNewMessage отправляет сообщение в стор. Подтверждение клиенту не шлётся:
// созданное сообщение и смены статусов приходят всем через подписку.
func (h *Hub) handleNewMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleNewMessage", time.Now())()
	if msg.ChatID == "" {
		h.sendError(c, "chat_id required")
		return
	}

	att, err := h.resolveAttachment(ctx, msg.AttachmentID)
	if err != nil {
		h.sendError(c, UserMessage(err))
		return
	}
	if _, err := h.store.Submit(msg.ChatID, msg.Content, att); err != nil {
		if !errors.Is(err, conversation.ErrEmptyMessage) {
			logger.Warnf("ws submit chat=%s client=%s: %v", msg.ChatID, c.id, err)
		}
		h.sendError(c, UserMessage(err))
	}
}

func (h *Hub) handleChatOpened(c *Client, msg IncomingMessage) {
	if msg.ChatID == "" {
		h.sendError(c, "chat_id required")
		return
	}
	if _, err := h.store.Activate(msg.ChatID); err != nil {
		h.sendError(c, UserMessage(err))
	}
}

func (h *Hub) resolveAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	if id == "" || h.files == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return storage.Lookup(ctx, h.files, id)
}

// UserMessage — текст ошибки для клиента.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		return "message text or attachment required"
	case errors.Is(err, conversation.ErrUnsupportedAttachment):
		return conversation.UnsupportedAttachmentNotice
	case errors.Is(err, conversation.ErrConversationNotFound):
		return "chat not found"
	case errors.Is(err, conversation.ErrMessageNotFound):
		return "message not found"
	case errors.Is(err, conversation.ErrConversationExists):
		return "chat already exists"
	case errors.Is(err, conversation.ErrEmptyTitle):
		return "title required"
	case errors.Is(err, conversation.ErrInvalidTransition):
		return "invalid status transition"
	case errors.Is(err, storage.ErrNotFound):
		return "attachment not found"
	case errors.Is(err, conversation.ErrClosed):
		return "service is shutting down"
	}
	return "internal error"
}

func (h *Hub) broadcast(msg OutgoingMessage) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendError(c *Client, text string) {
	h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: text})
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client id=%s", c.id)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case <-h.stopping:
		c.Close()
		return
	default:
	}
	select {
	case h.register <- c:
	case <-h.stopping:
		c.Close()
		return
	}
	// shutdown мог вычерпать очередь раньше, чем клиент в неё попал
	select {
	case <-h.stopping:
		c.Close()
	default:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopping:
	}
}
