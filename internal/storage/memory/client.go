package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iseevalue/chat/internal/model"
	"github.com/iseevalue/chat/internal/storage"
)

const defaultTTL = 24 * time.Hour

type item struct {
	att  model.Attachment
	data []byte
	exp  time.Time
}

// Client хранит вложения в памяти процесса; просроченные записи не отдаются и вычищаются при Put.
type Client struct {
	mu    sync.RWMutex
	items map[string]item
	ttl   time.Duration
	now   func() time.Time
}

func New(ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Client{items: make(map[string]item), ttl: ttl, now: time.Now}
}

func (c *Client) Close() error { return nil }

func (c *Client) Put(ctx context.Context, att model.Attachment, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, it := range c.items {
		if now.After(it.exp) {
			delete(c.items, id)
		}
	}
	c.items[att.ID] = item{att: att, data: buf, exp: now.Add(c.ttl)}
	return nil
}

func (c *Client) Get(ctx context.Context, id string) (model.Attachment, []byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[id]
	if !ok || c.now().After(it.exp) {
		return model.Attachment{}, nil, storage.ErrNotFound
	}
	return it.att, it.data, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	return nil
}

// Len — число хранимых записей, включая ещё не вычищенные просроченные.
func (c *Client) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
