package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iseevalue/chat/internal/model"
	"github.com/iseevalue/chat/internal/storage"
)

// DefaultTTL — сколько живёт вложение, если TTL не задан.
const DefaultTTL = 24 * time.Hour

type Client struct {
	cli *redis.Client
	ttl time.Duration
}

func New(ctx context.Context, url string, ttl time.Duration) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Client{cli: cli, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func metaKey(id string) string { return "attachment:" + id + ":meta" }
func dataKey(id string) string { return "attachment:" + id + ":data" }

// Put сохраняет метаданные (JSON) и содержимое под двумя ключами с общим TTL.
func (c *Client) Put(ctx context.Context, att model.Attachment, data []byte) error {
	meta, err := json.Marshal(att)
	if err != nil {
		return fmt.Errorf("marshal attachment: %w", err)
	}
	_, err = c.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, metaKey(att.ID), meta, c.ttl)
		p.Set(ctx, dataKey(att.ID), data, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put attachment %s: %w", att.ID, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, id string) (model.Attachment, []byte, error) {
	vals, err := c.cli.MGet(ctx, metaKey(id), dataKey(id)).Result()
	if err != nil {
		return model.Attachment{}, nil, fmt.Errorf("redis get attachment %s: %w", id, err)
	}
	meta, ok1 := vals[0].(string)
	data, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return model.Attachment{}, nil, storage.ErrNotFound
	}
	var att model.Attachment
	if err := json.Unmarshal([]byte(meta), &att); err != nil {
		return model.Attachment{}, nil, fmt.Errorf("unmarshal attachment %s: %w", id, err)
	}
	return att, []byte(data), nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.cli.Del(ctx, metaKey(id), dataKey(id)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// FlushDB очищает текущую БД Redis (для тестов/сброса окружения).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
