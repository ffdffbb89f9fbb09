package storage

import (
	"context"
	"errors"

	"github.com/iseevalue/chat/internal/model"
)

var ErrNotFound = errors.New("attachment not found")

// AttachmentStore — хранилище выбранных файлов: метаданные и содержимое по id.
// Реализации: memory.Client (по умолчанию), redis.Client (если задан REDIS_URL).
type AttachmentStore interface {
	Put(ctx context.Context, att model.Attachment, data []byte) error
	Get(ctx context.Context, id string) (model.Attachment, []byte, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Lookup возвращает метаданные вложения по id; пустой id — nil без ошибки.
func Lookup(ctx context.Context, s AttachmentStore, id string) (*model.Attachment, error) {
	if id == "" {
		return nil, nil
	}
	att, _, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &att, nil
}
