package conversation

import "errors"

var (
	ErrEmptyMessage          = errors.New("message text or attachment required")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrConversationExists    = errors.New("conversation already exists")
	ErrEmptyTitle            = errors.New("conversation title required")
	ErrMessageNotFound       = errors.New("message not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")
	ErrClosed                = errors.New("conversation store closed")
)
