package handler

import (
	"net/http"

	"github.com/iseevalue/chat/internal/config"
	"github.com/iseevalue/chat/internal/conversation"
)

// ConfigHandler отдаёт публичные параметры конфигурации для клиента.
type ConfigHandler struct {
	cfg *config.Config
}

// NewConfigHandler создаёт обработчик конфигурации.
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

type pipelineConfigResponse struct {
	SentDelayMS      int64 `json:"sent_delay_ms"`
	DeliveredDelayMS int64 `json:"delivered_delay_ms"`
	ReplyDelayMS     int64 `json:"reply_delay_ms"`
}

type configResponse struct {
	Pipeline         pipelineConfigResponse `json:"pipeline"`
	MaxUploadSize    int64                  `json:"max_upload_size"`
	AttachmentTypes  []string               `json:"attachment_types"`
	AttachmentNotice string                 `json:"attachment_notice"`
}

// GetConfig возвращает задержки конвейера и ограничения загрузки (без авторизации).
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	p := h.cfg.Pipeline
	writeJSON(w, http.StatusOK, configResponse{
		Pipeline: pipelineConfigResponse{
			SentDelayMS:      p.SentDelay.Milliseconds(),
			DeliveredDelayMS: p.DeliveredDelay.Milliseconds(),
			ReplyDelayMS:     p.ReplyDelay.Milliseconds(),
		},
		MaxUploadSize:    h.cfg.MaxUploadSize(),
		AttachmentTypes:  []string{conversation.PDFContentType},
		AttachmentNotice: conversation.UnsupportedAttachmentNotice,
	})
}
