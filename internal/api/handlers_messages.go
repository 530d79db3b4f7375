package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmaxmax/go-sse"

	"github.com/binarykitchen/noodlenotify/internal/metrics"
	"github.com/binarykitchen/noodlenotify/internal/models"
)

type MessageHandler struct {
	push *sse.Server
	log  zerolog.Logger
}

func NewMessageHandler(push *sse.Server, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{push: push, log: log}
}

type sendMessageRequest struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

const maxPayloadSize = 64 * 1024 // 64KB

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadSize)
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.PublishRejected.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Data == "" {
		metrics.PublishRejected.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "data is required")
		return
	}
	if strings.ContainsAny(req.Event, "\r\n") {
		metrics.PublishRejected.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "event must be a single line")
		return
	}

	msg := &models.Message{
		ID:        models.NewID("msg"),
		Event:     req.Event,
		Data:      req.Data,
		CreatedAt: time.Now().UTC(),
	}

	ev := &sse.Message{ID: sse.ID(msg.ID)}
	if msg.Event != "" {
		ev.Type = sse.Type(msg.Event)
	}
	ev.AppendData(msg.Data)

	if err := h.push.Publish(ev); err != nil {
		h.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to publish message")
		writeError(w, http.StatusInternalServerError, "failed to publish message")
		return
	}

	label := msg.Event
	if label == "" {
		label = "message"
	}
	metrics.MessagesPublished.WithLabelValues(label).Inc()

	h.log.Info().Str("message_id", msg.ID).Str("event", label).Msg("message published")
	writeJSON(w, http.StatusAccepted, msg)
}
