package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/stream"
	"github.com/cwrk-planet/chat-relay/pkg/errs"
	"github.com/cwrk-planet/chat-relay/pkg/httputil"
	"github.com/cwrk-planet/chat-relay/pkg/logger"
)

const maxBodyBytes = 1 << 20

type Relay interface {
	Publish(ctx context.Context, msg domain.Message) error
	History(room string) domain.RoomMessages
	Stream() *stream.Session
}

type Handler struct {
	relay Relay
}

func NewHandler(relay Relay) *Handler {
	return &Handler{relay: relay}
}

// POST /message
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var msg domain.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		logger.FromContext(r.Context()).Warn("handler.PostMessage.Decode", "err", err)
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.relay.Publish(r.Context(), msg); err != nil {
		logger.FromContext(r.Context()).Warn("handler.PostMessage", "err", err)
		httputil.FromErr(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GET /messages?room=
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("room") {
		httputil.FromErr(w, fmt.Errorf("%w: room is required", errs.ErrInvalidInput))
		return
	}

	httputil.JSON(w, http.StatusOK, h.relay.History(q.Get("room")))
}

// GET /events?room=
//
// Server-Sent Events: one `data: <message json>` event per published
// message. Without ?room every message is sent.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	room := r.URL.Query().Get("room")
	sess := h.relay.Stream().Filter(room)
	defer sess.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := logger.FromContext(r.Context())
	log.Debug("sse stream opened", "room", room)

	for msg := range sess.All(r.Context()) {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Error("sse marshal failed", "err", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			log.Debug("sse write failed", "err", err)
			return
		}
		flusher.Flush()
	}
	log.Debug("sse stream closed", "room", room)
}

// OPTIONS /*
func (h *Handler) Options(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
