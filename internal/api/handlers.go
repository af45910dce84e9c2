// Package api wires the HTTP surface: the SSE push channel, the status
// and health endpoints, outbound sends, and the message/chat read path.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatwire/wabridge/internal/api/respond"
	"github.com/chatwire/wabridge/internal/lifecycle"
	"github.com/chatwire/wabridge/internal/media"
	"github.com/chatwire/wabridge/internal/model"
	"github.com/chatwire/wabridge/internal/session"
	"github.com/chatwire/wabridge/internal/store"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 500
)

// Handler serves the REST endpoints around the push channel.
type Handler struct {
	snap   *session.Snapshot
	store  store.Store // nil when persistence is disabled
	sender lifecycle.Client
	media  *media.Store
	log    zerolog.Logger

	queueStatus  func() string
	storeHealthy func() bool
	subscribers  func() int
}

// NewHandler builds the handler set. queueStatus, storeHealthy and
// subscribers feed the status surface; nil funcs get safe defaults.
func NewHandler(
	snap *session.Snapshot,
	st store.Store,
	sender lifecycle.Client,
	mediaStore *media.Store,
	queueStatus func() string,
	storeHealthy func() bool,
	subscribers func() int,
	log zerolog.Logger,
) *Handler {
	if queueStatus == nil {
		queueStatus = func() string { return "disabled" }
	}
	if storeHealthy == nil {
		storeHealthy = func() bool { return false }
	}
	if subscribers == nil {
		subscribers = func() int { return 0 }
	}
	return &Handler{
		snap:         snap,
		store:        st,
		sender:       sender,
		media:        mediaStore,
		log:          log,
		queueStatus:  queueStatus,
		storeHealthy: storeHealthy,
		subscribers:  subscribers,
	}
}

// Status handles GET /status: the synchronous read-only surface for
// external health checks.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var lastCodeAgeMs *int64
	if age, ok := h.snap.CodeAge(time.Now()); ok {
		ms := age.Milliseconds()
		lastCodeAgeMs = &ms
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"lastState":      h.snap.State(),
		"lastCodeAgeMs":  lastCodeAgeMs,
		"storeConnected": h.store != nil && h.storeHealthy(),
		"queueStatus":    h.queueStatus(),
		"subscribers":    h.subscribers(),
	})
}

// Healthz handles GET /healthz. Always 200; the body reports component
// reachability.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"store": h.store != nil && h.storeHealthy(),
		"queue": h.queueStatus(),
	})
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send handles POST /send: a synchronous outbound send through the
// external client, independent of the event pipeline.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if req.To == "" || req.Body == "" {
		respond.WriteBadRequest(w, "to and body are required")
		return
	}
	if err := h.sender.SendMessage(r.Context(), req.To, req.Body); err != nil {
		h.log.Warn().Err(err).Str("to", req.To).Msg("outbound send failed")
		respond.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListMessages handles GET /messages?chatId=&limit=&days=.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respond.WriteJSON(w, http.StatusOK, []*model.Message{})
		return
	}

	limit := intQuery(r, "limit", defaultMessageLimit)
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	chatID := r.URL.Query().Get("chatId")
	sinceDays := intQuery(r, "days", intQuery(r, "sinceDays", 0))

	msgs, err := h.store.ListMessages(r.Context(), chatID, sinceDays, limit)
	if err != nil {
		h.log.Error().Stack().Err(err).Msg("list messages failed")
		respond.WriteInternalError(w, "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	respond.WriteJSON(w, http.StatusOK, msgs)
}

// ListChats handles GET /chats?days=.
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respond.WriteJSON(w, http.StatusOK, []*model.ChatSummary{})
		return
	}

	sinceDays := intQuery(r, "days", intQuery(r, "sinceDays", 0))
	chats, err := h.store.ListChats(r.Context(), sinceDays)
	if err != nil {
		h.log.Error().Stack().Err(err).Msg("list chats failed")
		respond.WriteInternalError(w, "failed to list chats")
		return
	}
	if chats == nil {
		chats = []*model.ChatSummary{}
	}
	respond.WriteJSON(w, http.StatusOK, chats)
}

// MediaByID handles GET /media/by-id/{id}: resolves a stored attachment
// without knowing its extension.
func (h *Handler) MediaByID(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	path, mime, err := h.media.FindByID(id)
	if err != nil {
		respond.WriteNotFound(w, "not found")
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	http.ServeFile(w, r, path)
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
