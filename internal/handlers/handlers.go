package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Billy-Davies-2/word-card-draft/internal/dal"
	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
	"github.com/Billy-Davies-2/word-card-draft/internal/pubsub"
	"github.com/Billy-Davies-2/word-card-draft/internal/session"
)

// StatsSource serves cross-session card popularity
type StatsSource interface {
	CardPopularity(ctx context.Context, limit int) ([]models.CardStat, error)
}

// APIHandlers contains all API handler methods
type APIHandlers struct {
	mgr      *session.Manager
	stats    StatsSource
	pubsub   *pubsub.PubSub
	defaults session.Setup
}

// NewAPIHandlers creates a new API handlers instance. defaults fills in a start request that omits cards.
func NewAPIHandlers(mgr *session.Manager, stats StatsSource, ps *pubsub.PubSub, defaults session.Setup) *APIHandlers {
	return &APIHandlers{
		mgr:      mgr,
		stats:    stats,
		pubsub:   ps,
		defaults: defaults,
	}
}

// Register mounts the API on mux. guard wraps facilitator-only routes.
func (h *APIHandlers) Register(mux *http.ServeMux, guard func(http.HandlerFunc) http.HandlerFunc) {
	if guard == nil {
		guard = func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	// Draft API
	mux.HandleFunc("/api/draft/state", h.GetDraftState)
	mux.HandleFunc("/api/draft/select", h.SelectCard)
	mux.HandleFunc("/api/draft/undo", h.UndoClaim)
	mux.HandleFunc("/api/draft/claimed", h.ListClaimed)
	mux.HandleFunc("/api/draft/unclaimed", h.ListUnclaimed)

	// Session API
	mux.HandleFunc("/api/session/start", guard(h.StartSession))
	mux.HandleFunc("/api/session/abandon", guard(h.AbandonSession))
	mux.HandleFunc("/api/sessions", h.ListSessions)
	mux.HandleFunc("/api/sessions/get", h.GetSession)

	mux.HandleFunc("/api/stats/popularity", h.CardPopularity)

	// Realtime
	mux.HandleFunc("/api/events", h.EventsSSE)
	mux.HandleFunc("/api/ws", h.EventsWebSocket)
}

// GetDraftState returns the current draft state
func (h *APIHandlers) GetDraftState(w http.ResponseWriter, r *http.Request) {
	logger.Debug("Getting draft state")
	state, err := h.mgr.State()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SelectCard highlights, switches or confirms a card for the team on turn
func (h *APIHandlers) SelectCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("Failed to decode select request", "error", err)
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if req.Key == "" {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "missing card key")
		return
	}

	out, state, err := h.mgr.SelectState(req.Key)
	if err != nil {
		logger.Debug("Select rejected", "key", req.Key, "error", err)
		writeError(w, err)
		return
	}
	logger.Info("Card selected", "key", req.Key, "outcome", out.String())
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": out.String(),
		"state":   state,
	})
}

// UndoClaim reverts the most recent confirmed claim
func (h *APIHandlers) UndoClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := h.mgr.UndoState()
	if err != nil {
		writeError(w, err)
		return
	}
	logger.Info("Claim undone")
	writeJSON(w, http.StatusOK, state)
}

// ListClaimed returns the cards a team has claimed, in claim order
func (h *APIHandlers) ListClaimed(w http.ResponseWriter, r *http.Request) {
	team := models.TeamID(r.URL.Query().Get("team"))
	if team == "" {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "missing team parameter")
		return
	}

	cards, err := h.mgr.Claimed(team)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// ListUnclaimed returns the cards neither team took; only valid after the draft ends
func (h *APIHandlers) ListUnclaimed(w http.ResponseWriter, r *http.Request) {
	cards, err := h.mgr.Unclaimed()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// StartSession begins a new draft. An empty body uses the configured defaults.
func (h *APIHandlers) StartSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	setup := h.defaults
	if r.ContentLength != 0 {
		var req session.Setup
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("Failed to decode start request", "error", err)
			writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		setup = req.WithDefaults(h.defaults)
	}

	state, err := h.mgr.Start(setup)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// AbandonSession discards the running draft
func (h *APIHandlers) AbandonSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.mgr.Abandon(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListSessions returns archived sessions, newest first
func (h *APIHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, 50)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	sessions, err := h.mgr.History(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// GetSession returns one archived session with its pick log
func (h *APIHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "missing id parameter")
		return
	}

	rec, err := h.mgr.Session(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CardPopularity returns claim statistics across exported drafts
func (h *APIHandlers) CardPopularity(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "STATS_UNAVAILABLE", "analytics store not configured")
		return
	}
	limit, err := limitParam(r, 20)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	stats, err := h.stats.CardPopularity(ctx, limit)
	if err != nil {
		logger.Error("Failed to query card popularity", "error", err)
		writeErrorMessage(w, http.StatusBadGateway, "STATS_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// EventsSSE provides Server-Sent Events for realtime updates
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	eventChan := h.pubsub.Subscribe()
	defer h.pubsub.Unsubscribe(eventChan)

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flush(w)

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flush(w)
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func limitParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

// writeError maps classified errors onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	}
	writeErrorMessage(w, status, code, err.Error())
}

// StatusFor returns the HTTP status and error code for err
func StatusFor(err error) (int, string) {
	if errors.Is(err, dal.ErrSessionNotFound) {
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	}
	code := string(draft.CodeOf(err))
	switch draft.KindOf(err) {
	case draft.KindUsage:
		switch draft.CodeOf(err) {
		case draft.CodeUnknownCard, draft.CodeUnknownTeam:
			return http.StatusNotFound, code
		case session.ErrNoSession.Code:
			return http.StatusConflict, code
		}
		return http.StatusBadRequest, code
	case draft.KindIllegalState:
		return http.StatusConflict, code
	case draft.KindConfiguration:
		return http.StatusUnprocessableEntity, code
	}
	return http.StatusInternalServerError, "INTERNAL"
}
