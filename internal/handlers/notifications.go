package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"hemogram-alerts-go/internal/push"
	"hemogram-alerts-go/internal/store"
)

const defaultNotificationLimit = 50

// PermissionHandler reads or records the user's notification permission.
func (h *Handler) PermissionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		granted, err := h.Notifications.PermissionGranted(r.Context())
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to read permission")
			http.Error(w, "Failed to read permission", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
		return
	}

	var req struct {
		Granted *bool `json:"granted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Granted == nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.Notifications.SetPermission(r.Context(), *req.Granted); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save permission")
		http.Error(w, "Failed to save permission", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"granted": *req.Granted})
}

func (h *Handler) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultNotificationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	notifications, err := h.Notifications.GetNotifications(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to get notifications")
		http.Error(w, "Failed to get notifications", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"notifications": notifications,
		"count":         len(notifications),
	}
	// The channel only exists once a push message has been received.
	if ch, err := h.Notifications.GetChannel(r.Context(), push.ChannelID); err == nil {
		resp["channel"] = ch
	} else if !errors.Is(err, store.ErrNotFound) {
		h.logger.Warn().Err(err).Msg("Failed to get channel")
	}

	writeJSON(w, http.StatusOK, resp)
}

// NotificationEventsHandler streams posted notifications as they arrive.
func (h *Handler) NotificationEventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	pubsub := h.Notifications.Subscribe(r.Context())
	defer pubsub.Close()

	ch := pubsub.Channel()

	fmt.Fprintf(w, "data: %s\n\n", "connected")
	flusher.Flush()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) PurgeNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Notifications.PurgeNotifications(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to purge notifications")
		http.Error(w, "Failed to purge notifications", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
