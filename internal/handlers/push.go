package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"hemogram-alerts-go/internal/push"
)

// PushMessageHandler is the delivery endpoint of the push platform.
func (h *Handler) PushMessageHandler(w http.ResponseWriter, r *http.Request) {
	var msg push.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.Receiver.OnMessageReceived(r.Context(), msg); err != nil {
		h.logger.Error().Err(err).Str("message_id", msg.MessageID).Msg("Failed to handle push message")
		http.Error(w, "Failed to handle push message", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// TokenHandler receives registration tokens issued by the push platform.
func (h *Handler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.Receiver.OnNewToken(r.Context(), req.Token); err != nil {
		h.logger.Error().Err(err).Msg("Failed to register token")
		http.Error(w, "Failed to register token", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetVAPIDKeyHandler returns the public VAPID key
func (h *Handler) GetVAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"publicKey": h.VAPIDPublicKey,
	})
}

// SubscribePushHandler saves a push subscription
func (h *Handler) SubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		http.Error(w, "endpoint and keys are required", http.StatusBadRequest)
		return
	}

	if err := h.Devices.SavePushSubscription(r.Context(), req.Endpoint, req.Keys.P256dh, req.Keys.Auth); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save subscription")
		http.Error(w, "Failed to save subscription", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}
