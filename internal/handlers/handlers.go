package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"

	"hemogram-alerts-go/internal/analyzer"
	"hemogram-alerts-go/internal/push"
	"hemogram-alerts-go/internal/store"
	"hemogram-alerts-go/internal/ui"
	"hemogram-alerts-go/internal/viewmodel"
)

const (
	sessionName   = "hemogram-session"
	displayedFlag = "displayed"
)

type Handler struct {
	VM             *viewmodel.ViewModel
	Renderer       *ui.Renderer
	Receiver       *push.Receiver
	Notifications  store.NotificationStore
	Devices        store.DeviceStore
	VAPIDPublicKey string
	Analyzer       *analyzer.Analyzer

	sessions *sessions.CookieStore
	logger   zerolog.Logger
}

func NewHandler(vm *viewmodel.ViewModel, renderer *ui.Renderer, receiver *push.Receiver, notifications store.NotificationStore, devices store.DeviceStore, vapidPublicKey, sessionKey string, logger zerolog.Logger) *Handler {
	cookies := sessions.NewCookieStore([]byte(sessionKey))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Handler{
		VM:             vm,
		Renderer:       renderer,
		Receiver:       receiver,
		Notifications:  notifications,
		Devices:        devices,
		VAPIDPublicKey: vapidPublicKey,
		Analyzer:       analyzer.New(logger),
		sessions:       cookies,
		logger:         logger.With().Str("component", "http").Logger(),
	}
}

// IndexHandler renders the alert list. The first display in a browser
// session launches a fetch before rendering.
func (h *Handler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	if displayed, _ := session.Values[displayedFlag].(bool); !displayed {
		session.Values[displayedFlag] = true
		if err := session.Save(r, w); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to save session")
		}
		h.VM.Launch(context.WithoutCancel(r.Context()))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.Renderer.Render(w, h.VM.State()); err != nil {
		h.logger.Error().Err(err).Msg("Template error")
	}
}

func (h *Handler) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.VM.State())
}

// EventsHandler streams the rendered content on every state change.
func (h *Handler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	states, cancel := h.VM.Subscribe()
	defer cancel()

	if err := h.writeContent(w, h.VM.State()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write event")
		return
	}
	flusher.Flush()

	for {
		select {
		case s := <-states:
			if err := h.writeContent(w, s); err != nil {
				h.logger.Debug().Err(err).Msg("Event stream closed")
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) writeContent(w http.ResponseWriter, s viewmodel.State) error {
	content, err := h.Renderer.Content(s)
	if err != nil {
		return err
	}
	return writeEvent(w, content)
}

// writeEvent writes data as one SSE event, one data line per line of input.
func writeEvent(w http.ResponseWriter, data string) error {
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
