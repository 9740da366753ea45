// Package push turns delivered push messages into local notifications.
package push

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hemogram-alerts-go/internal/metrics"
	"hemogram-alerts-go/internal/models"
)

const (
	ChannelID   = "hemograma_alerts_channel"
	ChannelName = "Hemograma Alerts"
)

// AlertsChannel is the single channel every notification is posted on.
var AlertsChannel = models.Channel{
	ID:         ChannelID,
	Name:       ChannelName,
	Importance: models.ImportanceHigh,
}

type MessageNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// Message is a push message as delivered by the push platform.
type Message struct {
	MessageID    string               `json:"message_id,omitempty"`
	From         string               `json:"from,omitempty"`
	Data         map[string]string    `json:"data,omitempty"`
	Notification *MessageNotification `json:"notification,omitempty"`
}

// Defaults are the texts used when a message carries no notification title or body.
type Defaults struct {
	Title string
	Body  string
}

// DefaultsFor returns the default texts for a language tag such as "en" or "pt-BR".
func DefaultsFor(lang string) Defaults {
	lang = strings.ToLower(lang)
	if lang == "pt" || strings.HasPrefix(lang, "pt-") || strings.HasPrefix(lang, "pt_") {
		return Defaults{
			Title: "Alerta de Hemograma",
			Body:  "Verifique o app para detalhes.",
		}
	}
	return Defaults{
		Title: "New hemogram alert",
		Body:  "Check the app for details",
	}
}

type ChannelRegistry interface {
	EnsureChannel(ctx context.Context, ch models.Channel) error
}

type PermissionChecker interface {
	PermissionGranted(ctx context.Context) (bool, error)
}

// Poster displays a notification to the user.
type Poster interface {
	Post(ctx context.Context, n models.Notification) error
}

type TokenRegistry interface {
	RegisterToken(ctx context.Context, token string) (models.DeviceToken, error)
}

type Receiver struct {
	channels ChannelRegistry
	perms    PermissionChecker
	poster   Poster
	tokens   TokenRegistry
	defaults Defaults
	logger   zerolog.Logger
	now      func() time.Time
}

type Option func(*Receiver)

// WithTokenRegistry records refreshed registration tokens. Without it tokens
// are only logged.
func WithTokenRegistry(tokens TokenRegistry) Option {
	return func(r *Receiver) { r.tokens = tokens }
}

func WithDefaults(d Defaults) Option {
	return func(r *Receiver) { r.defaults = d }
}

func NewReceiver(channels ChannelRegistry, perms PermissionChecker, poster Poster, logger zerolog.Logger, opts ...Option) *Receiver {
	r := &Receiver{
		channels: channels,
		perms:    perms,
		poster:   poster,
		defaults: DefaultsFor("en"),
		logger:   logger.With().Str("component", "push").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnMessageReceived shows a notification for msg. Missing title or body
// fall back to the receiver's defaults. Nothing is posted, and no error is
// returned, when the notification permission has not been granted.
func (r *Receiver) OnMessageReceived(ctx context.Context, msg Message) error {
	metrics.PushMessagesTotal.Inc()
	r.logger.Debug().
		Str("message_id", msg.MessageID).
		Interface("data", msg.Data).
		Msg("Push message received")

	title, body := r.defaults.Title, r.defaults.Body
	if msg.Notification != nil {
		if msg.Notification.Title != "" {
			title = msg.Notification.Title
		}
		if msg.Notification.Body != "" {
			body = msg.Notification.Body
		}
	}
	return r.showNotification(ctx, title, body)
}

func (r *Receiver) showNotification(ctx context.Context, title, body string) error {
	if err := r.channels.EnsureChannel(ctx, AlertsChannel); err != nil {
		return fmt.Errorf("ensure channel: %w", err)
	}

	granted, err := r.perms.PermissionGranted(ctx)
	if err != nil {
		return fmt.Errorf("check permission: %w", err)
	}
	if !granted {
		metrics.NotificationsTotal.WithLabelValues("suppressed").Inc()
		r.logger.Debug().Msg("Notification permission not granted, dropping notification")
		return nil
	}

	n := models.Notification{
		ID:        uuid.NewString(),
		ChannelID: AlertsChannel.ID,
		Title:     title,
		Body:      body,
		Priority:  models.PriorityHigh,
		PostedAt:  r.now().UTC(),
	}
	if err := r.poster.Post(ctx, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("post notification: %w", err)
	}

	metrics.NotificationsTotal.WithLabelValues("posted").Inc()
	r.logger.Info().Str("notification_id", n.ID).Str("title", title).Msg("Notification posted")
	return nil
}

// OnNewToken is called whenever the push platform issues a new registration token.
func (r *Receiver) OnNewToken(ctx context.Context, token string) error {
	metrics.TokenRefreshesTotal.Inc()
	r.logger.Info().Str("token", tokenPrefix(token)).Msg("Registration token refreshed")

	if r.tokens == nil {
		return nil
	}
	if _, err := r.tokens.RegisterToken(ctx, token); err != nil {
		return fmt.Errorf("register token: %w", err)
	}
	return nil
}

// tokenPrefix shortens a registration token for logging.
func tokenPrefix(token string) string {
	const keep = 8
	if len(token) <= keep {
		return token
	}
	return token[:keep] + "..."
}
