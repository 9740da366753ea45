package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"hemogram-alerts-go/internal/metrics"
	"hemogram-alerts-go/internal/models"
)

const webPushTTL = 30

type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

type NotificationRecorder interface {
	AddNotification(ctx context.Context, n models.Notification) error
}

type SubscriptionStore interface {
	GetPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// WebPushPoster records each notification and sends it to every browser
// push subscription.
type WebPushPoster struct {
	recorder   NotificationRecorder
	subs       SubscriptionStore
	keys       VAPIDKeys
	httpClient webpush.HTTPClient
	logger     zerolog.Logger
}

func NewWebPushPoster(recorder NotificationRecorder, subs SubscriptionStore, keys VAPIDKeys, logger zerolog.Logger) *WebPushPoster {
	return &WebPushPoster{
		recorder:   recorder,
		subs:       subs,
		keys:       keys,
		httpClient: http.DefaultClient,
		logger:     logger.With().Str("component", "webpush").Logger(),
	}
}

type payload struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Priority  string `json:"priority"`
}

func (p *WebPushPoster) Post(ctx context.Context, n models.Notification) error {
	if err := p.recorder.AddNotification(ctx, n); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	subs, err := p.subs.GetPushSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("get subscriptions: %w", err)
	}

	message, err := json.Marshal(payload{
		ID:        n.ID,
		ChannelID: n.ChannelID,
		Title:     n.Title,
		Body:      n.Body,
		Priority:  string(n.Priority),
	})
	if err != nil {
		return err
	}

	urgency := webpush.UrgencyNormal
	if n.Priority == models.PriorityHigh {
		urgency = webpush.UrgencyHigh
	}

	for _, sub := range subs {
		s := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		resp, err := webpush.SendNotificationWithContext(ctx, message, s, &webpush.Options{
			HTTPClient:      p.httpClient,
			Subscriber:      p.keys.Subscriber,
			VAPIDPublicKey:  p.keys.PublicKey,
			VAPIDPrivateKey: p.keys.PrivateKey,
			TTL:             webPushTTL,
			Urgency:         urgency,
		})
		if err != nil {
			metrics.WebPushFailuresTotal.Inc()
			p.logger.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("Failed to send push")
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			// The browser dropped the subscription.
			if err := p.subs.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
				p.logger.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("Failed to delete expired subscription")
			} else {
				p.logger.Info().Str("endpoint", sub.Endpoint).Msg("Deleted expired subscription")
			}
		case resp.StatusCode >= 300:
			metrics.WebPushFailuresTotal.Inc()
			p.logger.Warn().Int("status", resp.StatusCode).Str("endpoint", sub.Endpoint).Msg("Push service rejected notification")
		}
	}
	return nil
}
