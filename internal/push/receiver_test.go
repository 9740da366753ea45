package push

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hemogram-alerts-go/internal/models"
)

type fakeChannels struct {
	ensured []models.Channel
	err     error
}

func (f *fakeChannels) EnsureChannel(ctx context.Context, ch models.Channel) error {
	if f.err != nil {
		return f.err
	}
	f.ensured = append(f.ensured, ch)
	return nil
}

type fakePermission struct {
	granted bool
	err     error
}

func (f fakePermission) PermissionGranted(ctx context.Context) (bool, error) {
	return f.granted, f.err
}

type fakePoster struct {
	posted []models.Notification
	err    error
}

func (f *fakePoster) Post(ctx context.Context, n models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.posted = append(f.posted, n)
	return nil
}

type fakeTokens struct {
	tokens []string
	err    error
}

func (f *fakeTokens) RegisterToken(ctx context.Context, token string) (models.DeviceToken, error) {
	if f.err != nil {
		return models.DeviceToken{}, f.err
	}
	f.tokens = append(f.tokens, token)
	return models.DeviceToken{ID: len(f.tokens), Token: token}, nil
}

func newTestReceiver(granted bool, opts ...Option) (*Receiver, *fakeChannels, *fakePoster) {
	channels := &fakeChannels{}
	poster := &fakePoster{}
	r := NewReceiver(channels, fakePermission{granted: granted}, poster, zerolog.Nop(), opts...)
	r.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return r, channels, poster
}

func TestOnMessageReceivedUsesPayload(t *testing.T) {
	r, _, poster := newTestReceiver(true)

	err := r.OnMessageReceived(context.Background(), Message{
		Notification: &MessageNotification{Title: "Hb low", Body: "Patient in North region"},
	})
	require.NoError(t, err)

	require.Len(t, poster.posted, 1)
	n := poster.posted[0]
	assert.Equal(t, "Hb low", n.Title)
	assert.Equal(t, "Patient in North region", n.Body)
	assert.Equal(t, ChannelID, n.ChannelID)
	assert.Equal(t, models.PriorityHigh, n.Priority)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), n.PostedAt)
}

func TestOnMessageReceivedDefaults(t *testing.T) {
	tests := []struct {
		name      string
		msg       Message
		wantTitle string
		wantBody  string
	}{
		{
			name:      "no notification block",
			msg:       Message{Data: map[string]string{"alert": "1"}},
			wantTitle: "New hemogram alert",
			wantBody:  "Check the app for details",
		},
		{
			name:      "title only",
			msg:       Message{Notification: &MessageNotification{Title: "Hb low"}},
			wantTitle: "Hb low",
			wantBody:  "Check the app for details",
		},
		{
			name:      "body only",
			msg:       Message{Notification: &MessageNotification{Body: "See details"}},
			wantTitle: "New hemogram alert",
			wantBody:  "See details",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, poster := newTestReceiver(true)
			require.NoError(t, r.OnMessageReceived(context.Background(), tt.msg))

			require.Len(t, poster.posted, 1)
			assert.Equal(t, tt.wantTitle, poster.posted[0].Title)
			assert.Equal(t, tt.wantBody, poster.posted[0].Body)
		})
	}
}

func TestOnMessageReceivedLocalizedDefaults(t *testing.T) {
	r, _, poster := newTestReceiver(true, WithDefaults(DefaultsFor("pt-BR")))

	require.NoError(t, r.OnMessageReceived(context.Background(), Message{}))

	require.Len(t, poster.posted, 1)
	assert.Equal(t, "Alerta de Hemograma", poster.posted[0].Title)
	assert.Equal(t, "Verifique o app para detalhes.", poster.posted[0].Body)
}

func TestOnMessageReceivedWithoutPermission(t *testing.T) {
	r, channels, poster := newTestReceiver(false)

	err := r.OnMessageReceived(context.Background(), Message{
		Notification: &MessageNotification{Title: "Hb low"},
	})

	require.NoError(t, err)
	assert.Empty(t, poster.posted)
	assert.Len(t, channels.ensured, 1)
}

func TestOnMessageReceivedEnsuresChannelEveryTime(t *testing.T) {
	r, channels, _ := newTestReceiver(true)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.OnMessageReceived(context.Background(), Message{}))
	}

	require.Len(t, channels.ensured, 3)
	for _, ch := range channels.ensured {
		assert.Equal(t, AlertsChannel, ch)
	}
	assert.Equal(t, models.ImportanceHigh, AlertsChannel.Importance)
	assert.Equal(t, "hemograma_alerts_channel", AlertsChannel.ID)
	assert.Equal(t, "Hemograma Alerts", AlertsChannel.Name)
}

func TestOnMessageReceivedErrors(t *testing.T) {
	t.Run("channel", func(t *testing.T) {
		poster := &fakePoster{}
		r := NewReceiver(&fakeChannels{err: errors.New("redis down")}, fakePermission{granted: true}, poster, zerolog.Nop())

		err := r.OnMessageReceived(context.Background(), Message{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ensure channel")
		assert.Empty(t, poster.posted)
	})

	t.Run("permission lookup", func(t *testing.T) {
		poster := &fakePoster{}
		r := NewReceiver(&fakeChannels{}, fakePermission{err: errors.New("timeout")}, poster, zerolog.Nop())

		err := r.OnMessageReceived(context.Background(), Message{})
		require.Error(t, err)
		assert.Empty(t, poster.posted)
	})

	t.Run("poster", func(t *testing.T) {
		r := NewReceiver(&fakeChannels{}, fakePermission{granted: true}, &fakePoster{err: errors.New("closed")}, zerolog.Nop())

		err := r.OnMessageReceived(context.Background(), Message{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "post notification")
	})
}

func TestOnNewToken(t *testing.T) {
	t.Run("log only", func(t *testing.T) {
		r, _, _ := newTestReceiver(true)
		assert.NoError(t, r.OnNewToken(context.Background(), "token-1"))
	})

	t.Run("registers token", func(t *testing.T) {
		tokens := &fakeTokens{}
		r, _, _ := newTestReceiver(true, WithTokenRegistry(tokens))

		require.NoError(t, r.OnNewToken(context.Background(), "token-1"))
		require.NoError(t, r.OnNewToken(context.Background(), "token-2"))
		assert.Equal(t, []string{"token-1", "token-2"}, tokens.tokens)
	})

	t.Run("logs a shortened token", func(t *testing.T) {
		var buf bytes.Buffer
		token := "fcm-registration-token-0123456789abcdef"
		r := NewReceiver(&fakeChannels{}, fakePermission{}, &fakePoster{}, zerolog.New(&buf))

		require.NoError(t, r.OnNewToken(context.Background(), token))
		assert.Contains(t, buf.String(), `"token":"fcm-regi..."`)
		assert.NotContains(t, buf.String(), token)
	})

	t.Run("registry failure", func(t *testing.T) {
		r, _, _ := newTestReceiver(true, WithTokenRegistry(&fakeTokens{err: errors.New("db down")}))
		assert.Error(t, r.OnNewToken(context.Background(), "token-1"))
	})
}

func TestTokenPrefix(t *testing.T) {
	assert.Equal(t, "", tokenPrefix(""))
	assert.Equal(t, "short", tokenPrefix("short"))
	assert.Equal(t, "12345678", tokenPrefix("12345678"))
	assert.Equal(t, "12345678...", tokenPrefix("123456789"))
}

func TestDefaultsFor(t *testing.T) {
	assert.Equal(t, "New hemogram alert", DefaultsFor("").Title)
	assert.Equal(t, "New hemogram alert", DefaultsFor("en-US").Title)
	assert.Equal(t, "Alerta de Hemograma", DefaultsFor("pt").Title)
	assert.Equal(t, "Alerta de Hemograma", DefaultsFor("PT_br").Title)
}
