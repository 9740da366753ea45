package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hemogram-alerts-go/internal/models"
)

type fakeRecorder struct {
	added []models.Notification
	err   error
}

func (f *fakeRecorder) AddNotification(ctx context.Context, n models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, n)
	return nil
}

type fakeSubscriptions struct {
	mu      sync.Mutex
	subs    []models.PushSubscription
	deleted []string
}

func (f *fakeSubscriptions) GetPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	return f.subs, nil
}

func (f *fakeSubscriptions) DeletePushSubscription(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func testSubscription(t *testing.T, endpoint string) models.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return models.PushSubscription{
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func testKeys(t *testing.T) VAPIDKeys {
	t.Helper()
	private, public, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return VAPIDKeys{PublicKey: public, PrivateKey: private, Subscriber: "alerts@example.com"}
}

var testNotification = models.Notification{
	ID:        "n-1",
	ChannelID: ChannelID,
	Title:     "Hb low",
	Body:      "Check the app for details",
	Priority:  models.PriorityHigh,
	PostedAt:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
}

func TestWebPushPosterSends(t *testing.T) {
	var mu sync.Mutex
	var urgency, ttl string
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		urgency = r.Header.Get("Urgency")
		ttl = r.Header.Get("TTL")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	recorder := &fakeRecorder{}
	subs := &fakeSubscriptions{subs: []models.PushSubscription{
		testSubscription(t, server.URL+"/sub/1"),
		testSubscription(t, server.URL+"/sub/2"),
	}}
	p := NewWebPushPoster(recorder, subs, testKeys(t), zerolog.Nop())

	require.NoError(t, p.Post(context.Background(), testNotification))

	assert.Equal(t, []models.Notification{testNotification}, recorder.added)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "high", urgency)
	assert.Equal(t, "30", ttl)
	assert.Empty(t, subs.deleted)
}

func TestWebPushPosterDeletesGoneSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sub/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	subs := &fakeSubscriptions{subs: []models.PushSubscription{
		testSubscription(t, server.URL+"/sub/gone"),
		testSubscription(t, server.URL+"/sub/ok"),
	}}
	p := NewWebPushPoster(&fakeRecorder{}, subs, testKeys(t), zerolog.Nop())

	require.NoError(t, p.Post(context.Background(), testNotification))
	assert.Equal(t, []string{server.URL + "/sub/gone"}, subs.deleted)
}

func TestWebPushPosterNoSubscriptions(t *testing.T) {
	recorder := &fakeRecorder{}
	p := NewWebPushPoster(recorder, &fakeSubscriptions{}, testKeys(t), zerolog.Nop())

	require.NoError(t, p.Post(context.Background(), testNotification))
	assert.Len(t, recorder.added, 1)
}

func TestWebPushPosterRecordFailure(t *testing.T) {
	p := NewWebPushPoster(&fakeRecorder{err: errors.New("redis down")}, &fakeSubscriptions{}, testKeys(t), zerolog.Nop())

	err := p.Post(context.Background(), testNotification)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record notification")
}
