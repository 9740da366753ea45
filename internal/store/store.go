package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hemogram-alerts-go/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	notificationTTL = 7 * 24 * time.Hour

	channelsKey   = "notify:channels"
	timelineKey   = "notify:timeline"
	permissionKey = "notify:permission"
	itemKeyPrefix = "notify:item:"
	eventsChannel = "notify_events"
)

var ErrNotFound = errors.New("not found")

// NotificationStore holds notification channels, posted notifications and
// the user's notification permission (Redis).
type NotificationStore interface {
	EnsureChannel(ctx context.Context, ch models.Channel) error
	GetChannel(ctx context.Context, id string) (models.Channel, error)
	AddNotification(ctx context.Context, n models.Notification) error
	GetNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	PurgeNotifications(ctx context.Context) error
	SetPermission(ctx context.Context, granted bool) error
	PermissionGranted(ctx context.Context) (bool, error)
	Subscribe(ctx context.Context) *redis.PubSub
}

// DeviceStore holds push subscriptions and registration tokens (PostgreSQL).
type DeviceStore interface {
	SavePushSubscription(ctx context.Context, endpoint, p256dh, auth string) error
	GetPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
	RegisterToken(ctx context.Context, token string) (models.DeviceToken, error)
	GetTokens(ctx context.Context) ([]models.DeviceToken, error)
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts *redis.Options) *RedisStore {
	rdb := redis.NewClient(opts)
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// EnsureChannel creates or overwrites the channel; calling it repeatedly
// with the same channel has no further effect.
func (s *RedisStore) EnsureChannel(ctx context.Context, ch models.Channel) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, channelsKey, ch.ID, data).Err()
}

func (s *RedisStore) GetChannel(ctx context.Context, id string) (models.Channel, error) {
	val, err := s.client.HGet(ctx, channelsKey, id).Result()
	if err == redis.Nil {
		return models.Channel{}, ErrNotFound
	} else if err != nil {
		return models.Channel{}, err
	}

	var ch models.Channel
	if err := json.Unmarshal([]byte(val), &ch); err != nil {
		return models.Channel{}, err
	}
	return ch, nil
}

func (s *RedisStore) AddNotification(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	key := itemKey(n)

	// Scores are milliseconds; ZREVRANGE breaks ties by member, newest first.
	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, notificationTTL)
	pipe.ZAdd(ctx, timelineKey, redis.Z{
		Score:  float64(n.PostedAt.UnixMilli()),
		Member: key,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// Live feed for open pages
	if err := s.client.Publish(ctx, eventsChannel, data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// itemKey embeds the zero-padded posting time so keys sort chronologically.
func itemKey(n models.Notification) string {
	return fmt.Sprintf("%s%020d:%s", itemKeyPrefix, n.PostedAt.UnixNano(), n.ID)
}

// GetNotifications returns the newest notifications first. limit <= 0 means all.
func (s *RedisStore) GetNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	keys, err := s.client.ZRevRange(ctx, timelineKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	notifications := []models.Notification{}
	for _, key := range keys {
		val, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			// Expired, drop it from the timeline
			s.client.ZRem(ctx, timelineKey, key)
			continue
		} else if err != nil {
			continue
		}

		var n models.Notification
		if err := json.Unmarshal([]byte(val), &n); err == nil {
			notifications = append(notifications, n)
		}
	}
	return notifications, nil
}

func (s *RedisStore) PurgeNotifications(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, itemKeyPrefix+"*", 0).Iterator()
	keys := []string{timelineKey}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisStore) SetPermission(ctx context.Context, granted bool) error {
	val := "denied"
	if granted {
		val = "granted"
	}
	return s.client.Set(ctx, permissionKey, val, 0).Err()
}

// PermissionGranted reports false until the permission has been granted explicitly.
func (s *RedisStore) PermissionGranted(ctx context.Context) (bool, error) {
	val, err := s.client.Get(ctx, permissionKey).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return val == "granted", nil
}

func (s *RedisStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, eventsChannel)
}
