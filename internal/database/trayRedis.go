package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ds124wfegd/alarmbridge/internal/entity"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	channelsKey = "notifications:channels"
	trayKey     = "notifications:tray"
)

type trayRepository struct {
	client *redis.Client
}

func NewTrayRepository(client *redis.Client) TrayRepository {
	return &trayRepository{client: client}
}

// EnsureChannel creates the channel unless one with the same id exists; the
// existing definition is left untouched. Reports whether it was created.
func (r *trayRepository) EnsureChannel(ctx context.Context, channel entity.Channel) (bool, error) {
	data, err := json.Marshal(channel)
	if err != nil {
		return false, err
	}
	created, err := r.client.HSetNX(ctx, channelsKey, channel.ID, data).Result()
	if err != nil {
		return false, fmt.Errorf("failed to ensure channel %s: %w", channel.ID, err)
	}
	return created, nil
}

func (r *trayRepository) Channel(ctx context.Context, id string) (*entity.Channel, error) {
	data, err := r.client.HGet(ctx, channelsKey, id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var channel entity.Channel
	if err := json.Unmarshal([]byte(data), &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// Show puts the notification into its slot, replacing whatever was there.
func (r *trayRepository) Show(ctx context.Context, notification *entity.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	field := strconv.FormatInt(int64(notification.Slot), 10)
	return r.client.HSet(ctx, trayKey, field, data).Err()
}

func (r *trayRepository) Dismiss(ctx context.Context, slot int32) (*entity.Notification, error) {
	field := strconv.FormatInt(int64(slot), 10)
	data, err := r.client.HGet(ctx, trayKey, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var notification entity.Notification
	if err := json.Unmarshal([]byte(data), &notification); err != nil {
		return nil, err
	}

	if err := r.client.HDel(ctx, trayKey, field).Err(); err != nil {
		return nil, fmt.Errorf("failed to dismiss slot %d: %w", slot, err)
	}
	return &notification, nil
}

func (r *trayRepository) Visible(ctx context.Context) ([]*entity.Notification, error) {
	entries, err := r.client.HGetAll(ctx, trayKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tray: %w", err)
	}

	notifications := make([]*entity.Notification, 0, len(entries))
	for slot, data := range entries {
		var notification entity.Notification
		if err := json.Unmarshal([]byte(data), &notification); err != nil {
			logrus.WithError(err).WithField("slot", slot).Warn("skipping undecodable tray entry")
			continue
		}
		notifications = append(notifications, &notification)
	}

	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].PostedAt.After(notifications[j].PostedAt)
	})
	return notifications, nil
}
