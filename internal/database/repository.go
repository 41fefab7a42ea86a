package database

import (
	"context"
	"errors"
	"time"

	"github.com/ds124wfegd/alarmbridge/internal/entity"
)

var ErrNotFound = errors.New("not found")

type AlarmRepository interface {
	// Put replaces whatever is pending under alarm.Key.
	Put(ctx context.Context, alarm *entity.PendingAlarm) error
	// ClaimDue removes and returns up to limit alarms due at or before now.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entity.PendingAlarm, error)
	// Claim removes and returns the alarm under key if its generation still
	// matches; ErrNotFound otherwise.
	Claim(ctx context.Context, key int32, generation string) (*entity.PendingAlarm, error)
}

type TrayRepository interface {
	EnsureChannel(ctx context.Context, channel entity.Channel) (bool, error)
	Channel(ctx context.Context, id string) (*entity.Channel, error)
	Show(ctx context.Context, notification *entity.Notification) error
	Dismiss(ctx context.Context, slot int32) (*entity.Notification, error)
	Visible(ctx context.Context) ([]*entity.Notification, error)
}
