package notifier

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ds124wfegd/alarmbridge/internal/database"
	"github.com/ds124wfegd/alarmbridge/internal/entity"

	"github.com/sirupsen/logrus"
)

var ErrNoNotification = errors.New("no notification in slot")

// Tray is the notification shade kept in Redis: one visible notification
// per slot.
type Tray struct {
	repo    database.TrayRepository
	enabled atomic.Bool
}

func NewTray(repo database.TrayRepository, enabled bool) *Tray {
	t := &Tray{repo: repo}
	t.enabled.Store(enabled)
	return t
}

// SetEnabled mirrors the user's notification setting.
func (t *Tray) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

func (t *Tray) EnsureChannel(ctx context.Context, channel entity.Channel) error {
	created, err := t.repo.EnsureChannel(ctx, channel)
	if err != nil {
		return err
	}
	if created {
		logrus.WithFields(logrus.Fields{
			"channel":    channel.ID,
			"importance": channel.Importance,
		}).Info("notification channel created")
	}
	return nil
}

func (t *Tray) Post(ctx context.Context, notification entity.Notification) error {
	if !t.enabled.Load() {
		return ErrNotificationsDisabled
	}
	return t.repo.Show(ctx, &notification)
}

func (t *Tray) List(ctx context.Context) ([]*entity.Notification, error) {
	return t.repo.Visible(ctx)
}

// Tap opens the notification in slot and returns its tap action. Auto-cancel
// notifications leave the tray.
func (t *Tray) Tap(ctx context.Context, slot int32) (*entity.TapAction, error) {
	visible, err := t.repo.Visible(ctx)
	if err != nil {
		return nil, err
	}

	for _, n := range visible {
		if n.Slot != slot {
			continue
		}
		if n.AutoCancel {
			if _, err := t.repo.Dismiss(ctx, slot); err != nil && !errors.Is(err, database.ErrNotFound) {
				return nil, err
			}
		}
		action := n.TapAction
		return &action, nil
	}
	return nil, ErrNoNotification
}
