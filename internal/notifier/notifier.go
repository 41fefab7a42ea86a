// Package notifier presents notifications to the user. Each Presenter is
// one display surface; posting to a slot that is already visible replaces
// that notification where the surface supports it.
package notifier

import (
	"context"
	"errors"

	"github.com/ds124wfegd/alarmbridge/internal/entity"
)

// ErrNotificationsDisabled means the user turned notifications off for
// the surface. Nothing was shown.
var ErrNotificationsDisabled = errors.New("notifications disabled")

type Presenter interface {
	// EnsureChannel creates channel if it does not exist yet.
	EnsureChannel(ctx context.Context, channel entity.Channel) error
	Post(ctx context.Context, notification entity.Notification) error
}

type multi []Presenter

// Multi posts to every presenter and joins their errors.
func Multi(presenters ...Presenter) Presenter {
	if len(presenters) == 1 {
		return presenters[0]
	}
	return multi(presenters)
}

func (m multi) EnsureChannel(ctx context.Context, channel entity.Channel) error {
	var errs []error
	for _, p := range m {
		if err := p.EnsureChannel(ctx, channel); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Post reports ErrNotificationsDisabled only when no presenter showed the
// notification and every one of them was disabled.
func (m multi) Post(ctx context.Context, notification entity.Notification) error {
	var errs []error
	disabled := 0
	for _, p := range m {
		err := p.Post(ctx, notification)
		switch {
		case err == nil:
		case errors.Is(err, ErrNotificationsDisabled):
			disabled++
		default:
			errs = append(errs, err)
		}
	}
	if len(m) > 0 && disabled == len(m) {
		return ErrNotificationsDisabled
	}
	return errors.Join(errs...)
}
