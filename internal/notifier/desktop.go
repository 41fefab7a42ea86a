package notifier

import (
	"context"

	"github.com/ds124wfegd/alarmbridge/internal/entity"
	"github.com/gen2brain/beeep"
)

// Desktop shows notifications on the host's desktop. Desktop notifications
// cannot be replaced, so every post is a new one.
type Desktop struct {
	notify func(title, message string, icon any) error
}

func NewDesktop() *Desktop {
	return &Desktop{notify: beeep.Notify}
}

func (d *Desktop) EnsureChannel(context.Context, entity.Channel) error {
	return nil
}

func (d *Desktop) Post(_ context.Context, notification entity.Notification) error {
	return d.notify(notification.Title, notification.Body, "")
}
