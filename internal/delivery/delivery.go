// Package delivery turns a fired alarm into a visible notification.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/ds124wfegd/alarmbridge/internal/entity"
	"github.com/ds124wfegd/alarmbridge/internal/metrics"
	"github.com/ds124wfegd/alarmbridge/internal/notifier"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Options struct {
	Channel    entity.Channel
	SmallIcon  string
	AppPackage string
	Now        func() time.Time
}

// Build is the whole payload -> notification mapping. Missing payload
// fields fall back to placeholders and slot 0.
func Build(payload entity.DeliveryPayload, opts Options) entity.Notification {
	title := entity.FallbackTitle
	if payload.Title != nil {
		title = *payload.Title
	}
	body := entity.FallbackBody
	if payload.Body != nil {
		body = *payload.Body
	}
	var slot int32
	if payload.IdentityCode != nil {
		slot = *payload.IdentityCode
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	return entity.Notification{
		Slot:       slot,
		ChannelID:  opts.Channel.ID,
		Title:      title,
		Body:       body,
		SmallIcon:  opts.SmallIcon,
		Priority:   entity.PriorityHigh,
		AutoCancel: true,
		TapAction: entity.TapAction{
			Kind:   entity.TapLaunchApp,
			Target: opts.AppPackage,
		},
		PostedAt: now(),
	}
}

type Handler struct {
	presenter notifier.Presenter
	limiter   *rate.Limiter
	opts      Options
}

// NewHandler wires the handler. A nil limiter means no rate limit.
func NewHandler(presenter notifier.Presenter, limiter *rate.Limiter, opts Options) *Handler {
	return &Handler{presenter: presenter, limiter: limiter, opts: opts}
}

// Handle presents one fired alarm. Disabled notifications are dropped
// without error; there is nobody left to report to.
func (h *Handler) Handle(ctx context.Context, payload entity.DeliveryPayload) error {
	if err := h.presenter.EnsureChannel(ctx, h.opts.Channel); err != nil {
		logrus.WithError(err).Warn("notification channel not ensured")
	}

	notification := Build(payload, h.opts)

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			metrics.NotificationsDropped.WithLabelValues("cancelled").Inc()
			return err
		}
	}

	if err := h.presenter.Post(ctx, notification); err != nil {
		if errors.Is(err, notifier.ErrNotificationsDisabled) {
			metrics.NotificationsDropped.WithLabelValues("disabled").Inc()
			logrus.WithField("slot", notification.Slot).Info("notifications disabled, dropping")
			return nil
		}
		metrics.NotificationsDropped.WithLabelValues("error").Inc()
		return err
	}

	metrics.NotificationsPosted.Inc()
	logrus.WithFields(logrus.Fields{
		"slot":  notification.Slot,
		"title": notification.Title,
	}).Info("notification posted")
	return nil
}
