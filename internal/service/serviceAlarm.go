package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/alarmbridge/internal/alarm"
	"github.com/ds124wfegd/alarmbridge/internal/entity"
	"github.com/ds124wfegd/alarmbridge/internal/identity"
	"github.com/ds124wfegd/alarmbridge/internal/metrics"

	"github.com/sirupsen/logrus"
)

type alarmUseCase struct {
	scheduler  alarm.Scheduler
	permission alarm.PermissionChecker
	now        func() time.Time
}

func NewAlarmUseCase(scheduler alarm.Scheduler, permission alarm.PermissionChecker, now func() time.Time) AlarmUseCase {
	if now == nil {
		now = time.Now
	}
	return &alarmUseCase{
		scheduler:  scheduler,
		permission: permission,
		now:        now,
	}
}

// ScheduleAlarm never reports failure to the caller. A missing exact-alarm
// permission and alarm service errors are logged and counted only; this is
// a known limitation, kept until the app layer can act on such a signal.
func (uc *alarmUseCase) ScheduleAlarm(ctx context.Context, req *entity.ScheduleRequest) bool {
	resolved := req.Resolve()
	code := identity.Code(resolved.Title)

	category, ok := identity.Category(resolved.Title)
	if !ok {
		category = "adhoc"
	}

	log := logrus.WithFields(logrus.Fields{
		"key":      code,
		"category": category,
		"delay":    resolved.Delay.String(),
	})

	if !uc.permission.CanScheduleExactAlarms() {
		metrics.AlarmsSkipped.WithLabelValues("permission").Inc()
		log.Warn("exact alarm permission missing, alarm not scheduled")
		return true
	}

	payload := entity.NewDeliveryPayload(resolved.Title, resolved.Body, code)
	if err := uc.scheduler.SetExact(ctx, uc.now().Add(resolved.Delay), code, payload); err != nil {
		metrics.AlarmsSkipped.WithLabelValues("error").Inc()
		log.WithError(err).Error("alarm not scheduled")
		return true
	}

	metrics.AlarmsScheduled.WithLabelValues(category).Inc()
	log.Info("alarm scheduled")
	return true
}
