package service

import (
	"context"

	"github.com/ds124wfegd/alarmbridge/internal/entity"
)

type AlarmUseCase interface {
	// ScheduleAlarm reports true once the alarm service was asked; it does
	// not confirm the alarm was stored.
	ScheduleAlarm(ctx context.Context, req *entity.ScheduleRequest) bool
}
