package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	AlarmsScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alarmbridge",
		Name:      "alarms_scheduled_total",
		Help:      "scheduleAlarm commands handed to the alarm service, by category.",
	}, []string{"category"})

	AlarmsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alarmbridge",
		Name:      "alarms_skipped_total",
		Help:      "scheduleAlarm commands that did not result in a pending alarm.",
	}, []string{"reason"})

	AlarmsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alarmbridge",
		Name:      "alarms_fired_total",
		Help:      "Alarms claimed for delivery, by the path that claimed them.",
	}, []string{"source"})

	NotificationsPosted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "alarmbridge",
		Name:      "notifications_posted_total",
		Help:      "Notifications handed to the presentation sinks.",
	})

	NotificationsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alarmbridge",
		Name:      "notifications_dropped_total",
		Help:      "Fired alarms that produced no visible notification.",
	}, []string{"reason"})
)

// Register adds every collector to reg. Call once per registry.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		AlarmsScheduled,
		AlarmsSkipped,
		AlarmsFired,
		NotificationsPosted,
		NotificationsDropped,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
