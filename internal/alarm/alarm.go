// Package alarm is the one-shot wake-up service: alarms are parked in Redis
// under their key and handed to a FireFunc once due, either by a broker
// wake-up or by the periodic sweep.
package alarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ds124wfegd/alarmbridge/internal/database"
	"github.com/ds124wfegd/alarmbridge/internal/entity"
	"github.com/ds124wfegd/alarmbridge/internal/metrics"
	"github.com/ds124wfegd/alarmbridge/internal/rabbitMQ"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Scheduler interface {
	// SetExact registers a wake-up at triggerAt. An alarm already pending
	// under key is replaced.
	SetExact(ctx context.Context, triggerAt time.Time, key int32, payload entity.DeliveryPayload) error
}

type FireFunc func(ctx context.Context, payload entity.DeliveryPayload) error

const minSweepInterval = time.Second

type Options struct {
	SweepInterval time.Duration
	SweepBatch    int
	Now           func() time.Time
}

type Manager struct {
	repo  database.AlarmRepository
	queue rabbitMQ.Queue

	sweepInterval time.Duration
	sweepBatch    int
	now           func() time.Time

	// fired alarms reach the FireFunc one at a time
	fireMu sync.Mutex
	cron   *cron.Cron
}

// NewManager builds a Manager. queue may be nil, in which case alarms fire
// from the sweep alone. Sweep intervals below one second are raised to one
// second.
func NewManager(repo database.AlarmRepository, queue rabbitMQ.Queue, opts Options) *Manager {
	// cron's @every has one-second resolution
	if opts.SweepInterval < minSweepInterval {
		opts.SweepInterval = minSweepInterval
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		repo:          repo,
		queue:         queue,
		sweepInterval: opts.SweepInterval,
		sweepBatch:    opts.SweepBatch,
		now:           opts.Now,
	}
}

func (m *Manager) SetExact(ctx context.Context, triggerAt time.Time, key int32, payload entity.DeliveryPayload) error {
	alarm := &entity.PendingAlarm{
		Key:        key,
		TriggerAt:  triggerAt,
		Generation: uuid.NewString(),
		Payload:    payload,
	}

	if err := m.repo.Put(ctx, alarm); err != nil {
		return err
	}

	if m.queue != nil {
		wakeup := entity.Wakeup{Key: key, Generation: alarm.Generation}
		name := fmt.Sprintf("%d_%s", key, alarm.Generation)
		if err := m.queue.PublishWithDelay(ctx, name, wakeup, triggerAt.Sub(m.now())); err != nil {
			// the sweep still picks the alarm up
			logrus.WithFields(logrus.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("broker wake-up not published")
		}
	}

	logrus.WithFields(logrus.Fields{
		"key":        key,
		"trigger_at": triggerAt.Format(time.RFC3339),
	}).Debug("alarm set")
	return nil
}

// Start begins consuming broker wake-ups and sweeping due alarms. Both stop
// when ctx is done; call Stop to wait for a running sweep.
func (m *Manager) Start(ctx context.Context, fire FireFunc) error {
	if m.queue != nil {
		err := m.queue.Consume(ctx, func(message []byte) error {
			var wakeup entity.Wakeup
			if err := json.Unmarshal(message, &wakeup); err != nil {
				return fmt.Errorf("failed to decode wake-up: %w", err)
			}
			return m.HandleWakeup(ctx, wakeup, fire)
		})
		if err != nil {
			return err
		}
	}

	logger := cron.PrintfLogger(logrus.StandardLogger())
	m.cron = cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	_, err := m.cron.AddFunc("@every "+m.sweepInterval.String(), func() {
		if _, err := m.Sweep(ctx, fire); err != nil {
			logrus.WithError(err).Error("alarm sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule alarm sweep: %w", err)
	}
	m.cron.Start()

	logrus.WithField("interval", m.sweepInterval.String()).Info("alarm service started")
	return nil
}

func (m *Manager) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}

// HandleWakeup delivers the alarm a broker wake-up refers to. A wake-up
// whose alarm was replaced or already delivered is ignored.
func (m *Manager) HandleWakeup(ctx context.Context, wakeup entity.Wakeup, fire FireFunc) error {
	alarm, err := m.repo.Claim(ctx, wakeup.Key, wakeup.Generation)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			logrus.WithField("key", wakeup.Key).Debug("stale wake-up ignored")
			return nil
		}
		return err
	}

	metrics.AlarmsFired.WithLabelValues("broker").Inc()
	return m.fire(ctx, alarm, fire)
}

// Sweep delivers every alarm that is due and returns how many it claimed.
func (m *Manager) Sweep(ctx context.Context, fire FireFunc) (int, error) {
	due, err := m.repo.ClaimDue(ctx, m.now(), m.sweepBatch)
	if err != nil {
		return 0, err
	}

	for _, alarm := range due {
		metrics.AlarmsFired.WithLabelValues("sweep").Inc()
		if err := m.fire(ctx, alarm, fire); err != nil {
			logrus.WithFields(logrus.Fields{
				"key":   alarm.Key,
				"error": err.Error(),
			}).Warn("alarm delivery failed")
		}
	}
	return len(due), nil
}

func (m *Manager) fire(ctx context.Context, alarm *entity.PendingAlarm, fire FireFunc) error {
	m.fireMu.Lock()
	defer m.fireMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"key":     alarm.Key,
		"late_by": m.now().Sub(alarm.TriggerAt).String(),
	}).Info("alarm fired")
	return fire(ctx, alarm.Payload)
}
