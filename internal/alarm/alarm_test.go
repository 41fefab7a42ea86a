package alarm

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ds124wfegd/alarmbridge/internal/database"
	"github.com/ds124wfegd/alarmbridge/internal/entity"
	"github.com/ds124wfegd/alarmbridge/internal/rabbitMQ"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type published struct {
	name    string
	message []byte
	delay   time.Duration
}

// fakeQueue records delayed publishes instead of talking to a broker.
type fakeQueue struct {
	mu      sync.Mutex
	sent    []published
	handler func([]byte) error
}

func (q *fakeQueue) Publish(ctx context.Context, message interface{}) error {
	return q.PublishWithDelay(ctx, "", message, 0)
}

func (q *fakeQueue) PublishWithDelay(_ context.Context, name string, message interface{}, delay time.Duration) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.sent = append(q.sent, published{name: name, message: body, delay: delay})
	q.mu.Unlock()
	return nil
}

func (q *fakeQueue) Consume(_ context.Context, handler func([]byte) error) error {
	q.mu.Lock()
	q.handler = handler
	q.mu.Unlock()
	return nil
}

func (q *fakeQueue) Close() error { return nil }

// deliver hands message to the consumer registered by Consume.
func (q *fakeQueue) deliver(message []byte) error {
	q.mu.Lock()
	handler := q.handler
	q.mu.Unlock()
	return handler(message)
}

type recorder struct {
	mu       sync.Mutex
	payloads []entity.DeliveryPayload
}

func (r *recorder) fire(_ context.Context, p entity.DeliveryPayload) error {
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	r.mu.Unlock()
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func newTestManager(t *testing.T, queue rabbitMQ.Queue) (*Manager, *fakeClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := &fakeClock{now: time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)}
	m := NewManager(database.NewRedisRepository(client), queue, Options{SweepBatch: 10, Now: clock.Now})
	return m, clock
}

func TestSweepDeliversWhenDue(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestManager(t, nil)
	rec := &recorder{}

	require.NoError(t, m.SetExact(ctx, clock.Now().Add(10*time.Second), 1001,
		entity.NewDeliveryPayload("Good Morning", "Rise!", 1001)))

	n, err := m.Sweep(ctx, rec.fire)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(10 * time.Second)
	n, err = m.Sweep(ctx, rec.fire)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, rec.payloads, 1)
	assert.Equal(t, "Rise!", *rec.payloads[0].Body)
}

func TestSameKeyBeforeFireDeliversOnce(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestManager(t, nil)
	rec := &recorder{}

	require.NoError(t, m.SetExact(ctx, clock.Now().Add(5*time.Second), 1002,
		entity.NewDeliveryPayload("End of Day", "first", 1002)))
	require.NoError(t, m.SetExact(ctx, clock.Now().Add(8*time.Second), 1002,
		entity.NewDeliveryPayload("End of Day", "second", 1002)))

	clock.Advance(time.Minute)
	_, err := m.Sweep(ctx, rec.fire)
	require.NoError(t, err)
	_, err = m.Sweep(ctx, rec.fire)
	require.NoError(t, err)

	require.Len(t, rec.payloads, 1)
	assert.Equal(t, "second", *rec.payloads[0].Body)
}

func TestDifferentKeysCoexist(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestManager(t, nil)
	rec := &recorder{}

	require.NoError(t, m.SetExact(ctx, clock.Now(), 1001, entity.NewDeliveryPayload("Good Morning", "a", 1001)))
	require.NoError(t, m.SetExact(ctx, clock.Now(), 77, entity.NewDeliveryPayload("Buy milk", "b", 77)))

	n, err := m.Sweep(ctx, rec.fire)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBrokerWakeupAndSweepDeliverOnce(t *testing.T) {
	ctx := context.Background()
	queue := &fakeQueue{}
	m, clock := newTestManager(t, queue)
	rec := &recorder{}

	require.NoError(t, m.SetExact(ctx, clock.Now().Add(30*time.Second), 1003,
		entity.NewDeliveryPayload("Keep Your Streak", "go", 1003)))

	require.Len(t, queue.sent, 1)
	assert.Equal(t, 30*time.Second, queue.sent[0].delay)

	var wakeup entity.Wakeup
	require.NoError(t, json.Unmarshal(queue.sent[0].message, &wakeup))
	assert.Equal(t, int32(1003), wakeup.Key)

	clock.Advance(30 * time.Second)
	require.NoError(t, m.HandleWakeup(ctx, wakeup, rec.fire))

	n, err := m.Sweep(ctx, rec.fire)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, rec.payloads, 1)
}

func TestStaleWakeupIsIgnored(t *testing.T) {
	ctx := context.Background()
	queue := &fakeQueue{}
	m, clock := newTestManager(t, queue)
	rec := &recorder{}

	require.NoError(t, m.SetExact(ctx, clock.Now().Add(time.Second), 1001,
		entity.NewDeliveryPayload("Good Morning", "old", 1001)))
	require.NoError(t, m.SetExact(ctx, clock.Now().Add(time.Hour), 1001,
		entity.NewDeliveryPayload("Good Morning", "new", 1001)))
	require.Len(t, queue.sent, 2)

	var stale, current entity.Wakeup
	require.NoError(t, json.Unmarshal(queue.sent[0].message, &stale))
	require.NoError(t, json.Unmarshal(queue.sent[1].message, &current))
	assert.NotEqual(t, stale.Generation, current.Generation)

	clock.Advance(time.Second)
	require.NoError(t, m.HandleWakeup(ctx, stale, rec.fire))
	assert.Empty(t, rec.payloads)

	clock.Advance(time.Hour)
	require.NoError(t, m.HandleWakeup(ctx, current, rec.fire))
	require.Len(t, rec.payloads, 1)
	assert.Equal(t, "new", *rec.payloads[0].Body)
}

func TestPermissionGate(t *testing.T) {
	tests := []struct {
		name     string
		required bool
		granted  bool
		want     bool
	}{
		{name: "not required", required: false, granted: false, want: true},
		{name: "required and granted", required: true, granted: true, want: true},
		{name: "required and missing", required: true, granted: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewPermissionGate(tt.required, tt.granted)
			assert.Equal(t, tt.want, g.CanScheduleExactAlarms())
		})
	}

	g := NewPermissionGate(true, false)
	g.Update(true, true)
	assert.True(t, g.CanScheduleExactAlarms())
}

func TestNewManagerRaisesSubSecondSweepInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{name: "unset", interval: 0, want: time.Second},
		{name: "sub-second", interval: 250 * time.Millisecond, want: time.Second},
		{name: "whole seconds", interval: 5 * time.Second, want: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(nil, nil, Options{SweepInterval: tt.interval})
			assert.Equal(t, tt.want, m.sweepInterval)
		})
	}
}

func TestStartSweepsDueAlarms(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, clock := newTestManager(t, nil)
	rec := &recorder{}

	require.NoError(t, m.SetExact(ctx, clock.Now(), 1001,
		entity.NewDeliveryPayload("Good Morning", "Rise!", 1001)))

	require.NoError(t, m.Start(ctx, rec.fire))
	require.Eventually(t, func() bool { return rec.count() == 1 }, 5*time.Second, 50*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, 1, rec.count())
}

func TestStartConsumesBrokerWakeups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := &fakeQueue{}
	m, clock := newTestManager(t, queue)
	rec := &recorder{}

	require.NoError(t, m.SetExact(ctx, clock.Now().Add(time.Hour), 1003,
		entity.NewDeliveryPayload("Keep Your Streak", "go", 1003)))
	require.Len(t, queue.sent, 1)

	require.NoError(t, m.Start(ctx, rec.fire))
	defer m.Stop()

	require.NoError(t, queue.deliver(queue.sent[0].message))
	require.NoError(t, queue.deliver(queue.sent[0].message))
	assert.Error(t, queue.deliver([]byte("not json")))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, "go", *rec.payloads[0].Body)
}
