package entity

import (
	"math"
	"time"
)

const (
	DefaultDelaySeconds = 10
	DefaultTitle        = "Test"
	DefaultBody         = "Bildirim"

	// Used when a fired payload arrives without its fields.
	FallbackTitle = "Bildirim"
	FallbackBody  = "Test"
)

// ScheduleRequest is the scheduleAlarm command. Nil fields were absent (or
// of the wrong type) in the call.
type ScheduleRequest struct {
	DelaySeconds *int    `json:"delaySeconds,omitempty"`
	Title        *string `json:"title,omitempty"`
	Body         *string `json:"body,omitempty"`
}

type ResolvedSchedule struct {
	Delay time.Duration
	Title string
	Body  string
}

// Resolve applies the documented defaults. A negative delay or one that
// does not fit a 32-bit int is invalid and falls back to the default.
func (r *ScheduleRequest) Resolve() ResolvedSchedule {
	res := ResolvedSchedule{
		Delay: DefaultDelaySeconds * time.Second,
		Title: DefaultTitle,
		Body:  DefaultBody,
	}
	if r == nil {
		return res
	}
	if r.DelaySeconds != nil && *r.DelaySeconds >= 0 && *r.DelaySeconds <= math.MaxInt32 {
		res.Delay = time.Duration(*r.DelaySeconds) * time.Second
	}
	if r.Title != nil {
		res.Title = *r.Title
	}
	if r.Body != nil {
		res.Body = *r.Body
	}
	return res
}

// DeliveryPayload travels with a pending alarm until it fires.
type DeliveryPayload struct {
	Title        *string `json:"title,omitempty"`
	Body         *string `json:"body,omitempty"`
	IdentityCode *int32  `json:"requestCode,omitempty"`
}

func NewDeliveryPayload(title, body string, code int32) DeliveryPayload {
	return DeliveryPayload{Title: &title, Body: &body, IdentityCode: &code}
}

// Wakeup is what the broker hands back at fire time. Generation tells a
// replaced alarm apart from the one currently pending under Key.
type Wakeup struct {
	Key        int32  `json:"key"`
	Generation string `json:"generation"`
}

// PendingAlarm is the alarm service's record for one key.
type PendingAlarm struct {
	Key        int32           `json:"key"`
	TriggerAt  time.Time       `json:"trigger_at"`
	Generation string          `json:"generation"`
	Payload    DeliveryPayload `json:"payload"`
}
