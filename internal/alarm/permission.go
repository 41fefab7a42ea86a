package alarm

import "sync/atomic"

type PermissionChecker interface {
	CanScheduleExactAlarms() bool
}

// PermissionGate mirrors the exact-alarm permission of the device. When the
// permission is not required every alarm may be scheduled.
type PermissionGate struct {
	required atomic.Bool
	granted  atomic.Bool
}

func NewPermissionGate(required, granted bool) *PermissionGate {
	g := &PermissionGate{}
	g.Update(required, granted)
	return g
}

func (g *PermissionGate) Update(required, granted bool) {
	g.required.Store(required)
	g.granted.Store(granted)
}

func (g *PermissionGate) CanScheduleExactAlarms() bool {
	return !g.required.Load() || g.granted.Load()
}
