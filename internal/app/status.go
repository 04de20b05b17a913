package app

import (
	"brandops/internal/notifier"
	"brandops/internal/runtime/supervisor"
	"brandops/internal/task/scheduler"
)

// Status is what the debug server reports on /status.
type Status struct {
	Brands     int                    `json:"brands"`
	Storage    bool                   `json:"storage"`
	Sweep      scheduler.Snapshot     `json:"sweep"`
	Supervisor supervisor.Snapshot    `json:"supervisor"`
	Notifier   []notifier.HistoryItem `json:"notifier,omitempty"`
	BusDropped uint64                 `json:"bus_dropped"`
}

func (a *App) Status() Status {
	st := Status{
		Brands:     a.brands.Len(),
		Storage:    a.store != nil,
		Sweep:      a.sched.Snapshot(),
		Notifier:   a.notif.History(),
		BusDropped: a.bus.Dropped(),
	}
	if a.sup != nil {
		st.Supervisor = a.sup.Snapshot()
	}
	return st
}
