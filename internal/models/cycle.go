package models

import "time"

// SchedulerState is the state the scheduler is in for a cycle.
type SchedulerState string

const (
	StatePolling   SchedulerState = "polling"
	StateResyncing SchedulerState = "resyncing"
)

// CycleReport summarises one scheduler cycle.
type CycleReport struct {
	ID                     string         `json:"id"`
	Cycle                  int            `json:"cycle"`
	State                  SchedulerState `json:"state"`
	StartedAt              time.Time      `json:"started_at"`
	FinishedAt             time.Time      `json:"finished_at"`
	Resynced               bool           `json:"resynced"`
	SectionsInserted       int            `json:"sections_inserted"`
	PagesRequested         int            `json:"pages_requested"`
	PagesFailed            int            `json:"pages_failed"`
	Snapshots              int            `json:"snapshots"`
	Opened                 int            `json:"opened"`
	Filled                 int            `json:"filled"`
	Unchanged              int            `json:"unchanged"`
	Skipped                int            `json:"skipped"`
	Invalid                int            `json:"invalid"`
	Failed                 int            `json:"failed"`
	NotificationsDelivered int            `json:"notifications_delivered"`
}

// Duration returns how long the cycle took.
func (r CycleReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
