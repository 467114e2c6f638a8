// Package notify delivers enforcement events to user-facing alert channels.
// The scheduler does not know whether an event ends up rendered, logged, or
// pushed over a webhook; it only hands a Notifier an Event.
package notify

import "time"

// Kind classifies an enforcement event.
type Kind string

const (
	KindWarning            Kind = "warning"
	KindPenalty            Kind = "penalty"
	KindLoyaltyRequired    Kind = "loyalty_check_required"
	KindLoyaltyFailed      Kind = "loyalty_check_failed"
	KindDayRollover        Kind = "day_rollover"
	KindWeeklyReview       Kind = "weekly_review"
	KindMonitoringDegraded Kind = "monitoring_degraded"
)

// Event is one user-facing enforcement event.
type Event struct {
	Kind    Kind      `json:"event"`
	Message string    `json:"message,omitempty"`
	CheckID string    `json:"check_id,omitempty"`
	Points  int       `json:"points,omitempty"`
	Time    time.Time `json:"timestamp"`
}

// Notifier requests a user-facing alert for an event.
type Notifier interface {
	Notify(ev Event) error
}

// Multi fans an event out to every configured channel. Delivery failures on
// one channel do not stop the others; the first error is returned.
type Multi []Notifier

func (m Multi) Notify(ev Event) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Func adapts a plain function to the Notifier interface.
type Func func(ev Event)

func (f Func) Notify(ev Event) error {
	f(ev)
	return nil
}
