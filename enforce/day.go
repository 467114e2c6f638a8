// Package enforce runs the compliance state machine: breath-hold penalties,
// randomly scheduled loyalty checks, day rollover, and day submission. It
// never owns a timer; every deadline is a stored timestamp evaluated against
// the wall-clock snapshot the host passes in, so the whole machine can be
// driven by any tick source.
package enforce

import (
	"time"

	"vigil/scoring"
)

// DateFormat is the canonical layout of a DayRecord date, local time.
const DateFormat = "2006-01-02"

// DateOf truncates a timestamp to its local calendar date.
func DateOf(now time.Time) string {
	return now.Format(DateFormat)
}

// DayRecord is the unit of daily progress. It is mutable until Submitted is
// set, after which the scheduler refuses all changes and the record only
// exists to be archived.
type DayRecord struct {
	Date                  string                          `json:"date"`
	Submitted             bool                            `json:"submitted"`
	Score                 int                             `json:"score"`
	Multiplier            float64                         `json:"multiplier"`
	PenaltyPoints         int                             `json:"penalty_points"`
	MissedLoyaltyChecks   int                             `json:"missed_loyalty_checks"`
	Tasks                 map[scoring.TaskID]scoring.Task `json:"tasks"`
	OrgasmRecorded        bool                            `json:"orgasm_recorded"`
	OrgasmProofID         string                          `json:"orgasm_proof_id,omitempty"`
	RemedialProofRequired bool                            `json:"remedial_proof_required"`
	Punishment            string                          `json:"punishment,omitempty"`
}

// NewDayRecord returns a fresh record for the given date carrying the
// multiplier computed at rollover.
func NewDayRecord(date string, multiplier float64) DayRecord {
	if multiplier < 1 {
		multiplier = 1
	}
	return DayRecord{
		Date:       date,
		Multiplier: multiplier,
		Tasks:      make(map[scoring.TaskID]scoring.Task),
	}
}

// Sanitize repairs a loaded record. A record for the wrong date, or one
// missing required fields, is replaced wholesale with a fresh record; minor
// damage (nil task map, sub-floor multiplier) is patched in place.
func Sanitize(d DayRecord, date string) DayRecord {
	if d.Date != date {
		return NewDayRecord(date, 1)
	}
	if d.Multiplier < 1 {
		d.Multiplier = 1
	}
	if d.Tasks == nil {
		d.Tasks = make(map[scoring.TaskID]scoring.Task)
	}
	if d.Score < 0 {
		d.Score = 0
	}
	if d.Score > 100 {
		d.Score = 100
	}
	return d
}

func (d DayRecord) clone() DayRecord {
	out := d
	out.Tasks = make(map[scoring.TaskID]scoring.Task, len(d.Tasks))
	for k, v := range d.Tasks {
		out.Tasks[k] = v
	}
	return out
}

// LoyaltyCheck is an armed compliance check. Deadline is immutable once the
// check is created; resolution happens by completion or expiry, never by
// rescheduling.
type LoyaltyCheck struct {
	ID        string    `json:"id"`
	Active    bool      `json:"active"`
	Completed bool      `json:"completed"`
	Deadline  time.Time `json:"deadline"`
	ProofID   string    `json:"proof_id,omitempty"`
}

// HistoryItem is an archived, scored day.
type HistoryItem struct {
	Date                string       `json:"date"`
	Score               int          `json:"score"`
	Feedback            scoring.Tier `json:"feedback"`
	Multiplier          float64      `json:"multiplier"`
	MissedLoyaltyChecks int          `json:"missed_loyalty_checks"`
	Punishment          string       `json:"punishment,omitempty"`
}

// State is the cross-day scheduler state persisted beside the day record.
type State struct {
	Streak           int       `json:"streak"`
	LockUntil        time.Time `json:"lock_until"`
	LastTrigger      time.Time `json:"last_trigger"`
	LastActive       time.Time `json:"last_active"`
	WeeklyReviewSeen string    `json:"weekly_review_seen"` // date the Sunday review last fired
}

// Persistence is the slice of the storage layer the scheduler writes
// through. The concrete store package satisfies it.
type Persistence interface {
	SaveDay(d DayRecord) error
	AppendHistory(item HistoryItem) error
	// History returns archived days newest-first.
	History() ([]HistoryItem, error)
	SaveState(s State) error
}
