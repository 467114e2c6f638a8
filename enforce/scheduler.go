package enforce

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"vigil/breath"
	"vigil/log"
	"vigil/notify"
	"vigil/scoring"
)

const (
	holdWarnAfter    = 15 * time.Second
	holdPenaltyAfter = 10 * time.Second // after the warning
	holdPenalty      = 10

	loyaltyWindowStart = 8  // local hour, inclusive
	loyaltyWindowEnd   = 23 // local hour, inclusive
	loyaltyCooldown    = 2 * time.Hour
	loyaltyDeadline    = 7 * time.Minute
	loyaltyTriggerProb = 0.005 // per enforcement tick

	absenceAfter   = 12 * time.Hour
	absencePenalty = 10

	weeklyReviewDay    = time.Sunday
	weeklyAvgThreshold = 75.0
	reportDueHour      = 21
)

// Scheduler owns the current DayRecord and every enforcement deadline. All
// methods take the caller's wall-clock snapshot so one tick evaluates every
// deadline against a single consistent time.
type Scheduler struct {
	mu sync.Mutex

	day   DayRecord
	check LoyaltyCheck
	state State

	// breath-hold episode; zero deadlines mean nothing armed
	holding   bool
	warnAt    time.Time
	penaltyAt time.Time

	degraded   bool
	reportDue  bool
	lastResult scoring.Result
	scored     bool

	// submission writes that have not reached the store yet; snapshots so
	// a rollover between failure and retry cannot corrupt the archive
	pendingItem HistoryItem
	pendingDay  DayRecord
	needHistory bool
	needDay     bool
	needState   bool

	p        Persistence
	notifier notify.Notifier
	rng      *rand.Rand
}

// New restores a scheduler from persisted state. day is the loaded record
// for today (Sanitize is applied here, so a stale or damaged record is
// safe to pass). If more than 12 hours passed since the persisted
// last-active time and today is still unsubmitted, an absence penalty is
// applied immediately.
func New(day DayRecord, st State, p Persistence, n notify.Notifier, rng *rand.Rand, now time.Time) *Scheduler {
	s := &Scheduler{
		day:      Sanitize(day, DateOf(now)),
		state:    st,
		p:        p,
		notifier: n,
		rng:      rng,
	}

	var evs []notify.Event
	if !st.LastActive.IsZero() && now.Sub(st.LastActive) > absenceAfter && !s.day.Submitted {
		s.day.PenaltyPoints += absencePenalty
		evs = append(evs, notify.Event{
			Kind:    notify.KindPenalty,
			Message: "monitoring absence exceeded 12 hours",
			Points:  absencePenalty,
			Time:    now,
		})
		s.saveDayLocked()
	}
	s.state.LastActive = now
	s.saveStateLocked()

	s.emit(evs)
	return s
}

// HandleMetrics consumes one classified audio frame. Silence arms the
// warning deadline; the warning arms the penalty deadline; breathing at any
// point cancels both. The deadlines are evaluated here too, so the breath
// branch needs no tick of its own beyond the frame stream.
func (s *Scheduler) HandleMetrics(m breath.Metrics, now time.Time) {
	s.mu.Lock()
	var evs []notify.Event

	s.degraded = false

	if m.Breathing {
		s.holding = false
		s.warnAt = time.Time{}
		s.penaltyAt = time.Time{}
	} else {
		if !s.holding {
			s.holding = true
			s.warnAt = now.Add(holdWarnAfter)
			s.penaltyAt = time.Time{}
		}
		if !s.warnAt.IsZero() && !now.Before(s.warnAt) {
			evs = append(evs, notify.Event{
				Kind:    notify.KindWarning,
				Message: "breathing not detected for 15 seconds",
				Time:    now,
			})
			s.penaltyAt = s.warnAt.Add(holdPenaltyAfter)
			s.warnAt = time.Time{}
		}
		if !s.penaltyAt.IsZero() && !now.Before(s.penaltyAt) {
			s.penaltyAt = time.Time{}
			if !s.day.Submitted {
				s.day.PenaltyPoints += holdPenalty
				s.saveDayLocked()
			}
			evs = append(evs, notify.Event{
				Kind:    notify.KindPenalty,
				Message: "breath hold exceeded 25 seconds",
				Points:  holdPenalty,
				Time:    now,
			})
		}
	}

	s.mu.Unlock()
	s.emit(evs)
}

// HandleUnavailable suspends the breath-hold branch while capture is down.
// The penalty cannot be fairly evaluated without a signal, so the episode
// state is dropped and a degraded event fires once per outage.
func (s *Scheduler) HandleUnavailable(now time.Time) {
	s.mu.Lock()
	var evs []notify.Event
	if !s.degraded {
		s.degraded = true
		s.holding = false
		s.warnAt = time.Time{}
		s.penaltyAt = time.Time{}
		evs = append(evs, notify.Event{
			Kind:    notify.KindMonitoringDegraded,
			Message: "audio capture unavailable, breath monitoring suspended",
			Time:    now,
		})
	}
	s.mu.Unlock()
	s.emit(evs)
}

// Tick runs the coarse enforcement pass: day rollover, loyalty deadline
// expiry, loyalty trigger draw, weekly review, and the Sunday report flag.
// Hosts call it about once a minute.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	var evs []notify.Event

	// Writes a failed submission left behind land before anything else.
	if err := s.flushSubmitLocked(); err != nil {
		log.Errorf("retry submission writes: %v", err)
	}

	today := DateOf(now)
	if s.day.Date != today {
		evs = append(evs, s.rolloverLocked(now, today)...)
	}

	// Deadline expiry fires the miss path exactly once per check. A check
	// outliving submission still resolves, but the archived record is
	// immutable and keeps its scored counters.
	if s.check.Active && now.After(s.check.Deadline) {
		s.check.Active = false
		if !s.day.Submitted {
			s.day.MissedLoyaltyChecks++
			s.day.RemedialProofRequired = true
			s.saveDayLocked()
		}
		evs = append(evs, notify.Event{
			Kind:    notify.KindLoyaltyFailed,
			Message: "loyalty check deadline passed, remedial proof required",
			CheckID: s.check.ID,
			Time:    now,
		})
	}

	if s.loyaltyEligibleLocked(now) && s.rng.Float64() < loyaltyTriggerProb {
		s.check = LoyaltyCheck{
			ID:       fmt.Sprintf("check-%s-%d", today, now.Unix()),
			Active:   true,
			Deadline: now.Add(loyaltyDeadline),
		}
		s.state.LastTrigger = now
		evs = append(evs, notify.Event{
			Kind:    notify.KindLoyaltyRequired,
			Message: "loyalty check: submit proof within 7 minutes",
			CheckID: s.check.ID,
			Time:    now,
		})
	}

	evs = append(evs, s.weeklyReviewLocked(now, today)...)

	if now.Weekday() == weeklyReviewDay && now.Hour() >= reportDueHour && !s.day.Submitted {
		s.reportDue = true
	}

	s.state.LastActive = now
	s.saveStateLocked()

	s.mu.Unlock()
	s.emit(evs)
}

func (s *Scheduler) loyaltyEligibleLocked(now time.Time) bool {
	h := now.Hour()
	if h < loyaltyWindowStart || h > loyaltyWindowEnd {
		return false
	}
	// A completed check blocks re-triggering until rollover consumes it.
	if s.check.Active || s.check.Completed {
		return false
	}
	if !s.state.LastTrigger.IsZero() && now.Sub(s.state.LastTrigger) < loyaltyCooldown {
		return false
	}
	return !s.day.Submitted
}

// rolloverLocked archives nothing by itself (submission does that); it only
// derives the new day's multiplier from yesterday's outcome and resets the
// per-day state.
func (s *Scheduler) rolloverLocked(now time.Time, today string) []notify.Event {
	yesterday := s.day

	mult := 1.0
	if !yesterday.Submitted || yesterday.Score < 70 {
		mult = 2.0
	}
	if yesterday.MissedLoyaltyChecks >= 2 {
		mult = 2.5
	}

	if yesterday.Submitted && yesterday.Score >= 70 {
		s.state.Streak++
	} else {
		s.state.Streak = 0
	}

	s.day = NewDayRecord(today, mult)
	s.check = LoyaltyCheck{}
	s.holding = false
	s.warnAt = time.Time{}
	s.penaltyAt = time.Time{}
	s.reportDue = false
	s.scored = false
	s.saveDayLocked()

	return []notify.Event{{
		Kind:    notify.KindDayRollover,
		Message: fmt.Sprintf("new day %s, multiplier x%.1f", today, mult),
		Time:    now,
	}}
}

// weeklyReviewLocked raises the multiplier once per Sunday when the trailing
// seven-day average falls below the review threshold.
func (s *Scheduler) weeklyReviewLocked(now time.Time, today string) []notify.Event {
	if now.Weekday() != weeklyReviewDay || s.state.WeeklyReviewSeen == today {
		return nil
	}
	items, err := s.p.History()
	if err != nil {
		log.Errorf("weekly review: load history: %v", err)
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	// History is newest-first; the trailing week is the head.
	recent := items
	if len(recent) > 7 {
		recent = recent[:7]
	}
	sum := 0
	for _, it := range recent {
		sum += it.Score
	}
	avg := float64(sum) / float64(len(recent))
	s.state.WeeklyReviewSeen = today
	if avg >= weeklyAvgThreshold {
		return nil
	}
	if !s.day.Submitted && s.day.Multiplier < 1.5 {
		s.day.Multiplier = 1.5
		s.saveDayLocked()
	}
	return []notify.Event{{
		Kind:    notify.KindWeeklyReview,
		Message: fmt.Sprintf("weekly average %.0f below %.0f, multiplier raised", avg, weeklyAvgThreshold),
		Time:    now,
	}}
}

// UpdateTask records progress for one category. Submitted days are
// immutable; the call is then a silent no-op.
func (s *Scheduler) UpdateTask(id scoring.TaskID, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.day.Submitted {
		return
	}
	t := s.day.Tasks[id]
	t.Value = value
	s.day.Tasks[id] = t
	s.saveDayLocked()
}

// AttachProof links a stored proof to a task category. Any accepted proof
// also clears a pending remedial requirement.
func (s *Scheduler) AttachProof(id scoring.TaskID, proofID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.day.Submitted {
		return
	}
	t := s.day.Tasks[id]
	t.ProofID = proofID
	s.day.Tasks[id] = t
	s.day.RemedialProofRequired = false
	s.saveDayLocked()
}

// RecordOrgasm marks the event on the current day. An empty proofID is
// allowed and costs the liar penalty at scoring time.
func (s *Scheduler) RecordOrgasm(proofID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.day.Submitted {
		return
	}
	s.day.OrgasmRecorded = true
	s.day.OrgasmProofID = proofID
	s.saveDayLocked()
}

// SubmitLoyaltyProof resolves the active check, or clears a pending
// remedial requirement when the check already expired. Returns whether the
// submission had any effect.
func (s *Scheduler) SubmitLoyaltyProof(checkID, proofID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.check.Active && s.check.ID == checkID && !now.After(s.check.Deadline) {
		s.check.Active = false
		s.check.Completed = true
		s.check.ProofID = proofID
		s.day.RemedialProofRequired = false
		s.saveDayLocked()
		return true
	}
	if s.day.RemedialProofRequired {
		s.day.RemedialProofRequired = false
		s.saveDayLocked()
		return true
	}
	return false
}

// SubmitDay finalizes the current record: score it, archive it, apply locks
// and punishment. A second call returns the first call's result unchanged.
func (s *Scheduler) SubmitDay(now time.Time) (scoring.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.day.Submitted {
		// The result never changes, but a write that failed on the first
		// call is retried until it lands.
		return s.lastResult, s.flushSubmitLocked()
	}

	res := scoring.Score(scoring.Input{
		Tasks:               s.day.Tasks,
		Multiplier:          s.day.Multiplier,
		PenaltyPoints:       s.day.PenaltyPoints,
		MissedLoyaltyChecks: s.day.MissedLoyaltyChecks,
		OrgasmRecorded:      s.day.OrgasmRecorded,
		OrgasmProofID:       s.day.OrgasmProofID,
	})

	lockHours := res.OrgasmLockHours
	if s.day.OrgasmRecorded {
		lockHours += scoring.ExtraLockHours(s.rng)
	}
	if lockHours > 0 {
		s.state.LockUntil = now.Add(time.Duration(lockHours) * time.Hour)
	}
	if res.Penalty {
		s.day.Punishment = scoring.RandomPunishment(s.rng)
	}

	s.day.Submitted = true
	s.day.Score = res.Score
	s.lastResult = res
	s.scored = true
	s.reportDue = false

	item := HistoryItem{
		Date:                s.day.Date,
		Score:               res.Score,
		Feedback:            res.Feedback,
		Multiplier:          s.day.Multiplier,
		MissedLoyaltyChecks: s.day.MissedLoyaltyChecks,
		Punishment:          s.day.Punishment,
	}

	// Memory stays authoritative on persistence failure; retrying the
	// submission (or the next Tick) re-runs whatever writes are still
	// outstanding, always with the cached result.
	s.pendingItem = item
	s.pendingDay = s.day
	s.needHistory, s.needDay, s.needState = true, true, true
	return res, s.flushSubmitLocked()
}

// flushSubmitLocked re-runs any submission write that has not reached the
// store yet. Each write clears its flag only once it succeeds.
func (s *Scheduler) flushSubmitLocked() error {
	if s.needHistory {
		if err := s.p.AppendHistory(s.pendingItem); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		s.needHistory = false
	}
	if s.needDay {
		if err := s.p.SaveDay(s.pendingDay); err != nil {
			return fmt.Errorf("save day: %w", err)
		}
		s.needDay = false
	}
	if s.needState {
		if err := s.p.SaveState(s.state); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		s.needState = false
	}
	return nil
}

// Status is a consistent snapshot for the UI and HTTP surfaces.
type Status struct {
	Day        DayRecord               `json:"day"`
	Check      LoyaltyCheck            `json:"check"`
	State      State                   `json:"state"`
	Escalation scoring.EscalationLevel `json:"escalation"`
	Degraded   bool                    `json:"degraded"`
	ReportDue  bool                    `json:"report_due"`
}

// Snapshot returns a deep copy of the scheduler's visible state.
func (s *Scheduler) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Day:        s.day.clone(),
		Check:      s.check,
		State:      s.state,
		Escalation: scoring.Escalation(s.currentScoreLocked(), s.day.MissedLoyaltyChecks),
		Degraded:   s.degraded,
		ReportDue:  s.reportDue,
	}
}

// Day returns a copy of the current record.
func (s *Scheduler) Day() DayRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day.clone()
}

// currentScoreLocked feeds escalation: the submitted score once scored,
// otherwise a provisional score of the day so far.
func (s *Scheduler) currentScoreLocked() int {
	if s.scored {
		return s.lastResult.Score
	}
	return scoring.Score(scoring.Input{
		Tasks:               s.day.Tasks,
		Multiplier:          s.day.Multiplier,
		PenaltyPoints:       s.day.PenaltyPoints,
		MissedLoyaltyChecks: s.day.MissedLoyaltyChecks,
		OrgasmRecorded:      s.day.OrgasmRecorded,
		OrgasmProofID:       s.day.OrgasmProofID,
	}).Score
}

func (s *Scheduler) saveDayLocked() {
	if err := s.p.SaveDay(s.day); err != nil {
		log.Errorf("save day %s: %v", s.day.Date, err)
	}
}

func (s *Scheduler) saveStateLocked() {
	if err := s.p.SaveState(s.state); err != nil {
		log.Errorf("save state: %v", err)
	}
}

func (s *Scheduler) emit(evs []notify.Event) {
	if s.notifier == nil {
		return
	}
	for _, ev := range evs {
		if err := s.notifier.Notify(ev); err != nil {
			log.Errorf("notify %s: %v", ev.Kind, err)
		}
	}
}
