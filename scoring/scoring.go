// Package scoring maps a day's recorded progress to a final score and the
// punishments derived from it. Everything here is a pure function of its
// inputs; the only randomized element (the extra lock duration) takes an
// explicit random source so callers can pin it in tests.
package scoring

import "math/rand"

// TaskID identifies one of the fixed daily task categories.
type TaskID string

const (
	TaskMorningRitual TaskID = "morning_ritual"
	TaskWearTime      TaskID = "wear_time"
	TaskAudioSession  TaskID = "audio_session"
	TaskAffirmations  TaskID = "affirmations"
	TaskEveningRitual TaskID = "evening_ritual"
)

// AllTasks lists every category in scoring order.
var AllTasks = []TaskID{
	TaskMorningRitual, TaskWearTime, TaskAudioSession,
	TaskAffirmations, TaskEveningRitual,
}

// Base targets before the daily multiplier is applied. Wear and audio are
// in seconds, the rest are counts.
const (
	BaseWearTarget     = 36000
	BaseAudioTarget    = 1800
	BaseAffirmTarget   = 50
	BaseEveningTarget  = 100
	affirmBonusStep    = 10
	affirmBonusCap     = 10
	missedCheckPenalty = 20
)

// Task is one category's recorded progress.
type Task struct {
	Value   float64 // seconds or count, category dependent
	ProofID string  // corroborating proof reference, where required
}

// Input is the submission-time snapshot the engine scores.
type Input struct {
	Tasks               map[TaskID]Task
	Multiplier          float64
	PenaltyPoints       int
	MissedLoyaltyChecks int
	OrgasmRecorded      bool
	OrgasmProofID       string
}

// Tier bands the final score.
type Tier string

const (
	TierHigh   Tier = "high"   // >= 90
	TierMedium Tier = "medium" // >= 70
	TierLow    Tier = "low"
)

// Result is the scored outcome of a submitted day.
type Result struct {
	Score             int
	Feedback          Tier
	Penalty           bool
	OrgasmLockHours   int
	NextDayMultiplier float64
}

// Target returns a category's effective target under the given multiplier.
func Target(id TaskID, multiplier float64) float64 {
	if multiplier < 1 {
		multiplier = 1
	}
	switch id {
	case TaskMorningRitual:
		return 1
	case TaskWearTime:
		return BaseWearTarget * multiplier
	case TaskAudioSession:
		return BaseAudioTarget * multiplier
	case TaskAffirmations:
		return BaseAffirmTarget * multiplier
	case TaskEveningRitual:
		return BaseEveningTarget * multiplier
	}
	return 0
}

// Score evaluates one day. Category weights: morning 25, wear 20 (half
// target earns 10), audio 10, affirmations 20 plus a capped overshoot
// bonus, evening 25. Claiming the evening category while an orgasm was
// recorded without proof costs 25 instead. Each missed loyalty check
// subtracts 20, then accumulated penalty points come off, and the result
// is clamped to [0,100].
func Score(in Input) Result {
	mult := in.Multiplier
	if mult < 1 {
		mult = 1
	}

	score := 0

	if t := in.Tasks[TaskMorningRitual]; t.Value >= 1 && t.ProofID != "" {
		score += 25
	}

	if t := in.Tasks[TaskWearTime]; t.Value >= Target(TaskWearTime, mult) {
		score += 20
	} else if t.Value >= Target(TaskWearTime, mult)/2 {
		score += 10
	}

	if t := in.Tasks[TaskAudioSession]; t.Value >= Target(TaskAudioSession, mult) {
		score += 10
	}

	if t := in.Tasks[TaskAffirmations]; t.Value >= Target(TaskAffirmations, mult) {
		score += 20
		bonus := int(t.Value-Target(TaskAffirmations, mult)) / affirmBonusStep
		if bonus > affirmBonusCap {
			bonus = affirmBonusCap
		}
		score += bonus
	}

	if t := in.Tasks[TaskEveningRitual]; t.Value >= Target(TaskEveningRitual, mult) {
		if in.OrgasmRecorded && in.OrgasmProofID == "" {
			score -= 25 // claimed completion without the required proof
		} else {
			score += 25
		}
	}

	score -= missedCheckPenalty * in.MissedLoyaltyChecks
	score -= in.PenaltyPoints

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	res := Result{Score: score}
	switch {
	case score >= 90:
		res.Feedback = TierHigh
		res.OrgasmLockHours = 0
		res.NextDayMultiplier = 1
	case score >= 70:
		res.Feedback = TierMedium
		res.OrgasmLockHours = 24
		res.NextDayMultiplier = 1.2
	default:
		res.Feedback = TierLow
		res.Penalty = true
		res.OrgasmLockHours = 48
		res.NextDayMultiplier = 1.5
	}

	if score < 50 {
		res.Penalty = true
	}

	// Ignored checks override any softer multiplier decision.
	if in.MissedLoyaltyChecks >= 2 {
		res.NextDayMultiplier = 2.0
		res.Penalty = true
	}

	return res
}

// ExtraLockHours draws the additional randomized lock applied when an
// orgasm was recorded on the submitted day: uniform in [24,72].
func ExtraLockHours(rng *rand.Rand) int {
	return 24 + rng.Intn(49)
}

// Punishments assignable on a low-tier outcome.
var punishments = []string{
	"double all targets tomorrow",
	"extended wear session",
	"additional affirmation block",
	"written review due before midnight",
}

// RandomPunishment picks an assigned punishment for a failing day.
func RandomPunishment(rng *rand.Rand) string {
	return punishments[rng.Intn(len(punishments))]
}
