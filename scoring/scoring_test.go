package scoring

import (
	"math/rand"
	"testing"
)

// perfectDay returns an input with every category at its minimum target.
func perfectDay(mult float64) Input {
	return Input{
		Tasks: map[TaskID]Task{
			TaskMorningRitual: {Value: 1, ProofID: "p1"},
			TaskWearTime:      {Value: BaseWearTarget * mult},
			TaskAudioSession:  {Value: BaseAudioTarget * mult},
			TaskAffirmations:  {Value: BaseAffirmTarget * mult},
			TaskEveningRitual: {Value: BaseEveningTarget * mult},
		},
		Multiplier: mult,
	}
}

func TestPerfectDayScoresHundred(t *testing.T) {
	res := Score(perfectDay(1))
	if res.Score != 100 {
		t.Fatalf("score = %d, want 100", res.Score)
	}
	if res.Feedback != TierHigh {
		t.Fatalf("feedback = %q, want high", res.Feedback)
	}
	if res.OrgasmLockHours != 0 {
		t.Fatalf("lock hours = %d, want 0", res.OrgasmLockHours)
	}
	if res.NextDayMultiplier != 1 {
		t.Fatalf("next multiplier = %v, want 1", res.NextDayMultiplier)
	}
	if res.Penalty {
		t.Fatal("unexpected penalty on a perfect day")
	}
}

func TestOneMissedCheckCostsTwenty(t *testing.T) {
	in := perfectDay(1)
	in.MissedLoyaltyChecks = 1
	res := Score(in)
	if res.Score != 80 {
		t.Fatalf("score = %d, want 80", res.Score)
	}
	if res.Feedback != TierMedium {
		t.Fatalf("feedback = %q, want medium", res.Feedback)
	}
	if res.OrgasmLockHours != 24 {
		t.Fatalf("lock hours = %d, want 24", res.OrgasmLockHours)
	}
}

func TestTwoMissedChecksForceMaxMultiplier(t *testing.T) {
	in := perfectDay(1)
	in.MissedLoyaltyChecks = 2
	res := Score(in)
	if res.NextDayMultiplier != 2.0 {
		t.Fatalf("next multiplier = %v, want 2.0", res.NextDayMultiplier)
	}
	if !res.Penalty {
		t.Fatal("two missed checks should mark a penalty")
	}
}

func TestMultiplierScalesTargets(t *testing.T) {
	// Base-level effort under a x2 regime only earns partial credit.
	in := perfectDay(1)
	in.Multiplier = 2
	res := Score(in)
	// morning 25 + wear half-tier 10 + affirmations/audio/evening below
	// their doubled targets.
	if res.Score != 35 {
		t.Fatalf("score = %d, want 35", res.Score)
	}
	if res.Feedback != TierLow {
		t.Fatalf("feedback = %q, want low", res.Feedback)
	}
}

func TestLiarPenalty(t *testing.T) {
	in := perfectDay(1)
	in.OrgasmRecorded = true // claimed, no proof
	res := Score(in)
	if res.Score != 50 {
		t.Fatalf("score = %d, want 50 (75 earned, -25 liar penalty)", res.Score)
	}

	in.OrgasmProofID = "proof-7"
	res = Score(in)
	if res.Score != 100 {
		t.Fatalf("score with proof = %d, want 100", res.Score)
	}
}

func TestAffirmationBonusCapped(t *testing.T) {
	in := perfectDay(1)
	task := in.Tasks[TaskAffirmations]
	task.Value = BaseAffirmTarget + 500 // far past the cap
	in.Tasks[TaskAffirmations] = task
	res := Score(in)
	if res.Score != 100 {
		t.Fatalf("score = %d, want clamped 100", res.Score)
	}
}

func TestScoreClamped(t *testing.T) {
	res := Score(Input{
		Tasks:               map[TaskID]Task{},
		Multiplier:          1,
		PenaltyPoints:       500,
		MissedLoyaltyChecks: 9,
	})
	if res.Score != 0 {
		t.Fatalf("score = %d, want 0", res.Score)
	}

	res = Score(perfectDay(1)) // weights cannot exceed 100 anyway
	if res.Score > 100 {
		t.Fatalf("score = %d, above 100", res.Score)
	}
}

func TestPenaltyPointsSubtracted(t *testing.T) {
	in := perfectDay(1)
	in.PenaltyPoints = 10
	res := Score(in)
	if res.Score != 90 {
		t.Fatalf("score = %d, want 90", res.Score)
	}
}

func TestLowTierPunishesAndLocks(t *testing.T) {
	res := Score(Input{Tasks: map[TaskID]Task{}, Multiplier: 1})
	if res.Feedback != TierLow || !res.Penalty {
		t.Fatalf("empty day: feedback=%q penalty=%v", res.Feedback, res.Penalty)
	}
	if res.OrgasmLockHours != 48 {
		t.Fatalf("lock hours = %d, want 48", res.OrgasmLockHours)
	}
	if res.NextDayMultiplier != 1.5 {
		t.Fatalf("next multiplier = %v, want 1.5", res.NextDayMultiplier)
	}
}

func TestExtraLockRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		h := ExtraLockHours(rng)
		if h < 24 || h > 72 {
			t.Fatalf("extra lock %d outside [24,72]", h)
		}
	}
}

func TestExtraLockDeterministicWithSeed(t *testing.T) {
	a := ExtraLockHours(rand.New(rand.NewSource(42)))
	b := ExtraLockHours(rand.New(rand.NewSource(42)))
	if a != b {
		t.Fatalf("same seed gave %d and %d", a, b)
	}
}

func TestEscalationBreakpoints(t *testing.T) {
	cases := []struct {
		score, missed int
		want          EscalationLevel
	}{
		{100, 0, EscalationNone},
		{70, 0, EscalationNone},
		{69, 0, EscalationNotice},
		{49, 0, EscalationWarning},
		{29, 0, EscalationSevere},
		{9, 0, EscalationCritical},
		{69, 2, EscalationWarning}, // miss bump
		{5, 3, EscalationCritical}, // already at the ceiling
		{100, 2, EscalationNotice}, // bump applies from zero too
	}
	for _, c := range cases {
		if got := Escalation(c.score, c.missed); got != c.want {
			t.Fatalf("Escalation(%d,%d) = %d, want %d", c.score, c.missed, got, c.want)
		}
	}
}
