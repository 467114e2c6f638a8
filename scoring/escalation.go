package scoring

// EscalationLevel orders overlay severity. It is always derived from the
// current score and miss count, never stored, so it cannot drift from the
// state it reflects.
type EscalationLevel int

const (
	EscalationNone EscalationLevel = iota
	EscalationNotice
	EscalationWarning
	EscalationSevere
	EscalationCritical
)

// Escalation maps a score and missed-check count to a level. Score
// breakpoints carry the base level; two or more ignored checks raise it
// one further step.
func Escalation(score, missedChecks int) EscalationLevel {
	var level EscalationLevel
	switch {
	case score < 10:
		level = EscalationCritical
	case score < 30:
		level = EscalationSevere
	case score < 50:
		level = EscalationWarning
	case score < 70:
		level = EscalationNotice
	}
	if missedChecks >= 2 && level < EscalationCritical {
		level++
	}
	return level
}
