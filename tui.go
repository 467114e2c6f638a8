package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vigil/breath"
	"vigil/enforce"
	"vigil/notify"
	"vigil/scoring"
)

// TUI message types
type metricsMsg breath.Metrics
type eventMsg notify.Event
type submittedMsg struct {
	result scoring.Result
	err    error
}
type tickMsg time.Time

const eventLogSize = 6

type tuiModel struct {
	sched         *enforce.Scheduler
	metrics       breath.Metrics
	status        enforce.Status
	events        []notify.Event
	lastResult    *scoring.Result
	submitErr     error
	width, height int
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	alertStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	helpTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

func NewTUIProgram(sched *enforce.Scheduler) *tea.Program {
	m := tuiModel{sched: sched, status: sched.Snapshot()}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "s":
			sched := m.sched
			return m, func() tea.Msg {
				res, err := sched.SubmitDay(time.Now())
				return submittedMsg{result: res, err: err}
			}
		}

	case tickMsg:
		m.status = m.sched.Snapshot()
		return m, tuiTick()

	case metricsMsg:
		m.metrics = breath.Metrics(msg)

	case eventMsg:
		m.events = append(m.events, notify.Event(msg))
		if len(m.events) > eventLogSize {
			m.events = m.events[len(m.events)-eventLogSize:]
		}

	case submittedMsg:
		m.submitErr = msg.err
		if msg.err == nil {
			r := msg.result
			m.lastResult = &r
		}
		m.status = m.sched.Snapshot()
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	day := m.status.Day

	b.WriteString(titleStyle.Render("vigil "+version) + dimStyle.Render("  "+day.Date) + "\n\n")

	// Breathing line
	if m.status.Degraded {
		b.WriteString(alertStyle.Render("✕ MONITORING DOWN") + dimStyle.Render("  microphone unavailable") + "\n")
	} else if m.metrics.Breathing {
		b.WriteString(okStyle.Render("● BREATHING") + labelStyle.Render(fmt.Sprintf("  %d bpm", m.metrics.BPM)) + "\n")
	} else {
		b.WriteString(warnStyle.Render("○ SILENT") + "\n")
	}
	b.WriteString(renderVolumeBar(m.metrics.Volume) + "\n\n")

	// Day summary
	b.WriteString(labelStyle.Render(fmt.Sprintf("score %d    multiplier ×%.1f    penalties %d    missed checks %d",
		day.Score, day.Multiplier, day.PenaltyPoints, day.MissedLoyaltyChecks)) + "\n")
	b.WriteString(labelStyle.Render("escalation: ") + escalationStyle(m.status.Escalation).Render(escalationLabel(m.status.Escalation)) + "\n")

	if day.Submitted {
		line := okStyle.Render("day submitted")
		if m.lastResult != nil {
			line += dimStyle.Render(fmt.Sprintf("  %d (%s)", m.lastResult.Score, m.lastResult.Feedback))
		}
		b.WriteString(line + "\n")
	}
	if m.submitErr != nil {
		b.WriteString(alertStyle.Render(fmt.Sprintf("submit error: %v", m.submitErr)) + "\n")
	}
	if day.RemedialProofRequired {
		b.WriteString(warnStyle.Render("remedial proof required") + "\n")
	}
	if m.status.ReportDue {
		b.WriteString(warnStyle.Render("weekly report due") + "\n")
	}

	// Active loyalty check countdown
	if check := m.status.Check; check.Active {
		left := time.Until(check.Deadline)
		if left < 0 {
			left = 0
		}
		b.WriteString("\n" + alertStyle.Render(fmt.Sprintf("⚠ LOYALTY CHECK %s — %s left", check.ID, left.Round(time.Second))) + "\n")
	}

	// Recent events
	if len(m.events) > 0 {
		b.WriteString("\n" + dimStyle.Render("recent:") + "\n")
		for _, ev := range m.events {
			line := fmt.Sprintf("  %s  %s  %s", ev.Time.Format("15:04:05"), ev.Kind, ev.Message)
			b.WriteString(eventStyle(ev.Kind).Render(truncate(line, m.width-2)) + "\n")
		}
	}

	b.WriteString("\n" + helpKeyStyle.Render("s") + helpTextStyle.Render(" submit day  ") +
		helpKeyStyle.Render("q") + helpTextStyle.Render(" quit") + "\n")

	return b.String()
}

const volumeBarWidth = 30

func renderVolumeBar(volume float64) string {
	// Threshold amplitudes are tiny; scale so a normal breath fills most
	// of the bar.
	filled := int(volume * 10 * volumeBarWidth)
	if filled > volumeBarWidth {
		filled = volumeBarWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", volumeBarWidth-filled)
	return dimStyle.Render(bar)
}

func escalationLabel(l scoring.EscalationLevel) string {
	switch l {
	case scoring.EscalationNone:
		return "none"
	case scoring.EscalationNotice:
		return "notice"
	case scoring.EscalationWarning:
		return "warning"
	case scoring.EscalationSevere:
		return "severe"
	default:
		return "critical"
	}
}

func escalationStyle(l scoring.EscalationLevel) lipgloss.Style {
	switch {
	case l >= scoring.EscalationSevere:
		return alertStyle
	case l >= scoring.EscalationWarning:
		return warnStyle
	default:
		return okStyle
	}
}

func eventStyle(kind notify.Kind) lipgloss.Style {
	switch kind {
	case notify.KindPenalty, notify.KindLoyaltyFailed:
		return alertStyle
	case notify.KindWarning, notify.KindLoyaltyRequired, notify.KindMonitoringDegraded:
		return warnStyle
	default:
		return dimStyle
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
