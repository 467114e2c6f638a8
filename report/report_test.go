package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"vigil/enforce"
	"vigil/scoring"
)

func TestRenderOneRowPerDay(t *testing.T) {
	items := []enforce.HistoryItem{
		{Date: "2026-02-28", Score: 92, Feedback: scoring.TierHigh, Multiplier: 1},
		{Date: "2026-03-01", Score: 74, Feedback: scoring.TierMedium, Multiplier: 1},
		{Date: "2026-03-02", Score: 40, Feedback: scoring.TierLow, Multiplier: 2, Punishment: "extended wear session"},
	}
	var buf bytes.Buffer
	err := Render(&buf, items, enforce.State{Streak: 2}, time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	for _, it := range items {
		if !strings.Contains(out, "<td>"+it.Date+"</td>") {
			t.Fatalf("missing row for %s", it.Date)
		}
	}
	if strings.Count(out, "<tr>") != len(items)+1 { // header plus one per day
		t.Fatalf("row count = %d", strings.Count(out, "<tr>"))
	}
	if !strings.Contains(out, "streak 2 day(s)") {
		t.Fatal("streak missing from header")
	}
	if !strings.Contains(out, "extended wear session") {
		t.Fatal("punishment column missing")
	}
	if !strings.Contains(out, "Average score: 68.7") {
		t.Fatalf("average missing or wrong:\n%s", out)
	}
}

func TestRenderEscapesContent(t *testing.T) {
	items := []enforce.HistoryItem{
		{Date: "2026-03-02", Score: 10, Feedback: scoring.TierLow, Multiplier: 1, Punishment: "<script>x</script>"},
	}
	var buf bytes.Buffer
	if err := Render(&buf, items, enforce.State{}, time.Now()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Fatal("punishment text not escaped")
	}
}

func TestRenderEmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, nil, enforce.State{}, time.Now()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "<table>") {
		t.Fatal("empty report missing table shell")
	}
}
