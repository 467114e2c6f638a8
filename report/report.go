// Package report renders the scored history into a standalone HTML
// document, used for the mandatory Sunday export and ad-hoc review.
package report

import (
	"html/template"
	"io"
	"time"

	"vigil/enforce"
)

var tmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Compliance report</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 4px 10px; text-align: left; }
.low { color: #b00; }
.high { color: #070; }
</style>
</head>
<body>
<h1>Compliance report</h1>
<p>Generated {{.Generated}} &middot; streak {{.State.Streak}} day(s)</p>
<table>
<tr><th>Date</th><th>Score</th><th>Tier</th><th>Multiplier</th><th>Missed checks</th><th>Punishment</th></tr>
{{range .Items}}<tr>
<td>{{.Date}}</td>
<td>{{.Score}}</td>
<td class="{{.Feedback}}">{{.Feedback}}</td>
<td>x{{printf "%.1f" .Multiplier}}</td>
<td>{{.MissedLoyaltyChecks}}</td>
<td>{{.Punishment}}</td>
</tr>
{{end}}</table>
{{if .Average}}<p>Average score: {{printf "%.1f" .Average}}</p>{{end}}
</body>
</html>
`))

type data struct {
	Generated string
	State     enforce.State
	Items     []enforce.HistoryItem
	Average   float64
}

// Render writes the report for the given history to w. Items are shown in
// the order given; the store hands them over newest-first.
func Render(w io.Writer, items []enforce.HistoryItem, state enforce.State, generated time.Time) error {
	d := data{
		Generated: generated.Format("2006-01-02 15:04"),
		State:     state,
		Items:     items,
	}
	if len(items) > 0 {
		sum := 0
		for _, it := range items {
			sum += it.Score
		}
		d.Average = float64(sum) / float64(len(items))
	}
	return tmpl.Execute(w, d)
}
