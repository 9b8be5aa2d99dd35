package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/TFMV/recon/pkg/core"
	"github.com/TFMV/recon/pkg/reconcile"
)

// HTMLReportGenerator generates HTML reports.
type HTMLReportGenerator struct {
	Options Options
}

// HTML template for the report.
const htmlTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Recon Comparison Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f4f4f4; }
        .status-pass { color: green; }
        .status-fail { color: red; }
        .status-warn { color: #b58900; }
        tr.matched { background-color: #e2efda; }
        tr.mismatched { background-color: #ffe6e6; }
        tr.missing, tr.extra { background-color: #ffff99; }
    </style>
</head>
<body>
    <h1>Comparison Report: {{.Meta.Comparison}}</h1>
    <p><strong>Run ID:</strong> {{.Meta.RunID}}</p>
    <p><strong>Source:</strong> {{.Meta.Source}}</p>
    <p><strong>Target:</strong> {{.Meta.Target}}</p>
    <p><strong>Primary Keys:</strong> {{join .Meta.PrimaryKeys}}</p>
    <p><strong>Started:</strong> {{.Meta.StartedAt}}</p>
    <p><strong>Status:</strong> {{if .Passed}}<span class="status-pass">PASSED</span>{{else}}<span class="status-fail">FAILED</span>{{end}}</p>
    {{if .Reason}}<p class="status-fail">{{.Reason}}</p>{{end}}

    <h2>Summary</h2>
    <table>
        <tr><th>Metric</th><th>Value</th></tr>
        <tr><td>Total Source Records</td><td>{{.Counts.SourceRecords}}</td></tr>
        <tr><td>Total Target Records</td><td>{{.Counts.TargetRecords}}</td></tr>
        <tr class="matched"><td>Matched Records</td><td>{{.Counts.Matched}}</td></tr>
        <tr class="mismatched"><td>Mismatched Records</td><td>{{.Counts.Mismatched}}</td></tr>
        <tr class="missing"><td>Missing in Target</td><td>{{.Counts.Missing}}</td></tr>
        <tr class="extra"><td>Extra in Target</td><td>{{.Counts.Extra}}</td></tr>
        <tr><td>Match Percentage</td><td>{{pct .Metrics.MatchPercentage}}</td></tr>
        <tr><td>Mismatch Percentage</td><td>{{pct .Metrics.MismatchPercentage}}</td></tr>
        <tr><td>Record Count Difference</td><td>{{pct .Metrics.RecordDiffPercentage}}</td></tr>
        <tr><td>Missing Percentage</td><td>{{pct .Metrics.MissingPercentage}}</td></tr>
    </table>

    <h2>Threshold Violations</h2>
    <ul>
        {{range .Violations}}<li class="status-fail">{{.String}}</li>{{else}}<li class="status-pass">None</li>{{end}}
    </ul>

    <h2>Mismatched Values</h2>
    {{if .Truncated}}<p class="status-warn">Showing {{len .Details}} of {{.TotalDetails}} mismatches.</p>{{end}}
    <table>
        <tr>
            <th>Key</th>
            <th>Column</th>
            <th>Source Value</th>
            <th>Target Value</th>
            <th>Kind</th>
        </tr>
        {{range .Details}}
        <tr class="mismatched">
            <td>{{.Key.String}}</td>
            <td>{{.Column}}</td>
            <td>{{value .SourceValue}}</td>
            <td>{{value .TargetValue}}</td>
            <td>{{.Kind}}</td>
        </tr>
        {{end}}
    </table>

    <h2>Missing in Target</h2>
    <ul>
        {{range .Missing}}<li class="status-warn">{{.String}}</li>{{else}}<li>None</li>{{end}}
    </ul>

    <h2>Extra in Target</h2>
    <ul>
        {{range .Extra}}<li class="status-warn">{{.String}}</li>{{else}}<li>None</li>{{end}}
    </ul>

    <footer>
        <p>Generated by recon {{.Meta.Version}} in {{.Meta.DurationMS}} ms</p>
    </footer>
</body>
</html>
`

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct":   func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	"value": core.FormatValue,
	"join":  func(s []string) string { return strings.Join(s, ", ") },
}).Parse(htmlTemplate))

type htmlView struct {
	Meta         Metadata
	Passed       bool
	Reason       string
	Counts       reconcile.Counts
	Metrics      reconcile.Metrics
	Violations   []reconcile.Violation
	Details      []reconcile.MismatchDetail
	TotalDetails int
	Truncated    bool
	Missing      []reconcile.Key
	Extra        []reconcile.Key
}

// GenerateReport renders the run as an HTML page.
func (h *HTMLReportGenerator) GenerateReport(run Run) ([]byte, error) {
	res := run.Result
	details := res.MismatchDetails()
	missing := res.MissingKeys()
	extra := res.ExtraKeys()

	view := htmlView{
		Meta:         run.Metadata(),
		Passed:       res.Passed(),
		Reason:       res.Reason(),
		Counts:       res.Counts(),
		Metrics:      res.Metrics(),
		Violations:   res.Violations(),
		Details:      details[:h.Options.limit(len(details))],
		TotalDetails: len(details),
		Missing:      missing[:h.Options.limit(len(missing))],
		Extra:        extra[:h.Options.limit(len(extra))],
	}
	view.Truncated = len(view.Details) < len(details)

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *HTMLReportGenerator) Extension() string { return "html" }
