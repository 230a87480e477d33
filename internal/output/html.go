package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/torosent/flightload/internal/metrics"
	"github.com/torosent/flightload/internal/report"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Report           report.Report
	Categories       []CategoryRow
	Codes            []CodeRow
	History          []Sample
	HistoryJSON      string
	ThresholdSummary *ThresholdSummary
}

// CategoryRow is one outcome class in display order.
type CategoryRow struct {
	Label   string
	Count   int64
	Percent float64
	Error   bool
}

// CodeRow is one response code histogram entry.
type CodeRow struct {
	Code    string
	Count   int64
	Percent float64
}

// ThresholdSummary aggregates threshold checks for display.
type ThresholdSummary struct {
	Total  int
	Passed int
	Failed int
	Checks []report.Check
}

// GenerateHTMLReport generates a standalone HTML report with embedded charts.
func GenerateHTMLReport(w io.Writer, rep report.Report, history []Sample) error {
	var thresholdSummary *ThresholdSummary
	if len(rep.Thresholds) > 0 {
		thresholdSummary = &ThresholdSummary{
			Total:  len(rep.Thresholds),
			Checks: rep.Thresholds,
		}
		for _, c := range rep.Thresholds {
			if c.Passed {
				thresholdSummary.Passed++
			} else {
				thresholdSummary.Failed++
			}
		}
	}

	res := rep.Results
	categories := make([]CategoryRow, 0, len(metrics.Classes()))
	for _, c := range metrics.Classes() {
		cat := res.Categories.Get(c)
		categories = append(categories, CategoryRow{
			Label:   c.Label(),
			Count:   cat.Count,
			Percent: cat.Percent,
			Error:   c != metrics.Success,
		})
	}
	codes := make([]CodeRow, 0, len(res.ResponseCodes))
	for _, code := range sortedCodes(res.ResponseCodes) {
		n := res.ResponseCodes[code]
		codes = append(codes, CodeRow{Code: code, Count: n, Percent: report.Percent(n, res.TotalRequests)})
	}

	// Convert history to JSON for embedding in HTML
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Report:           rep,
		Categories:       categories,
		Codes:            codes,
		History:          history,
		HistoryJSON:      string(historyJSON),
		ThresholdSummary: thresholdSummary,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatMs": func(f float64) string {
			return fmt.Sprintf("%.1fms", f)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Flightload Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
            margin-top: 20px;
        }
        .latency-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 6px;
            text-align: center;
        }
        .latency-item .label {
            font-size: 0.85rem;
            color: #6c757d;
            margin-bottom: 5px;
        }
        .latency-item .value {
            font-size: 1.3rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>✈ Flightload Report ({{.Report.TestConfig.Mode}})</h1>
            {{if .Report.TestConfig.BaseURL}}
            <div class="meta" style="margin-top: 5px;">Target: <a href="{{.Report.TestConfig.BaseURL}}" style="color: white; text-decoration: underline;">{{.Report.TestConfig.BaseURL}}</a></div>
            {{end}}
            <div class="meta">Run: {{.Report.RunID}} | Generated: {{.GeneratedAt}} | Duration: {{formatFloat .Report.Results.ActualDuration}}s{{if .Report.Results.Interrupted}} | Interrupted{{end}}</div>
        </header>

        <div class="content">
            <!-- Summary Cards -->
            <div class="grid">
                <div class="card">
                    <h3>Total Requests</h3>
                    <div class="value">{{.Report.Results.TotalRequests}}</div>
                    <div class="subvalue">{{.Report.TestConfig.Concurrency}} workers</div>
                </div>
                <div class="card success">
                    <h3>2XX</h3>
                    <div class="value">{{.Report.Results.Categories.Success.Count}}</div>
                    <div class="subvalue">{{formatFloat .Report.Results.Categories.Success.Percent}}%</div>
                </div>
                <div class="card error">
                    <h3>Errors</h3>
                    <div class="value">{{.Report.Results.ErrorCount}}</div>
                    <div class="subvalue">timeouts and transport errors</div>
                </div>
                <div class="card">
                    <h3>Throughput</h3>
                    <div class="value">{{formatFloat .Report.Results.Throughput}}</div>
                    <div class="subvalue">requests/sec</div>
                </div>
            </div>

            <!-- Charts Section -->
            {{if .History}}
            <div class="section">
                <h2>Performance Over Time</h2>

                <div class="chart-container">
                    <h3>Requests Per Second</h3>
                    <div id="rps-chart" class="chart"></div>
                </div>

                <div class="chart-container">
                    <h3>Latency Percentiles (ms)</h3>
                    <div id="latency-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            <!-- Categories -->
            <div class="section">
                <h2>Response Summary</h2>
                <table>
                    <thead>
                        <tr><th>Category</th><th>Count</th><th>Share</th></tr>
                    </thead>
                    <tbody>
                        {{range .Categories}}
                        <tr>
                            <td>{{if .Error}}<span class="badge badge-error">{{.Label}}</span>{{else}}<span class="badge badge-success">{{.Label}}</span>{{end}}</td>
                            <td>{{.Count}}</td>
                            <td>{{formatFloat .Percent}}%</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>

            {{if .Codes}}
            <div class="section">
                <h2>Response Codes</h2>
                <table>
                    <thead>
                        <tr><th>Code</th><th>Count</th><th>Share</th></tr>
                    </thead>
                    <tbody>
                        {{range .Codes}}
                        <tr><td><strong>{{.Code}}</strong></td><td>{{.Count}}</td><td>{{formatFloat .Percent}}%</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Latency Statistics -->
            <div class="section">
                <h2>Latency Statistics</h2>
                {{with .Report.Results.LatencyStats}}
                <div class="latency-grid">
                    <div class="latency-item"><div class="label">Min</div><div class="value">{{formatMs .Min}}</div></div>
                    <div class="latency-item"><div class="label">Max</div><div class="value">{{formatMs .Max}}</div></div>
                    <div class="latency-item"><div class="label">Mean</div><div class="value">{{formatMs .Mean}}</div></div>
                    <div class="latency-item"><div class="label">Median</div><div class="value">{{formatMs .Median}}</div></div>
                    <div class="latency-item"><div class="label">P95</div><div class="value">{{formatMs .P95}}</div></div>
                    <div class="latency-item"><div class="label">P99</div><div class="value">{{formatMs .P99}}</div></div>
                </div>
                {{else}}
                <div class="no-data">No latency samples recorded</div>
                {{end}}
            </div>

            <!-- Thresholds -->
            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr><th>Threshold</th><th>Actual</th><th>Status</th></tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Checks}}
                        <tr>
                            <td>{{.Expression}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Passed}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Errors -->
            {{if .Report.Results.ErrorKinds}}
            <div class="section">
                <h2>Errors ({{.Report.Results.ErrorCount}})</h2>
                <table>
                    <thead>
                        <tr><th>Kind</th><th>Count</th></tr>
                    </thead>
                    <tbody>
                        {{range .Report.Results.ErrorKinds}}
                        <tr><td>{{.Kind}}</td><td>{{.Count}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .History}}
    <script>
        const historyJSON = {{.HistoryJSON}};
        const history = JSON.parse(historyJSON);

        if (history && history.length > 0) {
            const timestamps = history.map(d => d.elapsed_s);

            new uPlot({
                title: "Requests Per Second",
                width: document.getElementById('rps-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    { label: "RPS", stroke: "#667eea", fill: "rgba(102, 126, 234, 0.1)", width: 2 }
                ],
                axes: [
                    { label: "Time (seconds)" },
                    { label: "Requests/sec" }
                ]
            }, [timestamps, history.map(d => d.current_rps)], document.getElementById('rps-chart'));

            new uPlot({
                title: "Latency Percentiles",
                width: document.getElementById('latency-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    { label: "P50", stroke: "#10b981", width: 2 },
                    { label: "P99", stroke: "#ef4444", width: 2 }
                ],
                axes: [
                    { label: "Time (seconds)" },
                    { label: "Latency (ms)" }
                ]
            }, [timestamps, history.map(d => d.p50_latency_ms), history.map(d => d.p99_latency_ms)], document.getElementById('latency-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
