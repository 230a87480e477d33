// Package dashboard renders a live terminal view of a running load test.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/flightload/internal/metrics"
)

// LiveSource exposes in-flight counters. *metrics.Aggregator implements it.
type LiveSource interface {
	Live() metrics.Live
}

// TestConfig holds load test configuration parameters for display.
type TestConfig struct {
	Mode        string        // booking or search
	TargetURL   string        // Base URL of the flight service
	Concurrency int           // Number of concurrent workers
	Duration    time.Duration // Test duration
	Pacing      time.Duration // Sleep between requests of one worker
	Rate        int           // Global requests per second cap (0 = unlimited)
	Timeout     time.Duration // Request timeout
	ConfigFile  string        // Path to config file if used
}

// Dashboard renders a live terminal UI for load test metrics.
type Dashboard struct {
	source       LiveSource
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	rpsGauge       *widgets.Gauge
	classList      *widgets.List
	codeList       *widgets.List
	summaryPara    *widgets.Paragraph
	latencyHistory []float64
	last           metrics.Live
	testConfig     TestConfig
}

// New creates a new Dashboard. shutdownFunc is called when the user presses
// q or Ctrl-C.
func New(source LiveSource, cfg TestConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		source:         source,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, 100),
		testConfig:     cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "P50 latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Real-time Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency"
	d.latencyPara.Text = "P50: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.rpsGauge = widgets.NewGauge()
	d.rpsGauge.Title = "Requests Per Second"
	d.rpsGauge.Percent = 0
	d.rpsGauge.BarColor = ui.ColorBlue
	d.rpsGauge.BorderStyle.Fg = ui.ColorCyan
	d.rpsGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.classList = widgets.NewList()
	d.classList.Title = "Outcomes"
	d.classList.Rows = []string{"Awaiting data"}
	d.classList.BorderStyle.Fg = ui.ColorCyan

	d.codeList = widgets.NewList()
	d.codeList.Title = "Response Codes"
	d.codeList.Rows = []string{"Awaiting data"}
	d.codeList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.codeList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Test Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.18,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.rpsGauge),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.36,
			ui.NewCol(0.5, d.classList),
			ui.NewCol(0.5, d.codeList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update(d.source.Live())
			d.render()
		}
	}
}

// update refreshes all widget data from live.
func (d *Dashboard) update(live metrics.Live) {
	d.mu.Lock()
	defer d.mu.Unlock()

	currentRPS := intervalRPS(d.last, live)
	d.last = live

	if live.Total > 0 {
		d.latencyHistory = append(d.latencyHistory, live.P50Ms)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf("Real-time Latency | P50: %.2fms | P99: %.2fms", live.P50Ms, live.P99Ms)
	}

	d.rpsGauge.Percent = gaugePercent(currentRPS)
	d.rpsGauge.Label = fmt.Sprintf("%.1f RPS", currentRPS)

	successRate := 0.0
	if live.Total > 0 {
		successRate = float64(live.Classes[metrics.Success]) / float64(live.Total) * 100
	}

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Total: %d | Success Rate: %.1f%%",
		d.testConfig.TargetURL,
		formatTestParams(d.testConfig),
		live.Elapsed.Round(time.Second),
		live.Total,
		successRate,
	)

	d.latencyPara.Text = fmt.Sprintf("P50:  %.2fms\nP99:  %.2fms", live.P50Ms, live.P99Ms)
	d.classList.Rows = formatClassRows(live)
	d.codeList.Rows = formatCodeRows(live.Codes, 10)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

// intervalRPS is the request rate between two live views.
func intervalRPS(prev, cur metrics.Live) float64 {
	dt := (cur.Elapsed - prev.Elapsed).Seconds()
	if dt <= 0 {
		return 0
	}
	return float64(cur.Total-prev.Total) / dt
}

// gaugePercent scales rps against a 100 RPS floor.
func gaugePercent(rps float64) int {
	maxRPS := 100.0
	if rps > maxRPS {
		maxRPS = rps
	}
	pct := int((rps / maxRPS) * 100)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

func formatClassRows(live metrics.Live) []string {
	rows := make([]string, 0, len(metrics.Classes()))
	for _, c := range metrics.Classes() {
		n := live.Classes[c]
		share := 0.0
		if live.Total > 0 {
			share = float64(n) / float64(live.Total) * 100
		}
		color := "red"
		if c == metrics.Success {
			color = "green"
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:%s) %d (%.1f%%)", c.Label(), color, n, share))
	}
	return rows
}

// formatCodeRows lists the most frequent response codes first.
func formatCodeRows(codes map[string]int64, limit int) []string {
	if len(codes) == 0 {
		return []string{"[No responses yet](fg:green)"}
	}
	keys := make([]string, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if codes[keys[i]] != codes[keys[j]] {
			return codes[keys[i]] > codes[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	rows := make([]string, 0, len(keys))
	for _, k := range keys {
		color := "red"
		if code, err := strconv.Atoi(k); err == nil && code >= 200 && code < 300 {
			color = "green"
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:%s) %d", k, color, codes[k]))
	}
	return rows
}

// formatTestParams formats the test configuration parameters for display.
func formatTestParams(cfg TestConfig) string {
	var parts []string

	if cfg.Mode != "" {
		parts = append(parts, fmt.Sprintf("Mode: %s", cfg.Mode))
	}

	if cfg.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", cfg.Concurrency))
	}

	if cfg.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", cfg.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	if cfg.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", cfg.Duration))
	}

	if cfg.Pacing > 0 {
		parts = append(parts, fmt.Sprintf("Pacing: %s", cfg.Pacing))
	}

	if cfg.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", cfg.Timeout))
	}

	// Config file (only show if used)
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
