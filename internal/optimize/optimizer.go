package optimize

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/domain"
	"github.com/hamed0406/netmanager/internal/probe"
)

const CompleteStep = "✅ Optimization complete."

// Assessor is satisfied by *netquality.Assessor.
type Assessor interface {
	Assess(ctx context.Context) (domain.MeasurementResult, error)
}

// Diagnostics is satisfied by *probe.MultiChecker.
type Diagnostics interface {
	Run(ctx context.Context) []probe.CheckResult
}

type Report struct {
	Efficiency      int                      `json:"efficiency"`
	Stability       string                   `json:"stability"`
	Signal          string                   `json:"signal"`
	Status          domain.Tier              `json:"status"`
	Suggestions     []string                 `json:"suggestions"`
	OptimizationLog []string                 `json:"optimization_log"`
	Diagnostics     []probe.CheckResult      `json:"diagnostics"`
	Measurement     domain.MeasurementResult `json:"measurement"`
	Timestamp       time.Time                `json:"timestamp"`
}

type Optimizer struct {
	assessor Assessor
	diag     Diagnostics
	log      *zap.Logger
	now      func() time.Time
}

func New(a Assessor, d Diagnostics, log *zap.Logger) *Optimizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{assessor: a, diag: d, log: log, now: time.Now}
}

// Optimize runs connectivity diagnostics and one assessment, then derives the
// report from the measurement. Assessment errors are returned unchanged.
func (o *Optimizer) Optimize(ctx context.Context) (Report, error) {
	steps := []string{"⏳ Starting network optimization process..."}

	var diag []probe.CheckResult
	if o.diag != nil {
		steps = append(steps, "🔎 Running connectivity diagnostics...")
		diag = o.diag.Run(ctx)
		for _, d := range diag {
			mark := "✔"
			if !d.Success {
				mark = "✖"
			}
			steps = append(steps, fmt.Sprintf("%s %s %s: %s", mark, d.Name, d.Target, d.Message))
		}
	}

	steps = append(steps, "🚀 Running speed test...")
	m, err := o.assessor.Assess(ctx)
	if err != nil {
		return Report{}, err
	}
	steps = append(steps,
		fmt.Sprintf("📡 Ping %.2f ms, download %.2f Mbps, upload %.2f Mbps", m.PingMs, m.DownloadMbps, m.UploadMbps),
		"📊 Analyzing connection performance...",
		CompleteStep,
	)

	r := Report{
		Efficiency:      Efficiency(m),
		Stability:       Stability(m.PingMs),
		Signal:          Signal(m.DownloadMbps),
		Status:          m.Tier,
		Suggestions:     Suggestions(m, diag),
		OptimizationLog: steps,
		Diagnostics:     diag,
		Measurement:     m,
		Timestamp:       o.now(),
	}
	o.log.Info("network_optimized",
		zap.Int("efficiency", r.Efficiency),
		zap.String("stability", r.Stability),
		zap.String("signal", r.Signal),
		zap.String("tier", string(r.Status)),
	)
	return r, nil
}

// Efficiency scores a measurement 0..100: 40% download (saturating at
// 50 Mbps), 30% upload (20 Mbps), 30% latency (0 at 200 ms).
func Efficiency(m domain.MeasurementResult) int {
	dl := math.Min(m.DownloadMbps/50, 1)
	ul := math.Min(m.UploadMbps/20, 1)
	lat := math.Max(0, math.Min((200-m.PingMs)/200, 1))
	score := (0.4*math.Max(dl, 0) + 0.3*math.Max(ul, 0) + 0.3*lat) * 100
	return int(math.Round(score))
}

func Stability(pingMs float64) string {
	switch {
	case pingMs < 50:
		return "Stable"
	case pingMs <= 100:
		return "Fair"
	default:
		return "Unstable"
	}
}

func Signal(downloadMbps float64) string {
	switch {
	case downloadMbps > 20:
		return "Strong"
	case downloadMbps >= 5:
		return "Moderate"
	default:
		return "Weak"
	}
}

func Suggestions(m domain.MeasurementResult, diag []probe.CheckResult) []string {
	var out []string
	for _, d := range diag {
		if d.Success {
			continue
		}
		switch d.Name {
		case "DNS":
			out = append(out, "DNS lookups are failing; switch to a public resolver such as 1.1.1.1 or 8.8.8.8.")
		case "HTTP":
			out = append(out, "HTTP reachability check failed; verify proxy and firewall settings.")
		}
	}
	if m.PingMs > 100 {
		out = append(out, "High latency detected; prefer a wired connection or move closer to the router.")
	} else if m.PingMs >= 50 {
		out = append(out, "Latency is moderate; pause background downloads and streaming during calls.")
	}
	if m.DownloadMbps < 5 {
		out = append(out, "Download throughput is low; restart the router or contact your provider.")
	} else if m.DownloadMbps <= 20 {
		out = append(out, "Download throughput is average; switch to the 5 GHz band if available.")
	}
	if m.UploadMbps < 2 {
		out = append(out, "Upload throughput is low; limit cloud backups and uploads while working.")
	}
	if len(out) == 0 {
		out = append(out, "Your network is performing well; no changes needed.")
	}
	return out
}
