// Package chart renders rate history as PNG line charts and cleans up old renders.
package chart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"ratebot/internal/metrics"
)

const (
	width  = 8 * vg.Inch
	height = 4 * vg.Inch
	ext    = ".png"
)

// Point is one (date, rate) sample, oldest first in a series.
type Point struct {
	Date string
	Rate float64
}

// Renderer writes charts into a directory using a fixed filename prefix.
type Renderer struct {
	dir    string
	prefix string
	log    *zap.SugaredLogger
	now    func() time.Time
	remove func(string) error
}

// NewRenderer creates a new Renderer.
func NewRenderer(dir, prefix string, logger *zap.SugaredLogger) *Renderer {
	if prefix == "" {
		prefix = "chart_"
	}
	return &Renderer{dir: dir, prefix: prefix, log: logger, now: time.Now, remove: os.Remove}
}

// Dir returns the output directory.
func (r *Renderer) Dir() string { return r.dir }

// Prefix returns the filename prefix of rendered charts.
func (r *Renderer) Prefix() string { return r.prefix }

// Render draws history and returns the written file path. subjectID is folded
// into the filename when non-zero. Any failure is logged and reported as ok=false.
func (r *Renderer) Render(history []Point, currency string, subjectID int64) (string, bool) {
	path, err := r.render(history, currency, subjectID)
	if err != nil {
		metrics.ChartRendersTotal.WithLabelValues(metrics.OutcomeError).Inc()
		r.log.Errorw("Chart render failed", "currency", currency, "points", len(history), "error", err)
		return "", false
	}
	metrics.ChartRendersTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	return path, true
}

func (r *Renderer) render(history []Point, currency string, subjectID int64) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("empty history")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s rate, last %d days", currency, len(history))
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Rate, UAH"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(history))
	ticks := make([]plot.Tick, len(history))
	for i, h := range history {
		pts[i].X = float64(i)
		pts[i].Y = h.Rate
		ticks[i] = plot.Tick{Value: float64(i), Label: h.Date}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return "", fmt.Errorf("build series: %w", err)
	}
	points.Shape = draw.CircleGlyph{}
	points.Radius = vg.Points(3)
	p.Add(line, points)

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	path := filepath.Join(r.dir, r.filename(currency, subjectID))
	if err := p.Save(width, height, path); err != nil {
		return "", fmt.Errorf("save chart: %w", err)
	}
	return path, nil
}

// filename is unique per render: prefix, currency, optional subject, then nanoseconds.
func (r *Renderer) filename(currency string, subjectID int64) string {
	ts := r.now().UnixNano()
	if subjectID != 0 {
		return fmt.Sprintf("%s%s_%d_%d%s", r.prefix, currency, subjectID, ts, ext)
	}
	return fmt.Sprintf("%s%s_%d%s", r.prefix, currency, ts, ext)
}

// SweepStale removes files in dir named prefix*.png whose mtime is older than maxAge.
// A failure on one file is logged and the sweep continues. It returns the number removed.
func (r *Renderer) SweepStale(dir, prefix string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Errorw("Chart sweep failed to list directory", "dir", dir, "error", err)
		}
		return 0
	}

	now := r.now()
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			r.log.Warnw("Chart sweep failed to stat file", "file", name, "error", err)
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := r.remove(filepath.Join(dir, name)); err != nil {
			r.log.Warnw("Chart sweep failed to remove file", "file", name, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.ChartsSweptTotal.Add(float64(removed))
		r.log.Infow("Removed stale charts", "dir", dir, "count", removed)
	}
	return removed
}
