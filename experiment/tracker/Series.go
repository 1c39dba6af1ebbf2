package tracker

import (
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Series collects labelled curves, such as the wealth of a portfolio
// and a benchmark index on each trading day, and plots them together.
// A Series is safe for concurrent use.
type Series struct {
	mu     sync.Mutex
	title  string
	xLabel string
	yLabel string
	labels []string
	curves [][]float64
}

// NewSeries returns a new, empty Series
func NewSeries(title, xLabel, yLabel string) *Series {
	return &Series{title: title, xLabel: xLabel, yLabel: yLabel}
}

// Record adds a copy of a curve to the Series. Recording a label twice
// replaces the earlier curve.
func (s *Series) Record(values []float64, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values = append([]float64(nil), values...)
	for i, l := range s.labels {
		if l == label {
			s.curves[i] = values
			return
		}
	}
	s.labels = append(s.labels, label)
	s.curves = append(s.curves, values)
}

// Curve returns a copy of the curve with the argument label
func (s *Series) Curve(label string) ([]float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range s.labels {
		if l == label {
			return append([]float64(nil), s.curves[i]...), true
		}
	}
	return nil, false
}

// Labels returns the labels of all recorded curves in recording order
func (s *Series) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.labels...)
}

// SavePlot plots every curve against its index and saves the plot to
// path. The image format is determined by the extension of path.
func (s *Series) SavePlot(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.curves) == 0 {
		return errors.New("savePlot: no curves recorded")
	}

	p := plot.New()
	p.Title.Text = s.title
	p.X.Label.Text = s.xLabel
	p.Y.Label.Text = s.yLabel

	for i, curve := range s.curves {
		points := make(plotter.XYs, len(curve))
		for j, v := range curve {
			points[j] = plotter.XY{X: float64(j), Y: v}
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return errors.Wrapf(err, "savePlot: curve %q", s.labels[i])
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.labels[i], line)
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrap(err, "savePlot")
	}
	return nil
}
