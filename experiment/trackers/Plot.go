package trackers

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot tracks metrics in memory and saves a line plot of each metric
// against the environment step as a PNG file in a directory
type Plot struct {
	dir    string
	series map[string]plotter.XYs
}

// NewPlot returns a new Plot which saves its plots in dir
func NewPlot(dir string) *Plot {
	return &Plot{dir: dir, series: make(map[string]plotter.XYs)}
}

// Track caches a metric value
func (p *Plot) Track(name string, value float64, step int) {
	p.series[name] = append(p.series[name], plotter.XY{X: float64(step),
		Y: value})
}

// Save saves one plot per tracked metric. The file of a metric is
// named after the metric with '/' replaced by '_'.
func (p *Plot) Save() error {
	names := make([]string, 0, len(p.series))
	for name := range p.series {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := p.save(name); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

func (p *Plot) save(name string) error {
	pl := plot.New()
	pl.Title.Text = name
	pl.X.Label.Text = "Step"
	pl.Y.Label.Text = name

	line, err := plotter.NewLine(p.series[name])
	if err != nil {
		return fmt.Errorf("could not create line plotter for %v: %v", name,
			err)
	}
	pl.Add(line)

	return pl.Save(6*vg.Inch, 4*vg.Inch, p.Filename(name))
}

// Filename returns the file the plot of metric name is saved in
func (p *Plot) Filename(name string) string {
	return filepath.Join(p.dir, strings.ReplaceAll(name, "/", "_")+".png")
}
