package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// WritePlot renders a grouped bar chart of per-operation latency, one bar
// group per workload, one color per structure.
func WritePlot(results []BenchResult, path string) error {
	ops := []string{"Footprint_SteadyState", "Workload_OLTP", "Workload_OLAP", "Workload_Range"}
	labels := []string{"Load", "OLTP", "OLAP", "Range"}

	// structure name -> latency per op, in ops order
	byStructure := map[string]plotter.Values{}
	var order []string
	for _, res := range results {
		if _, ok := byStructure[res.Name]; !ok {
			byStructure[res.Name] = make(plotter.Values, len(ops))
			order = append(order, res.Name)
		}
		for i, op := range ops {
			if res.Operation == op {
				byStructure[res.Name][i] = float64(res.LatencyNs)
			}
		}
	}

	p := plot.New()
	p.Title.Text = "Latency by workload"
	p.Y.Label.Text = "ns/op"
	p.Legend.Top = true

	width := vg.Points(20)
	offset := -width * vg.Length(len(order)-1) / 2
	for i, name := range order {
		bars, err := plotter.NewBarChart(byStructure[name], width)
		if err != nil {
			return fmt.Errorf("plot: %w", err)
		}
		bars.LineStyle.Width = 0
		bars.Color = plotutil.Color(i)
		bars.Offset = offset + width*vg.Length(i)
		p.Add(bars)
		p.Legend.Add(name, bars)
	}

	p.NominalX(labels...)
	if err := p.Save(7*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	return nil
}
