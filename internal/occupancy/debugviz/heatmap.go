package debugviz

import (
	"bytes"
	"fmt"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const heatmapColors = 16

// distributionGrid adapts a person-by-room probability map to the plotter
// grid interface. Columns are rooms, rows are people, both sorted for stable
// output across frames.
type distributionGrid struct {
	rooms  []string
	people []string
	z      [][]float64 // [person][room]
}

func buildDistributionGrid(distributions map[string]map[string]float64) *distributionGrid {
	g := &distributionGrid{}

	roomSet := make(map[string]bool)
	for person, dist := range distributions {
		g.people = append(g.people, person)
		for room := range dist {
			roomSet[room] = true
		}
	}
	sort.Strings(g.people)
	for room := range roomSet {
		g.rooms = append(g.rooms, room)
	}
	sort.Strings(g.rooms)

	g.z = make([][]float64, len(g.people))
	for i, person := range g.people {
		g.z[i] = make([]float64, len(g.rooms))
		for j, room := range g.rooms {
			g.z[i][j] = distributions[person][room]
		}
	}
	return g
}

func (g *distributionGrid) Dims() (c, r int)   { return len(g.rooms), len(g.people) }
func (g *distributionGrid) Z(c, r int) float64 { return g.z[r][c] }
func (g *distributionGrid) X(c int) float64    { return float64(c) }
func (g *distributionGrid) Y(r int) float64    { return float64(r) }

// renderHeatmap draws the frame's person-by-room probabilities as a heatmap
// PNG. The palette range is pinned to [0,1] so color means the same thing in
// every frame.
func renderHeatmap(frame *StateFrame) ([]byte, error) {
	grid := buildDistributionGrid(frame.Distributions)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Room distributions - frame %d", frame.Frame)
	p.X.Label.Text = "Room"
	p.Y.Label.Text = "Person"

	hm := plotter.NewHeatMap(grid, palette.Heat(heatmapColors, 255))
	hm.Min = 0
	hm.Max = 1
	p.Add(hm)
	p.NominalX(grid.rooms...)
	p.NominalY(grid.people...)

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("heatmap writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("heatmap render: %w", err)
	}
	return buf.Bytes(), nil
}
