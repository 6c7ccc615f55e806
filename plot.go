/*
Copyright © 2024 the nemodriver authors.
This file is part of nemodriver.

nemodriver is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

nemodriver is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with nemodriver.  If not, see <http://www.gnu.org/licenses/>.
*/

package nemodriver

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// transectGrid presents one time record of a transect as a grid of
// point index by depth, with depth increasing downwards.
type transectGrid struct {
	t      *Transect
	record int
}

func (g transectGrid) Dims() (c, r int) { return g.t.Values.Shape[2], g.t.Values.Shape[1] }

func (g transectGrid) nz() int { return g.t.Values.Shape[1] }

func (g transectGrid) Z(c, r int) float64 { return g.t.Values.Get(g.record, g.nz()-1-r, c) }

func (g transectGrid) X(c int) float64 { return float64(c) }

func (g transectGrid) Y(r int) float64 { return -g.t.Depth0[g.nz()-1-r] }

// Plot saves a heat map of time record record of the transect to file.
// The image format follows the file extension.
func (t *Transect) Plot(file string, record int) error {
	if nt := t.Values.Shape[0]; record < 0 || record >= nt {
		return fmt.Errorf("nemodriver: plotting transect: record %d out of range [0, %d)", record, nt)
	}
	g := transectGrid{t: t, record: record}
	h := plotter.NewHeatMap(g, palette.Heat(12, 1))
	if h.Min > h.Max || math.IsInf(h.Min, 0) {
		return fmt.Errorf("nemodriver: plotting transect: record %d has no valid values", record)
	}
	h.NaN = color.Transparent

	p := plot.New()
	p.Title.Text = t.Variable
	p.X.Label.Text = "transect point"
	p.Y.Label.Text = "depth"
	if t.DepthUnits != "" {
		p.Y.Label.Text += " (" + t.DepthUnits + ")"
	}
	p.Add(h)
	if err := p.Save(8*vg.Inch, 4*vg.Inch, file); err != nil {
		return fmt.Errorf("nemodriver: plotting transect: %w", err)
	}
	return nil
}
