// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stability

import (
	"errors"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Chart draws the sensitivity curve of sr, the number of stable and
// unstable tests at each threshold, and writes it to out as a PNG.
func Chart(out io.Writer, sr *SweepResult) error {
	if len(sr.Points) == 0 {
		return errors.New("chart: empty sweep")
	}

	stable := make(plotter.XYs, len(sr.Points))
	unstable := make(plotter.XYs, len(sr.Points))
	for i, p := range sr.Points {
		stable[i].X = 100 * p.Threshold
		stable[i].Y = float64(sr.Tests - len(p.Unstable))
		unstable[i].X = stable[i].X
		unstable[i].Y = float64(len(p.Unstable))
	}

	pl := plot.New()
	pl.Title.Text = "tests unstable across runs"
	pl.X.Label.Text = "threshold (%)"
	pl.Y.Label.Text = "tests"
	pl.Y.Min = 0
	pl.Legend.Top = true

	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	pl.Add(grid)

	ls, lp, err := plotter.NewLinePoints(stable)
	if err != nil {
		return err
	}
	ls.Color = color.NRGBA{0, 0x80, 0, 0xff}
	lp.Color = ls.Color
	lu, up, err := plotter.NewLinePoints(unstable)
	if err != nil {
		return err
	}
	lu.Color = color.NRGBA{0xff, 0, 0, 0xff}
	up.Color = lu.Color
	pl.Add(ls, lp, lu, up)
	pl.Legend.Add("stable", ls, lp)
	pl.Legend.Add("unstable", lu, up)

	can := vgimg.PngCanvas{Canvas: vgimg.NewWith(vgimg.UseWH(16*vg.Centimeter, 10*vg.Centimeter),
		vgimg.UseDPI(150), vgimg.UseBackgroundColor(color.White))}
	pl.Draw(draw.New(can))
	_, err = can.WriteTo(out)
	return err
}
