// Package trackplot renders exported tracks as static PNG projections and
// interactive 3D HTML charts.
package trackplot

import (
	"fmt"
	"image/color"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plane selects the axis pair a PNG projects tracks onto.
type Plane int

// Projection planes, named by the horizontal then vertical plot axis.
const (
	PlaneXY Plane = iota // x across, y up
	PlaneXZ              // x across, z up
	PlaneYZ              // y across, z up
)

func (p Plane) String() string {
	switch p {
	case PlaneXY:
		return "xy"
	case PlaneXZ:
		return "xz"
	case PlaneYZ:
		return "yz"
	}
	return fmt.Sprintf("Plane(%d)", int(p))
}

// ParsePlane accepts "xy", "xz" or "yz" in any case.
func ParsePlane(s string) (Plane, error) {
	switch strings.ToLower(s) {
	case "xy":
		return PlaneXY, nil
	case "xz":
		return PlaneXZ, nil
	case "yz":
		return PlaneYZ, nil
	}
	return 0, fmt.Errorf("unknown plane %q (want xy, xz or yz)", s)
}

func (p Plane) project(v r3.Vec) plotter.XY {
	switch p {
	case PlaneXZ:
		return plotter.XY{X: v.X, Y: v.Z}
	case PlaneYZ:
		return plotter.XY{X: v.Y, Y: v.Z}
	}
	return plotter.XY{X: v.X, Y: v.Y}
}

func (p Plane) axes() (string, string) {
	s := p.String()
	return strings.ToUpper(s[:1]), strings.ToUpper(s[1:])
}

// SavePNG draws one line per track projected onto plane and writes the
// image to path. The format follows the file extension.
func SavePNG(tracks [][]r3.Vec, plane Plane, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Tracks (%s projection, n=%d)", plane, len(tracks))
	p.X.Label.Text, p.Y.Label.Text = plane.axes()
	p.Add(plotter.NewGrid())

	colors := generateColors(len(tracks))
	for i, tr := range tracks {
		pts := make(plotter.XYs, len(tr))
		for j, v := range tr {
			pts[j] = plane.project(v)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// generateColors returns n distinct line colours spread around the hue wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	q := l * (1 + s)
	if l >= 0.5 {
		q = l + s - l*s
	}
	p := 2*l - q
	return channel(p, q, h+1.0/3.0), channel(p, q, h), channel(p, q, h-1.0/3.0)
}

func channel(p, q, t float64) uint8 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	var v float64
	switch {
	case t < 1.0/6.0:
		v = p + (q-p)*6*t
	case t < 1.0/2.0:
		v = q
	case t < 2.0/3.0:
		v = p + (q-p)*(2.0/3.0-t)*6
	default:
		v = p
	}
	return uint8(v * 255)
}
