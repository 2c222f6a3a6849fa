// Package chart renders sensor readings as PNG line charts
package chart

import (
	"fmt"
	"image/color"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// TickFormat is used for the time axis labels
const TickFormat = "2006-01-02 15:04"

// Background matches the page the charts are embedded in
var Background = color.RGBA{R: 0xC2, G: 0xCE, B: 0xFF, A: 0xFF}

// Point is one sample of a series
type Point struct {
	Time  time.Time
	Value float64
}

// Series is what gets drawn: points in chronological order within a window
type Series struct {
	Title  string
	YLabel string
	From   time.Time
	To     time.Time
	Points []Point
}

// Renderer draws series with a fixed image size
type Renderer struct {
	Width  vg.Length
	Height vg.Length
}

// NewRenderer returns a renderer producing 8x6 inch images
func NewRenderer() *Renderer {
	return &Renderer{Width: 8 * vg.Inch, Height: 6 * vg.Inch}
}

// build lays out the plot. An empty series yields an empty chart over the window.
func (r *Renderer) build(s Series) (*plot.Plot, error) {
	p := plot.New()
	p.BackgroundColor = Background
	p.Title.Text = s.Title
	p.X.Label.Text = "Time"
	p.Y.Label.Text = s.YLabel

	p.X.Tick.Marker = plot.TimeTicks{Format: TickFormat, Time: plot.UnixTimeIn(time.Local)}
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.Add(plotter.NewGrid())

	if len(s.Points) == 0 {
		p.Title.Text += " (no data)"
	} else {
		xys := make(plotter.XYs, len(s.Points))
		for i, pt := range s.Points {
			xys[i].X = float64(pt.Time.Unix())
			xys[i].Y = pt.Value
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to create line: %v", err)
		}
		line.Color = color.RGBA{B: 0xB4, A: 0xFF}
		p.Add(line)
	}

	if !s.From.IsZero() && !s.To.IsZero() {
		p.X.Min = float64(s.From.Unix())
		p.X.Max = float64(s.To.Unix())
	}
	// Lower bound is pinned at zero; the upper bound follows the data
	p.Y.Min = 0
	if len(s.Points) == 0 || p.Y.Max <= p.Y.Min {
		p.Y.Max = p.Y.Min + 1
	}
	return p, nil
}

// WriteTo renders the series as PNG into w
func (r *Renderer) WriteTo(w io.Writer, s Series) error {
	p, err := r.build(s)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to render chart: %v", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write chart: %v", err)
	}
	return nil
}

// Save renders the series as PNG to path, creating the parent directory
func (r *Renderer) Save(path string, s Series) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", path, err)
	}
	if err := r.WriteTo(f, s); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %v", path, err)
	}
	log.Printf("Saved chart with %d points to %s", len(s.Points), path)
	return nil
}
