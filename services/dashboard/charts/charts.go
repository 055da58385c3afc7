// Package charts renders dashboard aggregates to PNG with gonum/plot.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/02loveslollipop/Shizuku-air-quality/services/analysis"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to plot")

const format = "png"

// MonthlyBar draws one group of bars per month with one bar per station.
func MonthlyBar(tr analysis.Trend) ([]byte, error) {
	if len(tr.Months) == 0 || len(tr.Series) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Average PM2.5 per month"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "PM2.5 (µg/m³)"
	p.Y.Min = 0

	barWidth := vg.Points(4)
	n := len(tr.Series)
	for i, s := range tr.Series {
		bars, err := plotter.NewBarChart(plotter.Values(s.Means), barWidth)
		if err != nil {
			return nil, fmt.Errorf("bars for %s: %w", s.Station, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = hexColor(s.Color)
		bars.Offset = barWidth * vg.Length(float64(i)-float64(n-1)/2)
		p.Add(bars)
		p.Legend.Add(s.Label, bars)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	p.NominalX(tr.Months...)
	p.X.Tick.Label.Rotation = math.Pi / 2.5
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	width := vg.Length(len(tr.Months)*n)*barWidth*1.3 + 2*vg.Inch
	if width < 12*vg.Inch {
		width = 12 * vg.Inch
	}
	return render(p, width, 6*vg.Inch)
}

// HourDayHeatmap draws mean PM2.5 by weekday (x) and hour (y, midnight on top).
func HourDayHeatmap(h analysis.Heatmap) ([]byte, error) {
	lo, hi, ok := h.Range()
	if !ok {
		return nil, ErrNoData
	}
	if hi == lo {
		hi = lo + 1
	}

	pal, err := heatPalette()
	if err != nil {
		return nil, err
	}
	cm, err := heatColorMap(pal, lo, hi)
	if err != nil {
		return nil, err
	}

	grid := hourDayGrid{cells: &h.Cells}
	hm := plotter.NewHeatMap(grid, pal)
	hm.Min, hm.Max = lo, hi
	hm.NaN = color.Gray{Y: 0xee}

	p := plot.New()
	p.Title.Text = "Average PM2.5 by hour and day"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Day"
	p.Y.Label.Text = "Hour"
	p.Add(hm)

	dayTicks := make([]plot.Tick, len(h.Days))
	for i, d := range h.Days {
		dayTicks[i] = plot.Tick{Value: float64(i), Label: d}
	}
	p.X.Tick.Marker = plot.ConstantTicks(dayTicks)

	hourTicks := make([]plot.Tick, 24)
	for r := 0; r < 24; r++ {
		hourTicks[r] = plot.Tick{Value: float64(r), Label: strconv.Itoa(23 - r)}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(hourTicks)

	bar := plot.New()
	bar.HideY()
	bar.X.Padding = 0
	bar.X.Label.Text = "PM2.5 (µg/m³)"
	bar.Add(&plotter.ColorBar{ColorMap: cm})

	return renderWithStrip(p, bar, 8*vg.Inch, 10*vg.Inch, vg.Inch)
}

// TempScatter draws semi-transparent temperature / PM2.5 points.
func TempScatter(points []analysis.Point) ([]byte, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = pt.Temp
		xys[i].Y = pt.PM25
	}

	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Radius = vg.Points(2)
	sc.GlyphStyle.Color = color.NRGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0x80}

	p := plot.New()
	p.Title.Text = "Temperature vs PM2.5"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Temperature (°C)"
	p.Y.Label.Text = "PM2.5 (µg/m³)"
	p.Add(plotter.NewGrid())
	p.Add(sc)

	return render(p, 10*vg.Inch, 6*vg.Inch)
}

func render(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	wt, err := p.WriterTo(w, h, format)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// renderWithStrip draws p above a strip of height stripH holding strip.
func renderWithStrip(p, strip *plot.Plot, w, h, stripH vg.Length) ([]byte, error) {
	img := vgimg.New(w, h)
	dc := draw.New(img)
	p.Draw(draw.Crop(dc, 0, 0, stripH, 0))
	strip.Draw(draw.Crop(dc, 0, 0, 0, stripH-h))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// hourDayGrid adapts the heatmap matrix to plotter.GridXYZ. Row 0 of the grid
// is hour 23 so that midnight ends up on top.
type hourDayGrid struct {
	cells *[24][7]float64
}

func (g hourDayGrid) Dims() (c, r int)   { return 7, 24 }
func (g hourDayGrid) Z(c, r int) float64 { return g.cells[23-r][c] }
func (g hourDayGrid) X(c int) float64    { return float64(c) }
func (g hourDayGrid) Y(r int) float64    { return float64(r) }

// hexColor parses "#RRGGBB". Anything else is drawn black.
func hexColor(s string) color.Color {
	if len(s) != 7 || s[0] != '#' {
		return color.Black
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.Black
	}
	return rgb(uint8(v>>16), uint8(v>>8), uint8(v))
}
