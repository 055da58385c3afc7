package charts

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/palette/moreland"
)

const (
	heatScheme  = "YlOrRd"
	heatClasses = 9
)

// heatPalette returns the ColorBrewer YlOrRd classes, lightest first.
func heatPalette() (palette.Palette, error) {
	p, err := brewer.GetPalette(brewer.TypeSequential, heatScheme, heatClasses)
	if err != nil {
		return nil, fmt.Errorf("palette %s: %w", heatScheme, err)
	}
	return p, nil
}

// heatColorMap interpolates p over [lo, hi] with the light end at lo.
// Luminance maps take controls dark to light, hence the reversal.
func heatColorMap(p palette.Palette, lo, hi float64) (palette.ColorMap, error) {
	colors := p.Colors()
	controls := make([]color.Color, len(colors))
	for i, c := range colors {
		controls[len(colors)-1-i] = c
	}
	cm, err := moreland.NewLuminance(controls)
	if err != nil {
		return nil, fmt.Errorf("color map %s: %w", heatScheme, err)
	}
	rev := palette.Reverse(cm)
	rev.SetMin(lo)
	rev.SetMax(hi)
	return rev, nil
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
