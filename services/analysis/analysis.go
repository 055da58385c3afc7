// Package analysis turns merged observations into the aggregates behind the
// dashboard charts.
package analysis

import (
	"math"
	"strings"
	"time"

	"github.com/02loveslollipop/Shizuku-air-quality/services/dataset"
)

// Palette holds the bar colours, assigned to stations by index modulo its length.
var Palette = []string{
	"#E6194B", "#3CB44B", "#0082C8", "#FFE119", "#911EB4", "#F58231",
	"#46F0F0", "#F032E6", "#BFEF45", "#800000", "#A9A9A9", "#000000",
}

// PaletteColor returns the hex colour for the station at position idx.
func PaletteColor(idx int) string {
	if idx < 0 {
		idx = -idx
	}
	return Palette[idx%len(Palette)]
}

// StationLabel shortens ids such as "PRSA_Data_Aotizhongxin_20130301-20170228"
// to their third underscore-separated segment. Ids with fewer segments are
// returned unchanged.
func StationLabel(id string) string {
	parts := strings.Split(id, "_")
	if len(parts) >= 3 {
		return parts[2]
	}
	return id
}

// StationSeries is one station's monthly PM2.5 means aligned to Trend.Months.
type StationSeries struct {
	Station string    `json:"station"`
	Label   string    `json:"label"`
	Color   string    `json:"color"`
	Means   []float64 `json:"means"`
}

// Trend is the grouped monthly bar chart data.
type Trend struct {
	Months []string        `json:"months"`
	Series []StationSeries `json:"series"`
}

// MonthlyTrend averages PM2.5 per station and calendar month. Months span the
// whole dataset without gaps; a month with no reading for a station is 0.
func MonthlyTrend(obs []dataset.Observation, stations []string) Trend {
	months := monthRange(obs)
	index := make(map[string]int, len(months))
	for i, m := range months {
		index[m] = i
	}

	type acc struct{ sum, n []float64 }
	accs := make(map[string]*acc, len(stations))
	for _, s := range stations {
		accs[s] = &acc{sum: make([]float64, len(months)), n: make([]float64, len(months))}
	}

	for _, o := range obs {
		a, ok := accs[o.Station]
		if !ok || !o.HasPM25() {
			continue
		}
		i := index[o.MonthYear]
		a.sum[i] += o.PM25
		a.n[i]++
	}

	tr := Trend{Months: months, Series: make([]StationSeries, 0, len(stations))}
	for idx, s := range stations {
		a := accs[s]
		means := make([]float64, len(months))
		for i := range means {
			if a.n[i] > 0 {
				means[i] = a.sum[i] / a.n[i]
			}
		}
		tr.Series = append(tr.Series, StationSeries{
			Station: s,
			Label:   StationLabel(s),
			Color:   PaletteColor(idx),
			Means:   means,
		})
	}
	return tr
}

func monthRange(obs []dataset.Observation) []string {
	if len(obs) == 0 {
		return []string{}
	}
	first, last := obs[0].Time, obs[0].Time
	for _, o := range obs[1:] {
		if o.Time.Before(first) {
			first = o.Time
		}
		if o.Time.After(last) {
			last = o.Time
		}
	}

	cur := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
	var out []string
	for !cur.After(end) {
		out = append(out, dataset.MonthBucket(cur))
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

// Weekdays lists heatmap columns in calendar order starting on Monday.
var Weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// Heatmap holds mean PM2.5 by hour of day (rows) and weekday (columns).
// Cells without readings are NaN.
type Heatmap struct {
	Days  []string       `json:"days"`
	Cells [24][7]float64 `json:"-"`
}

// Rows returns the cells with NaN replaced by nil, for JSON output.
func (h Heatmap) Rows() [][]*float64 {
	out := make([][]*float64, 24)
	for r := range h.Cells {
		row := make([]*float64, 7)
		for c, v := range h.Cells[r] {
			if !math.IsNaN(v) {
				row[c] = &v
			}
		}
		out[r] = row
	}
	return out
}

// Range returns the smallest and largest non-NaN cell. ok is false when every
// cell is empty.
func (h Heatmap) Range() (lo, hi float64, ok bool) {
	for r := range h.Cells {
		for _, v := range h.Cells[r] {
			if math.IsNaN(v) {
				continue
			}
			if !ok || v < lo {
				lo = v
			}
			if !ok || v > hi {
				hi = v
			}
			ok = true
		}
	}
	return lo, hi, ok
}

func weekdayColumn(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// HourDayMatrix averages PM2.5 for every (hour, weekday) pair.
func HourDayMatrix(obs []dataset.Observation) Heatmap {
	var sum, n [24][7]float64
	for _, o := range obs {
		if !o.HasPM25() {
			continue
		}
		r, c := o.Time.Hour(), weekdayColumn(o.Time.Weekday())
		sum[r][c] += o.PM25
		n[r][c]++
	}

	h := Heatmap{Days: make([]string, len(Weekdays))}
	for i, d := range Weekdays {
		h.Days[i] = d.String()
	}
	for r := 0; r < 24; r++ {
		for c := 0; c < 7; c++ {
			if n[r][c] == 0 {
				h.Cells[r][c] = math.NaN()
				continue
			}
			h.Cells[r][c] = sum[r][c] / n[r][c]
		}
	}
	return h
}

// Point is one temperature / PM2.5 pair.
type Point struct {
	Temp float64 `json:"temp"`
	PM25 float64 `json:"pm25"`
}

// ScatterPoints keeps rows where both readings are present. When limit > 0 and
// more points qualify, an evenly strided subset of at most limit points is
// returned so the result is stable across calls.
func ScatterPoints(obs []dataset.Observation, limit int) []Point {
	pts := make([]Point, 0, len(obs))
	for _, o := range obs {
		if o.HasPM25() && o.HasTemp() {
			pts = append(pts, Point{Temp: o.Temp, PM25: o.PM25})
		}
	}
	if limit <= 0 || len(pts) <= limit {
		return pts
	}

	out := make([]Point, 0, limit)
	step := float64(len(pts)) / float64(limit)
	for i := 0; i < limit; i++ {
		out = append(out, pts[int(float64(i)*step)])
	}
	return out
}
