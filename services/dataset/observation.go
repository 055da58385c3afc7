package dataset

import (
	"math"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Column names expected in every station CSV.
const (
	ColYear  = "year"
	ColMonth = "month"
	ColDay   = "day"
	ColHour  = "hour"
	ColPM25  = "PM2.5"
	ColTemp  = "TEMP"

	// Derived columns added to the merged frame.
	ColStation   = "station"
	ColDatetime  = "datetime"
	ColMonthYear = "month_year"
)

const (
	datetimeLayout  = "2006-01-02 15:04:05"
	monthYearLayout = "2006-01"
)

// Observation is one hourly row of one station.
type Observation struct {
	Station   string    `json:"station"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Day       int       `json:"day"`
	Hour      int       `json:"hour"`
	PM25      float64   `json:"pm25"`
	Temp      float64   `json:"temp"`
	Time      time.Time `json:"datetime"`
	MonthYear string    `json:"month_year"`
}

// HasPM25 reports whether the PM2.5 reading is present.
func (o Observation) HasPM25() bool { return !math.IsNaN(o.PM25) }

// HasTemp reports whether the temperature reading is present.
func (o Observation) HasTemp() bool { return !math.IsNaN(o.Temp) }

// MonthBucket returns the calendar-month label used for trend aggregation.
func MonthBucket(t time.Time) string {
	return t.Format(monthYearLayout)
}

// Dataset is the merged, read-only collection built by the loader.
type Dataset struct {
	Observations []Observation
	// Frame keeps every source column plus station, datetime and month_year,
	// row-aligned with Observations.
	Frame    dataframe.DataFrame
	Files    []string
	LoadedAt time.Time
}

// Len returns the number of merged rows.
func (d *Dataset) Len() int { return len(d.Observations) }

// Stations returns the distinct station ids in first-appearance order.
func (d *Dataset) Stations() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, o := range d.Observations {
		if _, ok := seen[o.Station]; ok {
			continue
		}
		seen[o.Station] = struct{}{}
		out = append(out, o.Station)
	}
	return out
}

// HasStation reports whether any observation belongs to id.
func (d *Dataset) HasStation(id string) bool {
	for _, o := range d.Observations {
		if o.Station == id {
			return true
		}
	}
	return false
}

// ForStation returns the observations of one station. An empty id returns all.
func (d *Dataset) ForStation(id string) []Observation {
	if id == "" {
		return d.Observations
	}
	out := make([]Observation, 0)
	for _, o := range d.Observations {
		if o.Station == id {
			out = append(out, o)
		}
	}
	return out
}

// Span returns the earliest and latest timestamps in the dataset.
func (d *Dataset) Span() (first, last time.Time) {
	for i, o := range d.Observations {
		if i == 0 || o.Time.Before(first) {
			first = o.Time
		}
		if i == 0 || o.Time.After(last) {
			last = o.Time
		}
	}
	return first, last
}

// Head returns the column names and the first n rows of the merged frame,
// optionally restricted to one station. Values are rendered as strings.
func (d *Dataset) Head(station string, n int) ([]string, [][]string) {
	return d.records(station, n)
}

// Rows returns every frame row of a station (or all rows when station is empty).
func (d *Dataset) Rows(station string) ([]string, [][]string) {
	return d.records(station, -1)
}

func (d *Dataset) records(station string, limit int) ([]string, [][]string) {
	header := d.Frame.Names()
	if d.Frame.Nrow() == 0 || limit == 0 {
		return header, [][]string{}
	}

	df := d.Frame
	if station != "" {
		df = df.Filter(dataframe.F{Colname: ColStation, Comparator: series.Eq, Comparando: station})
		if df.Err != nil || df.Nrow() == 0 {
			return header, [][]string{}
		}
	}

	if limit > 0 && df.Nrow() > limit {
		idx := make([]int, limit)
		for i := range idx {
			idx[i] = i
		}
		df = df.Subset(idx)
	}

	return df.Names(), formatRows(df)
}

// formatRows renders the frame row by row. Floats use the shortest exact
// form so 12.5 stays "12.5" and 1 stays "1".
func formatRows(df dataframe.DataFrame) [][]string {
	cols := make([][]string, df.Ncol())
	for j, name := range df.Names() {
		col := df.Col(name)
		if col.Type() != series.Float {
			cols[j] = col.Records()
			continue
		}
		values := col.Float()
		cols[j] = make([]string, len(values))
		for i, v := range values {
			if math.IsNaN(v) {
				cols[j][i] = "NaN"
				continue
			}
			cols[j][i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}

	rows := make([][]string, df.Nrow())
	for i := range rows {
		row := make([]string, len(cols))
		for j := range cols {
			row[j] = cols[j][i]
		}
		rows[i] = row
	}
	return rows
}
