package utils

import (
	"fmt"
	"math"

	"github.com/02loveslollipop/Shizuku-air-quality/services/analysis"
	"github.com/02loveslollipop/Shizuku-air-quality/services/dataset"
	"github.com/02loveslollipop/Shizuku-air-quality/services/ingest/internal/models"
)

// BuildStationRows summarises each station of the dataset, in first-appearance order.
func BuildStationRows(obs []dataset.Observation) []models.StationRow {
	index := make(map[string]int)
	rows := make([]models.StationRow, 0)
	for _, o := range obs {
		i, ok := index[o.Station]
		if !ok {
			i = len(rows)
			index[o.Station] = i
			rows = append(rows, models.StationRow{
				ID:      o.Station,
				Label:   analysis.StationLabel(o.Station),
				FirstTS: o.Time,
				LastTS:  o.Time,
			})
		}
		row := &rows[i]
		row.Rows++
		if o.Time.Before(row.FirstTS) {
			row.FirstTS = o.Time
		}
		if o.Time.After(row.LastTS) {
			row.LastTS = o.Time
		}
	}
	return rows
}

// StationIDs extracts station identifiers from station rows.
func StationIDs(rows []models.StationRow) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

// BuildObservationRows converts dataset observations into insert rows.
func BuildObservationRows(obs []dataset.Observation) []models.ObservationRow {
	rows := make([]models.ObservationRow, 0, len(obs))
	for _, o := range obs {
		rows = append(rows, models.ObservationRow{
			StationID: o.Station,
			TS:        o.Time,
			PM25:      NormalizeValue(o.PM25),
			Temp:      NormalizeValue(o.Temp),
		})
	}
	return rows
}

// NormalizeValue maps NaN (a missing reading) to nil.
func NormalizeValue(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FilterNewObservations keeps rows newer than the last stored reading of
// their station. Stations with nothing stored keep every row.
func FilterNewObservations(rows []models.ObservationRow, last map[string]models.LastObservation) []models.ObservationRow {
	out := make([]models.ObservationRow, 0, len(rows))
	for _, row := range rows {
		prev, ok := last[row.StationID]
		if !ok || row.TS.After(prev.TS) {
			out = append(out, row)
		}
	}
	return out
}

// Chunk splits rows into consecutive batches of at most size rows.
func Chunk(rows []models.ObservationRow, size int) [][]models.ObservationRow {
	if size <= 0 || len(rows) <= size {
		if len(rows) == 0 {
			return nil
		}
		return [][]models.ObservationRow{rows}
	}
	out := make([][]models.ObservationRow, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}

// ValuePtrString prints pointer values for logging.
func ValuePtrString(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.3f", *v)
}
