package models

import "time"

// StationRow captures per-station metadata for the stations table.
type StationRow struct {
	ID      string
	Label   string
	FirstTS time.Time
	LastTS  time.Time
	Rows    int
}

// ObservationRow is one hourly reading ready for insertion. Missing readings are nil.
type ObservationRow struct {
	StationID string
	TS        time.Time
	PM25      *float64
	Temp      *float64
}

// LastObservation is the most recent stored reading of a station.
type LastObservation struct {
	TS time.Time
}
