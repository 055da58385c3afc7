package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/Shizuku-air-quality/services/ingest/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the airquality schema and tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertStations inserts/updates station metadata records.
func UpsertStations(ctx context.Context, pool *pgxpool.Pool, stations []models.StationRow) error {
	if len(stations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO airquality.stations (id, label, first_ts, last_ts, row_count, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
ON CONFLICT (id) DO UPDATE
SET label = EXCLUDED.label,
    first_ts = LEAST(airquality.stations.first_ts, EXCLUDED.first_ts),
    last_ts = GREATEST(airquality.stations.last_ts, EXCLUDED.last_ts),
    row_count = EXCLUDED.row_count,
    updated_at = NOW()`

	for _, s := range stations {
		batch.Queue(query, s.ID, s.Label, s.FirstTS, s.LastTS, s.Rows)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for _, s := range stations {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("upsert station %s: %w", s.ID, err)
		}
	}

	return nil
}

// FetchLastObservations loads the most recent stored timestamp per station.
func FetchLastObservations(ctx context.Context, pool *pgxpool.Pool, stationIDs []string) (map[string]models.LastObservation, error) {
	result := make(map[string]models.LastObservation, len(stationIDs))
	if len(stationIDs) == 0 {
		return result, nil
	}

	rows, err := pool.Query(ctx, `
SELECT station_id, MAX(ts)
FROM airquality.observations
WHERE station_id = ANY($1)
GROUP BY station_id`, stationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var stationID string
		var ts time.Time
		if err := rows.Scan(&stationID, &ts); err != nil {
			return nil, err
		}
		result[stationID] = models.LastObservation{TS: ts.UTC()}
	}

	return result, rows.Err()
}

// InsertObservations writes one batch of observations.
func InsertObservations(ctx context.Context, pool *pgxpool.Pool, observations []models.ObservationRow) error {
	if len(observations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO airquality.observations (station_id, ts, pm25, temp, ingested_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW())
ON CONFLICT (station_id, ts) DO UPDATE
SET pm25 = EXCLUDED.pm25,
    temp = EXCLUDED.temp,
    updated_at = NOW()`

	for _, o := range observations {
		batch.Queue(query, o.StationID, o.TS, o.PM25, o.Temp)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range observations {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}
