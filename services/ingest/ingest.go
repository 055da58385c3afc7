package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/02loveslollipop/Shizuku-air-quality/services/dataset"
	"github.com/02loveslollipop/Shizuku-air-quality/services/ingest/internal/config"
	"github.com/02loveslollipop/Shizuku-air-quality/services/ingest/internal/models"
	"github.com/02loveslollipop/Shizuku-air-quality/services/ingest/internal/utils"
)

type store interface {
	EnsureSchema(ctx context.Context) error
	UpsertStations(ctx context.Context, stations []models.StationRow) error
	FetchLastObservations(ctx context.Context, stationIDs []string) (map[string]models.LastObservation, error)
	InsertObservations(ctx context.Context, observations []models.ObservationRow) error
}

// ingest writes station summaries and the observations newer than what is
// stored. On a dry run nothing is written; the pending rows are only logged.
// It returns the number of observations written or, on a dry run, pending.
func ingest(ctx context.Context, st store, ds *dataset.Dataset, cfg config.Config, logger *slog.Logger) (int, error) {
	stationRows := utils.BuildStationRows(ds.Observations)
	if cfg.DryRun {
		logger.Info("dry-run: skipping schema and station upsert", "stations", len(stationRows))
	} else {
		if err := st.EnsureSchema(ctx); err != nil {
			return 0, err
		}
		if err := st.UpsertStations(ctx, stationRows); err != nil {
			return 0, err
		}
	}

	lastMap, err := st.FetchLastObservations(ctx, utils.StationIDs(stationRows))
	if err != nil {
		if !cfg.DryRun {
			return 0, fmt.Errorf("fetch last observations: %w", err)
		}
		// The tables may not exist yet on a dry run.
		logger.Warn("dry-run: could not read stored timestamps", "error", err)
	}

	pending := utils.FilterNewObservations(utils.BuildObservationRows(ds.Observations), lastMap)
	if len(pending) == 0 {
		logger.Info("no new observations to insert")
		return 0, nil
	}

	logger.Info("prepared new observations", "count", len(pending), "dry_run", cfg.DryRun)

	if cfg.DryRun {
		for _, row := range pending {
			logger.Debug("dry-run: would insert",
				"station", row.StationID,
				"ts", row.TS.Format(time.RFC3339),
				"pm25", utils.ValuePtrString(row.PM25),
				"temp", utils.ValuePtrString(row.Temp),
			)
		}
		return len(pending), nil
	}

	inserted := 0
	for _, chunk := range utils.Chunk(pending, cfg.BatchSize) {
		if err := st.InsertObservations(ctx, chunk); err != nil {
			return inserted, fmt.Errorf("insert observations after %d rows: %w", inserted, err)
		}
		inserted += len(chunk)
		logger.Debug("batch inserted", "rows", len(chunk), "total", inserted)
	}

	logger.Info("inserted observations", "count", inserted)
	return inserted, nil
}
