package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/Shizuku-air-quality/services/ingest/internal/models"
)

// Store binds the ingest queries to one connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, s.pool)
}

func (s *Store) UpsertStations(ctx context.Context, stations []models.StationRow) error {
	return UpsertStations(ctx, s.pool, stations)
}

func (s *Store) FetchLastObservations(ctx context.Context, stationIDs []string) (map[string]models.LastObservation, error) {
	return FetchLastObservations(ctx, s.pool, stationIDs)
}

func (s *Store) InsertObservations(ctx context.Context, observations []models.ObservationRow) error {
	return InsertObservations(ctx, s.pool, observations)
}
