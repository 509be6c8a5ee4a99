package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/satellite-climate-service/internal/climate"
	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Store persists locations, observations and climate normals in Postgres.
// It implements the climate repositories and pipeline.BatchLoader.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- locations ---

func (s *Store) SaveLocation(ctx context.Context, loc domain.Location) error {
	var stationID, stationName *string
	var distance *float64
	if loc.Station != nil {
		stationID, stationName, distance = &loc.Station.ID, &loc.Station.Name, &loc.Station.DistanceKM
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO locations (id, name, latitude, longitude, station_id, station_name, station_distance_km, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   name = $2, latitude = $3, longitude = $4, station_id = $5, station_name = $6,
		   station_distance_km = $7, updated_at = $9`,
		loc.ID, loc.Name, loc.Coordinate.Lat, loc.Coordinate.Lon, stationID, stationName, distance, loc.CreatedAt, loc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save location %s: %w", loc.ID, err)
	}
	return nil
}

const locationColumns = `id, name, latitude, longitude, station_id, station_name, station_distance_km, created_at, updated_at`

func (s *Store) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id)
	loc, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Location{}, fmt.Errorf("%w: %s", climate.ErrLocationNotFound, id)
	}
	if err != nil {
		return domain.Location{}, fmt.Errorf("get location %s: %w", id, err)
	}
	return loc, nil
}

func (s *Store) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete location %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", climate.ErrLocationNotFound, id)
	}
	return nil
}

func scanLocation(row pgx.Row) (domain.Location, error) {
	var (
		loc         domain.Location
		stationID   *string
		stationName *string
		distance    *float64
	)
	err := row.Scan(&loc.ID, &loc.Name, &loc.Coordinate.Lat, &loc.Coordinate.Lon,
		&stationID, &stationName, &distance, &loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		return domain.Location{}, err
	}
	if stationID != nil {
		ref := &domain.StationRef{ID: *stationID}
		if stationName != nil {
			ref.Name = *stationName
		}
		if distance != nil {
			ref.DistanceKM = *distance
		}
		loc.Station = ref
	}
	return loc, nil
}

// --- observations ---

// UpsertObservations writes observations in one batch. A second write for the
// same (location, date) replaces the readings.
func (s *Store) UpsertObservations(ctx context.Context, observations []domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	observations = domain.DedupeObservations(observations)

	batch := &pgx.Batch{}
	for _, o := range observations {
		batch.Queue(
			`INSERT INTO observations (location_id, observation_date, lst, ndvi, data_source, ingested_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (location_id, observation_date) DO UPDATE SET
			   lst = $3, ndvi = $4, data_source = $5, ingested_at = $6`,
			o.LocationID, o.Date.Time(), o.LST, o.NDVI, o.DataSource, o.IngestedAt,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range observations {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert observation: %w", err)
		}
	}
	return nil
}

// LoadBatch implements pipeline.BatchLoader.
func (s *Store) LoadBatch(ctx context.Context, observations []domain.Observation) error {
	return s.UpsertObservations(ctx, observations)
}

const observationColumns = `location_id, observation_date, lst, ndvi, data_source, ingested_at`

func (s *Store) ObservationsInRange(ctx context.Context, locationID string, r domain.DateRange) ([]domain.Observation, error) {
	var from, to *time.Time
	if !r.From.IsZero() {
		t := r.From.Time()
		from = &t
	}
	if !r.To.IsZero() {
		t := r.To.Time()
		to = &t
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+observationColumns+`
		 FROM observations
		 WHERE location_id = $1
		   AND ($2::date IS NULL OR observation_date >= $2)
		   AND ($3::date IS NULL OR observation_date <= $3)
		 ORDER BY observation_date ASC`,
		locationID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []domain.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ObservationOn(ctx context.Context, locationID string, date domain.Date) (domain.Observation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE location_id = $1 AND observation_date = $2`,
		locationID, date.Time(),
	)
	o, err := scanObservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Observation{}, fmt.Errorf("%w: %s on %s", climate.ErrObservationNotFound, locationID, date)
	}
	if err != nil {
		return domain.Observation{}, fmt.Errorf("observation %s on %s: %w", locationID, date, err)
	}
	return o, nil
}

func scanObservation(row pgx.Row) (domain.Observation, error) {
	var (
		o    domain.Observation
		date time.Time
	)
	if err := row.Scan(&o.LocationID, &date, &o.LST, &o.NDVI, &o.DataSource, &o.IngestedAt); err != nil {
		return domain.Observation{}, err
	}
	o.Date = domain.DateOf(date)
	return o, nil
}

// --- climate normals ---

// UpsertNormals writes reference normals in one batch.
func (s *Store) UpsertNormals(ctx context.Context, normals []domain.ClimateNormal) error {
	if len(normals) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, n := range normals {
		batch.Queue(
			`INSERT INTO climate_normals (station_id, month, avg_temp, max_temp, min_temp)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (station_id, month) DO UPDATE SET avg_temp = $3, max_temp = $4, min_temp = $5`,
			n.StationID, int16(n.Month), n.Avg, n.Max, n.Min,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range normals {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert climate normal: %w", err)
		}
	}
	return nil
}

// NormalsForStation returns every stored month for stationID in one query.
func (s *Store) NormalsForStation(ctx context.Context, stationID string) (domain.NormalsByMonth, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT station_id, month, avg_temp, max_temp, min_temp
		 FROM climate_normals
		 WHERE station_id = $1
		 ORDER BY month`,
		stationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query climate normals: %w", err)
	}
	defer rows.Close()

	out := make(domain.NormalsByMonth, 12)
	for rows.Next() {
		var (
			n     domain.ClimateNormal
			month int16
		)
		if err := rows.Scan(&n.StationID, &month, &n.Avg, &n.Max, &n.Min); err != nil {
			return nil, fmt.Errorf("scan climate normal: %w", err)
		}
		n.Month = time.Month(month)
		out[n.Month] = n
	}
	return out, rows.Err()
}
