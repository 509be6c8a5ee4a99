// Package sqlite stores the reference station catalog and climate normals in
// a local SQLite file, provisioned from a JSON seed on first start.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	_ "modernc.org/sqlite"
)

var provisionMu sync.Mutex

const schema = `
CREATE TABLE IF NOT EXISTS weather_stations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	elevation REAL
);
CREATE TABLE IF NOT EXISTS climate_normals (
	station_id TEXT NOT NULL,
	month INTEGER NOT NULL,
	avg_temp REAL NOT NULL,
	max_temp REAL NOT NULL,
	min_temp REAL NOT NULL,
	PRIMARY KEY (station_id, month)
);
`

// NeedsProvisioning reports whether the catalog file is missing or has no
// weather_stations table.
func NeedsProvisioning(ctx context.Context, path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return true, nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return false, fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()

	var count int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='weather_stations'").Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check for weather_stations table: %w", err)
	}
	return count == 0, nil
}

// Provision builds the catalog at path from seed unless it already exists.
// The seed must pass Check.
func Provision(ctx context.Context, path string, seed Seed, logger *slog.Logger) error {
	provisionMu.Lock()
	defer provisionMu.Unlock()

	needs, err := NeedsProvisioning(ctx, path)
	if err != nil {
		return err
	}
	if !needs {
		return nil
	}
	if err := seed.Check().Err(); err != nil {
		return fmt.Errorf("invalid seed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()

	// Tables and rows commit together so a failed run leaves nothing behind
	// and the next start provisions again.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create catalog tables: %w", err)
	}

	for _, st := range seed.Stations {
		_, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO weather_stations (id, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)",
			st.ID, st.Name, st.Lat, st.Lon, st.Elevation)
		if err != nil {
			return fmt.Errorf("insert station %s: %w", st.ID, err)
		}
	}
	for _, n := range seed.Normals {
		_, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO climate_normals (station_id, month, avg_temp, max_temp, min_temp) VALUES (?, ?, ?, ?, ?)",
			n.StationID, n.Month, n.Avg, n.Max, n.Min)
		if err != nil {
			return fmt.Errorf("insert climate normal %s/%d: %w", n.StationID, n.Month, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog: %w", err)
	}
	logger.Info("reference catalog provisioned", "path", path,
		"stations", len(seed.Stations), "normals", len(seed.Normals))
	return nil
}

// LoadCatalog reads every station into an immutable catalog, ordered by ID.
func LoadCatalog(ctx context.Context, path string) (*domain.Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT id, name, latitude, longitude, elevation FROM weather_stations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	var stations []domain.WeatherStation
	for rows.Next() {
		var (
			st        domain.WeatherStation
			elevation sql.NullFloat64
		)
		if err := rows.Scan(&st.ID, &st.Name, &st.Coordinate.Lat, &st.Coordinate.Lon, &elevation); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		if elevation.Valid {
			st.Elevation = &elevation.Float64
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.NewCatalog(stations), nil
}

// LoadNormals reads every climate normal, ordered by station and month.
func LoadNormals(ctx context.Context, path string) ([]domain.ClimateNormal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT station_id, month, avg_temp, max_temp, min_temp FROM climate_normals ORDER BY station_id, month")
	if err != nil {
		return nil, fmt.Errorf("query climate normals: %w", err)
	}
	defer rows.Close()

	var normals []domain.ClimateNormal
	for rows.Next() {
		var (
			n     domain.ClimateNormal
			month int
		)
		if err := rows.Scan(&n.StationID, &month, &n.Avg, &n.Max, &n.Min); err != nil {
			return nil, fmt.Errorf("scan climate normal: %w", err)
		}
		n.Month = time.Month(month)
		normals = append(normals, n)
	}
	return normals, rows.Err()
}
