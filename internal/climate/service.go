package climate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	"github.com/couchcryptid/satellite-climate-service/internal/observability"
)

// Service answers location, comparison and export requests. It fetches data
// through its repositories and hands the materialized inputs to the domain core.
type Service struct {
	catalog  *domain.Catalog
	repos    Repositories
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates a Service over an immutable station catalog. Pass a nil
// geocoder to disable place lookups and reverse-geocoded names.
func NewService(catalog *domain.Catalog, repos Repositories, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		catalog:  catalog,
		repos:    repos,
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness reports an error until a non-empty catalog is loaded.
func (s *Service) CheckReadiness(_ context.Context) error {
	if s.catalog.Len() == 0 {
		return domain.ErrEmptyCatalog
	}
	return nil
}

// Stations returns the reference catalog in load order.
func (s *Service) Stations() []domain.WeatherStation {
	return s.catalog.Stations()
}

// NearestStation resolves the catalog station closest to c.
func (s *Service) NearestStation(_ context.Context, c domain.Coordinate) (domain.StationMatch, error) {
	if err := domain.ValidateCoordinate(c); err != nil {
		return domain.StationMatch{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.resolve(c)
}

func (s *Service) resolve(c domain.Coordinate) (domain.StationMatch, error) {
	match, err := s.catalog.Nearest(c)
	if err != nil {
		s.metrics.StationResolutions.WithLabelValues("empty_catalog").Inc()
		return domain.StationMatch{}, err
	}
	s.metrics.StationResolutions.WithLabelValues("resolved").Inc()
	return match, nil
}

// NewLocation is a create-location request. Either Coordinate or Place must be set.
type NewLocation struct {
	Name       string
	Coordinate *domain.Coordinate
	Place      string
	Region     string
}

// CreateLocation validates the request, resolves the nearest station and saves
// the location. An empty catalog leaves the station unset rather than failing.
func (s *Service) CreateLocation(ctx context.Context, req NewLocation) (domain.Location, error) {
	var (
		coord     domain.Coordinate
		placeName string
	)
	switch {
	case req.Coordinate != nil:
		coord = *req.Coordinate
	case req.Place != "":
		c, name, err := domain.CoordinateForPlace(ctx, domain.SanitizeName(req.Place), req.Region, s.geocoder)
		if err != nil {
			return domain.Location{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		coord, placeName = c, name
	default:
		return domain.Location{}, fmt.Errorf("%w: coordinate or place is required", ErrInvalidInput)
	}

	if err := domain.ValidateCoordinate(coord); err != nil {
		return domain.Location{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	name, err := s.locationName(ctx, req.Name, placeName, coord)
	if err != nil {
		return domain.Location{}, err
	}

	loc := domain.NewLocation(name, coord)
	match, err := s.resolve(coord)
	switch {
	case err == nil:
		loc = loc.WithStation(match)
	case errors.Is(err, domain.ErrEmptyCatalog):
		s.logger.Warn("no station resolved for new location", "location_id", loc.ID, "error", err)
	default:
		return domain.Location{}, err
	}

	if err := s.repos.Locations.SaveLocation(ctx, loc); err != nil {
		return domain.Location{}, fmt.Errorf("save location: %w", err)
	}
	s.logger.Info("location created",
		"location_id", loc.ID,
		"station_id", loc.StationID(),
		"lat", coord.Lat,
		"lon", coord.Lon,
	)
	return loc, nil
}

func (s *Service) locationName(ctx context.Context, requested, placeName string, c domain.Coordinate) (string, error) {
	if requested != "" {
		name, err := domain.ValidateName(requested)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return name, nil
	}
	if placeName != "" {
		return placeName, nil
	}
	return domain.NameForCoordinate(ctx, c, s.geocoder, s.logger), nil
}

// GetLocation fetches one location.
func (s *Service) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	return s.repos.Locations.GetLocation(ctx, id)
}

// ListLocations returns all locations.
func (s *Service) ListLocations(ctx context.Context) ([]domain.Location, error) {
	return s.repos.Locations.ListLocations(ctx)
}

// DeleteLocation removes a location.
func (s *Service) DeleteLocation(ctx context.Context, id string) error {
	return s.repos.Locations.DeleteLocation(ctx, id)
}

// LocationExists reports whether id names a stored location.
func (s *Service) LocationExists(ctx context.Context, id string) (bool, error) {
	_, err := s.repos.Locations.GetLocation(ctx, id)
	if errors.Is(err, ErrLocationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResolveStation recomputes a location's nearest station against the current
// catalog and persists the new reference. This is the only path that changes a
// stored station reference.
func (s *Service) ResolveStation(ctx context.Context, id string) (domain.Location, error) {
	loc, err := s.repos.Locations.GetLocation(ctx, id)
	if err != nil {
		return domain.Location{}, err
	}

	match, err := s.resolve(loc.Coordinate)
	if err != nil {
		return domain.Location{}, err
	}

	previous := loc.StationID()
	loc = loc.WithStation(match)
	if err := s.repos.Locations.SaveLocation(ctx, loc); err != nil {
		return domain.Location{}, fmt.Errorf("save location: %w", err)
	}
	s.logger.Info("station re-resolved",
		"location_id", loc.ID,
		"previous_station_id", previous,
		"station_id", loc.StationID(),
		"distance_km", match.DistanceKM,
	)
	return loc, nil
}

// normalsFor fetches the month map for the location's station once. A
// location without a station gets an empty map.
func (s *Service) normalsFor(ctx context.Context, loc domain.Location) (domain.NormalsByMonth, error) {
	if loc.Station == nil {
		return domain.NormalsByMonth{}, nil
	}
	normals, err := s.repos.Normals.NormalsForStation(ctx, loc.Station.ID)
	if err != nil {
		return nil, fmt.Errorf("normals for station %s: %w", loc.Station.ID, err)
	}
	return normals, nil
}

// CompareDate compares the location's observation on date with its month's normal.
func (s *Service) CompareDate(ctx context.Context, id string, date domain.Date) (domain.ComparisonResult, error) {
	loc, err := s.repos.Locations.GetLocation(ctx, id)
	if err != nil {
		return domain.ComparisonResult{}, err
	}

	obs, err := s.repos.Observations.ObservationOn(ctx, loc.ID, date)
	if err != nil {
		return domain.ComparisonResult{}, err
	}

	normals, err := s.normalsFor(ctx, loc)
	if err != nil {
		return domain.ComparisonResult{}, err
	}

	res := domain.Compare(obs, loc.StationID(), normals)
	s.recordComparison(res)
	return res, nil
}

// RangeComparison is the result of comparing every observation in a range.
type RangeComparison struct {
	Location domain.Location           `json:"location"`
	Results  []domain.ComparisonResult `json:"results"`
	Summary  domain.Summary            `json:"summary"`
}

// CompareRange compares each observation in r, fetching the normals once.
func (s *Service) CompareRange(ctx context.Context, id string, r domain.DateRange) (RangeComparison, error) {
	if err := r.Validate(); err != nil {
		return RangeComparison{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	loc, err := s.repos.Locations.GetLocation(ctx, id)
	if err != nil {
		return RangeComparison{}, err
	}

	observations, err := s.repos.Observations.ObservationsInRange(ctx, loc.ID, r)
	if err != nil {
		return RangeComparison{}, fmt.Errorf("observations for %s: %w", loc.ID, err)
	}

	normals, err := s.normalsFor(ctx, loc)
	if err != nil {
		return RangeComparison{}, err
	}

	results := make([]domain.ComparisonResult, 0, len(observations))
	for _, o := range observations {
		res := domain.Compare(o, loc.StationID(), normals)
		s.recordComparison(res)
		results = append(results, res)
	}

	return RangeComparison{
		Location: loc,
		Results:  results,
		Summary:  domain.Summarize(results),
	}, nil
}

// Export builds the export rows for a location and range. It returns
// domain.ErrNoDataInRange when the range holds no observations.
func (s *Service) Export(ctx context.Context, id string, r domain.DateRange) (domain.Location, []domain.ExportRow, error) {
	if err := r.Validate(); err != nil {
		return domain.Location{}, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	loc, err := s.repos.Locations.GetLocation(ctx, id)
	if err != nil {
		return domain.Location{}, nil, err
	}

	observations, err := s.repos.Observations.ObservationsInRange(ctx, loc.ID, r)
	if err != nil {
		return domain.Location{}, nil, fmt.Errorf("observations for %s: %w", loc.ID, err)
	}

	normals, err := s.normalsFor(ctx, loc)
	if err != nil {
		return domain.Location{}, nil, err
	}

	rows, err := domain.BuildExportRows(loc, observations, normals)
	if err != nil {
		return domain.Location{}, nil, err
	}
	s.metrics.ExportRows.Observe(float64(len(rows)))
	return loc, rows, nil
}

func (s *Service) recordComparison(res domain.ComparisonResult) {
	outcome := string(res.Missing)
	if res.Missing == domain.MissingNone {
		outcome = "compared"
	}
	s.metrics.Comparisons.WithLabelValues(outcome).Inc()
}
