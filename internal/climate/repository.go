package climate

import (
	"context"
	"errors"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
)

var (
	// ErrLocationNotFound is returned by repositories for unknown location IDs.
	ErrLocationNotFound = errors.New("location not found")
	// ErrObservationNotFound is returned when no observation exists for a location and date.
	ErrObservationNotFound = errors.New("observation not found")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// LocationRepository persists user locations.
type LocationRepository interface {
	SaveLocation(ctx context.Context, loc domain.Location) error
	GetLocation(ctx context.Context, id string) (domain.Location, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	DeleteLocation(ctx context.Context, id string) error
}

// ObservationRepository reads stored observations.
type ObservationRepository interface {
	// ObservationsInRange returns observations ascending by date.
	ObservationsInRange(ctx context.Context, locationID string, r domain.DateRange) ([]domain.Observation, error)
	ObservationOn(ctx context.Context, locationID string, date domain.Date) (domain.Observation, error)
}

// NormalsRepository looks up the monthly normals for a station. Fewer than
// twelve months is a valid answer.
type NormalsRepository interface {
	NormalsForStation(ctx context.Context, stationID string) (domain.NormalsByMonth, error)
}

// Repositories groups the data sources the Service reads and writes.
type Repositories struct {
	Locations    LocationRepository
	Observations ObservationRepository
	Normals      NormalsRepository
}
