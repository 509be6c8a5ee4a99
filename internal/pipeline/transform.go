package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
)

// LocationChecker reports whether an observation's location is known.
type LocationChecker interface {
	LocationExists(ctx context.Context, id string) (bool, error)
}

// ObservationTransformer implements Transformer. Messages for unknown
// locations are rejected as invalid. A failed lookup is returned unwrapped so
// the pipeline retries it.
type ObservationTransformer struct {
	locations LocationChecker
	logger    *slog.Logger
}

// NewTransformer creates an ObservationTransformer. Pass a nil checker to
// skip the location lookup.
func NewTransformer(locations LocationChecker, logger *slog.Logger) *ObservationTransformer {
	return &ObservationTransformer{
		locations: locations,
		logger:    logger,
	}
}

func (t *ObservationTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.Observation, error) {
	obs, err := domain.ParseObservationMessage(raw)
	if err != nil {
		return domain.Observation{}, err
	}

	if t.locations != nil {
		ok, err := t.locations.LocationExists(ctx, obs.LocationID)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("check location %s: %w", obs.LocationID, err)
		}
		if !ok {
			return domain.Observation{}, fmt.Errorf("%w: unknown location %s", domain.ErrInvalidObservation, obs.LocationID)
		}
	}

	t.logger.Debug("observation parsed",
		"location_id", obs.LocationID,
		"date", obs.Date.String(),
		"has_lst", obs.LST != nil,
		"has_ndvi", obs.NDVI != nil,
	)
	return obs, nil
}
