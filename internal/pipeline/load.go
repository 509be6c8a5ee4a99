package pipeline

import (
	"context"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
)

// Loaders runs each loader in order and stops at the first error. List the
// store before the event publisher.
type Loaders []BatchLoader

func (ls Loaders) LoadBatch(ctx context.Context, observations []domain.Observation) error {
	observations = domain.DedupeObservations(observations)
	for _, l := range ls {
		if err := l.LoadBatch(ctx, observations); err != nil {
			return err
		}
	}
	return nil
}
