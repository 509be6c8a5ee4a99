package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	"github.com/couchcryptid/satellite-climate-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// BatchExtractor reads up to batchSize raw ingest messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer parses and validates one raw message into an observation.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.Observation, error)
}

// BatchLoader writes observations to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, observations []domain.Observation) error
}

// BackupWriter keeps observations that failed to load.
type BackupWriter interface {
	WriteBatch(observations []domain.Observation, cause error) (string, error)
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	backup      BackupWriter
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// Option configures optional Pipeline behaviour.
type Option func(*Pipeline)

// WithBackup writes batches that fail to load to b. Once the backup succeeds
// the batch's offsets are committed.
func WithBackup(b BackupWriter) Option {
	return func(p *Pipeline) { p.backup = b }
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil if the pipeline has loaded at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	loaded, ok := p.transformAndLoad(ctx, rawBatch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// transformAndLoad transforms each message in the batch, loads the successes,
// and commits offsets. Returns the number of successfully loaded messages and
// false if the pipeline should stop. Nothing is committed while a failed load
// has not been saved to backup, since a commit covers every earlier offset.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	outBatch := make([]domain.Observation, 0, len(rawBatch))
	settled := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		out, outcome := p.transform(ctx, raw, backoff, maxBackoff)
		switch outcome {
		case transformStopped:
			return 0, false
		case transformOK:
			outBatch = append(outBatch, out)
		}
		settled = append(settled, raw)
	}

	if len(outBatch) == 0 {
		p.commitOffsets(ctx, settled)
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, outBatch); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(outBatch))
		if p.writeBackup(outBatch, err) {
			p.commitOffsets(ctx, settled)
		}
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.MessagesProduced.Add(float64(len(outBatch)))
	p.commitOffsets(ctx, settled)
	return len(outBatch), true
}

type transformOutcome int

const (
	transformOK transformOutcome = iota
	transformSkipped
	transformBackedUp
	transformStopped
)

// maxTransformAttempts bounds retries of a failing location lookup before the
// observation goes to backup. Without a backup writer retries continue until
// the lookup succeeds or the context ends.
const maxTransformAttempts = 3

// transform runs the transformer for one message. Invalid messages are
// skipped. Any other error is treated as transient and retried with backoff.
func (p *Pipeline) transform(ctx context.Context, raw domain.RawEvent, backoff *time.Duration, maxBackoff time.Duration) (domain.Observation, transformOutcome) {
	for attempt := 1; ; attempt++ {
		out, err := p.transformer.Transform(ctx, raw)
		if err == nil {
			return out, transformOK
		}
		if errors.Is(err, domain.ErrInvalidObservation) {
			p.logger.Warn("transform failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			return domain.Observation{}, transformSkipped
		}

		p.logger.Error("transform failed, retrying",
			"error", err,
			"attempt", attempt,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		if attempt >= maxTransformAttempts && p.backup != nil {
			if obs, perr := domain.ParseObservationMessage(raw); perr == nil && p.writeBackup([]domain.Observation{obs}, err) {
				return domain.Observation{}, transformBackedUp
			}
		}
		if !p.backoffOrStop(ctx, backoff, maxBackoff) {
			return domain.Observation{}, transformStopped
		}
	}
}

// writeBackup reports whether the batch was saved to the backup writer.
func (p *Pipeline) writeBackup(batch []domain.Observation, cause error) bool {
	if p.backup == nil {
		return false
	}
	path, err := p.backup.WriteBatch(batch, cause)
	if err != nil {
		p.logger.Error("backup write failed", "error", err, "batch_size", len(batch))
		return false
	}
	p.metrics.BackupsWritten.Add(float64(len(batch)))
	p.logger.Warn("batch saved to backup", "path", path, "batch_size", len(batch))
	return true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffsets commits each message offset that has a commit function.
func (p *Pipeline) commitOffsets(ctx context.Context, raws []domain.RawEvent) {
	for _, raw := range raws {
		if raw.Commit == nil {
			continue
		}
		if err := raw.Commit(ctx); err != nil {
			p.logger.Warn("commit offset failed", "error", err,
				"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
		}
	}
}
