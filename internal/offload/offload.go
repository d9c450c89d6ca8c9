// Package offload runs envelope normalization off the caller's goroutine.
// Items are split into a fixed number of contiguous chunks normalized in
// parallel; the result comes back over a channel and the caller applies it.
package offload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
	"golang.org/x/sync/errgroup"
)

// DefaultChunks is the number of parallel chunks per job.
const DefaultChunks = 4

// ErrUnavailable is logged when jobs run synchronously because offloading
// is disabled.
var ErrUnavailable = errors.New("offload workers unavailable")

// ProcessingError reports a systemic normalization failure. Per-item
// rejections are not processing errors.
type ProcessingError struct {
	Phase string
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed in %s: %v", e.Phase, e.Cause)
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

// ItemNormalizer converts one raw item into a record or rejects it.
type ItemNormalizer interface {
	Normalize(raw json.RawMessage) (domain.IncidentRecord, error)
}

// Result is the response to one submitted envelope.
type Result struct {
	Records   []domain.IncidentRecord
	Rejected  int
	Offloaded bool
	Err       error
}

// Options configures a Processor.
type Options struct {
	// Chunks is the number of parallel chunks; <= 0 means DefaultChunks.
	Chunks int
	// Disabled forces the synchronous fallback path.
	Disabled bool
}

// Processor normalizes envelopes with at most one job outstanding.
type Processor struct {
	normalizer ItemNormalizer
	chunks     int
	disabled   bool
	slot       chan struct{}
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Processor.
func New(normalizer ItemNormalizer, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Processor {
	chunks := opts.Chunks
	if chunks <= 0 {
		chunks = DefaultChunks
	}
	return &Processor{
		normalizer: normalizer,
		chunks:     chunks,
		disabled:   opts.Disabled,
		slot:       make(chan struct{}, 1),
		logger:     logger,
		metrics:    metrics,
	}
}

// Submit starts normalizing env and returns the channel its Result arrives
// on. If a previous job's result has not been received yet, Submit blocks
// until it is or ctx ends. The channel is closed without a value if ctx ends
// before the result is received.
func (p *Processor) Submit(ctx context.Context, env domain.Envelope) (<-chan Result, error) {
	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if p.disabled {
		out := make(chan Result, 1)
		p.logger.Debug("normalizing synchronously", "reason", ErrUnavailable)
		p.metrics.ProcessingFallback.Inc()
		out <- p.runSync(env)
		close(out)
		<-p.slot
		return out, nil
	}

	out := make(chan Result)
	go func() {
		defer close(out)
		defer func() { <-p.slot }()

		res := p.runChunked(ctx, env)
		select {
		case out <- res:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// Process submits env and waits for its result.
func (p *Processor) Process(ctx context.Context, env domain.Envelope) Result {
	ch, err := p.Submit(ctx, env)
	if err != nil {
		return Result{Err: err}
	}
	res, ok := <-ch
	if !ok {
		return Result{Err: ctx.Err()}
	}
	return res
}

func (p *Processor) runSync(env domain.Envelope) Result {
	start := time.Now()
	if err := env.Validate(); err != nil {
		return p.fail(&ProcessingError{Phase: "envelope", Cause: err})
	}

	records, rejected, err := p.normalizeChunk(0, env.Items())
	if err != nil {
		return p.fail(err)
	}
	return p.succeed(records, rejected, false, start)
}

func (p *Processor) runChunked(ctx context.Context, env domain.Envelope) Result {
	start := time.Now()
	if err := env.Validate(); err != nil {
		return p.fail(&ProcessingError{Phase: "envelope", Cause: err})
	}

	chunks := split(env.Items(), p.chunks)
	records := make([][]domain.IncidentRecord, len(chunks))
	rejected := make([]int, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var err error
			records[i], rejected[i], err = p.normalizeChunk(i, chunk)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return p.fail(err)
	}

	var all []domain.IncidentRecord
	total := 0
	for i := range chunks {
		all = append(all, records[i]...)
		total += rejected[i]
	}
	return p.succeed(all, total, true, start)
}

// normalizeChunk turns a panic into a ProcessingError so a bad item can
// never take the process down.
func (p *Processor) normalizeChunk(index int, items []json.RawMessage) (records []domain.IncidentRecord, rejected int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProcessingError{Phase: fmt.Sprintf("chunk %d", index), Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	records = make([]domain.IncidentRecord, 0, len(items))
	for i, raw := range items {
		rec, nerr := p.normalizer.Normalize(raw)
		if nerr != nil {
			rejected++
			p.logger.Debug("rejected feed item", "chunk", index, "index", i, "error", nerr)
			continue
		}
		records = append(records, rec)
	}
	return records, rejected, nil
}

func (p *Processor) succeed(records []domain.IncidentRecord, rejected int, offloaded bool, start time.Time) Result {
	deduped := domain.DedupeByID(records)
	if dupes := len(records) - len(deduped); dupes > 0 {
		p.logger.Debug("dropped duplicate ids", "count", dupes)
	}
	p.metrics.ItemsNormalized.Add(float64(len(deduped)))
	p.metrics.ItemsRejected.Add(float64(rejected))
	p.metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	return Result{Records: deduped, Rejected: rejected, Offloaded: offloaded}
}

func (p *Processor) fail(err error) Result {
	p.metrics.ProcessingErrors.Inc()
	return Result{Err: err}
}

// split partitions items into at most n contiguous chunks of ceil(len/n).
func split(items []json.RawMessage, n int) [][]json.RawMessage {
	if len(items) == 0 {
		return nil
	}
	size := (len(items) + n - 1) / n
	chunks := make([][]json.RawMessage, 0, n)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
