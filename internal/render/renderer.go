// Package render places incident markers on a map surface in batches.
//
// A render job materializes markers a batch at a time and yields between
// batches so the surface stays responsive. Starting a new job cancels the
// previous one and waits for it to stop before the layer is cleared, so no
// marker from a superseded job survives on the surface.
package render

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
)

// Render tuning defaults.
const (
	DefaultBatchSize         = 100
	DefaultProgressThreshold = 500
	DefaultFitThreshold      = 1000
	DefaultFitPadding        = 50
	FrameInterval            = 16 * time.Millisecond
)

// Focus and area zoom settings.
const (
	FocusMinZoom      = 17
	AreaMaxZoom       = 15
	AreaDenseCount    = 50
	AreaDensePadding  = 100
	AreaSparsePadding = 150
)

// YieldFunc is called between batches. Returning an error stops the job.
type YieldFunc func(ctx context.Context) error

// Progress reports how many of a job's markers have been added.
type Progress struct {
	Done  int
	Total int
}

// Options configures a Renderer. Zero fields take the defaults.
type Options struct {
	BatchSize         int
	ProgressThreshold int
	FitThreshold      int
	FitPadding        int
	// Yield defaults to waiting one frame on the renderer's clock.
	Yield YieldFunc
	// OnProgress is called after each batch of a job whose size exceeds
	// ProgressThreshold. The final call has Done == Total.
	OnProgress func(Progress)
}

func (o Options) withDefaults(clock clockwork.Clock) Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ProgressThreshold <= 0 {
		o.ProgressThreshold = DefaultProgressThreshold
	}
	if o.FitThreshold <= 0 {
		o.FitThreshold = DefaultFitThreshold
	}
	if o.FitPadding <= 0 {
		o.FitPadding = DefaultFitPadding
	}
	if o.Yield == nil {
		o.Yield = frameYield(clock)
	}
	return o
}

func frameYield(clock clockwork.Clock) YieldFunc {
	return func(ctx context.Context) error {
		t := clock.NewTimer(FrameInterval)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Chan():
			return nil
		}
	}
}

// Renderer owns the marker layer of a Surface.
type Renderer struct {
	surface Surface
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	current *Job
}

// NewRenderer creates a Renderer drawing on surface.
func NewRenderer(surface Surface, opts Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Renderer {
	return &Renderer{
		surface: surface,
		opts:    opts.withDefaults(clock),
		logger:  logger,
		metrics: metrics,
	}
}

// Render cancels any running job, clears the layer and starts rendering
// records. It returns once the new job has started.
func (r *Renderer) Render(ctx context.Context, records []domain.IncidentRecord) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old := r.current; old != nil {
		old.Cancel()
		<-old.done
	}
	r.surface.ClearMarkers()

	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ctx:     jobCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		records: records,
		index:   make(map[string]Marker, len(records)),
	}
	r.current = job
	go r.run(job)
	return job
}

// Current returns the most recently started job, or nil.
func (r *Renderer) Current() *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Stop cancels the running job and waits for it to finish.
func (r *Renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.Cancel()
		<-r.current.done
	}
}

func (r *Renderer) run(j *Job) {
	defer close(j.done)
	defer j.cancel()

	total := len(j.records)
	showProgress := total > r.opts.ProgressThreshold
	points := make([]geo.Point, 0, total)

	for start := 0; start < total; start += r.opts.BatchSize {
		if j.ctx.Err() != nil {
			j.cancelled.Store(true)
			r.finish(j, "cancelled", showProgress)
			return
		}
		end := min(start+r.opts.BatchSize, total)
		batch := make([]Marker, 0, end-start)
		for _, rec := range j.records[start:end] {
			m := NewMarker(rec)
			batch = append(batch, m)
			points = append(points, m.Position)
		}

		r.surface.AddMarkers(batch)
		j.addIndexed(batch)
		r.metrics.MarkersRendered.Add(float64(len(batch)))

		if showProgress {
			r.reportProgress(Progress{Done: end, Total: total})
		}
		if end < total {
			if err := r.opts.Yield(j.ctx); err != nil {
				j.cancelled.Store(true)
				r.finish(j, "cancelled", showProgress)
				return
			}
		}
	}

	if total > 0 && total < r.opts.FitThreshold {
		r.surface.FitBounds(geo.BoundsOf(points), FitOptions{Padding: r.opts.FitPadding})
	}
	r.finish(j, "completed", showProgress)
}

func (r *Renderer) finish(j *Job, result string, showProgress bool) {
	r.metrics.RenderJobs.WithLabelValues(result).Inc()
	if showProgress {
		r.metrics.RenderProgress.Set(0)
	}
	r.logger.Debug("render job finished",
		"result", result,
		"rendered", j.Rendered(),
		"total", len(j.records),
	)
}

func (r *Renderer) reportProgress(p Progress) {
	r.metrics.RenderProgress.Set(float64(p.Done) / float64(p.Total))
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(p)
	}
}

// Focus centres the map on the marker for id and opens its popup. It
// returns false when the current job has not materialized that marker.
func (r *Renderer) Focus(id string) bool {
	job := r.Current()
	if job == nil {
		return false
	}
	m, ok := job.Marker(id)
	if !ok {
		return false
	}
	r.surface.SetView(m.Position, max(r.surface.Zoom()+2, FocusMinZoom))
	r.surface.OpenPopup(id)
	return true
}

// ZoomToArea fits the map to the records in subdistrict. It returns false
// when no record matches.
func (r *Renderer) ZoomToArea(records []domain.IncidentRecord, subdistrict string) bool {
	var points []geo.Point
	for _, rec := range records {
		if rec.Location.Subdistrict == subdistrict {
			points = append(points, rec.Coordinates)
		}
	}
	if len(points) == 0 {
		return false
	}
	padding := AreaSparsePadding
	if len(points) > AreaDenseCount {
		padding = AreaDensePadding
	}
	r.surface.FitBounds(geo.BoundsOf(points), FitOptions{Padding: padding, MaxZoom: AreaMaxZoom})
	return true
}

// Job is one cancellable render pass.
type Job struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	cancelled atomic.Bool
	records   []domain.IncidentRecord

	mu    sync.RWMutex
	index map[string]Marker
}

// Cancel stops the job after its current batch. It does not wait.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
	j.cancel()
}

// Cancelled reports whether the job stopped, or was told to stop, before
// adding all of its markers.
func (j *Job) Cancelled() bool { return j.cancelled.Load() }

// Done is closed when the job has stopped.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job stops or ctx ends.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rendered returns how many markers the job has added so far.
func (j *Job) Rendered() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.index)
}

// Marker returns the materialized marker for id.
func (j *Job) Marker(id string) (Marker, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	m, ok := j.index[id]
	return m, ok
}

func (j *Job) addIndexed(batch []Marker) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, m := range batch {
		j.index[m.ID] = m
	}
}
