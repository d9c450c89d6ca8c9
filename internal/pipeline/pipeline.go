// Package pipeline drives the load cycle: fetch or read from cache,
// normalize, filter, then hand the filtered records to the marker renderer
// and the notes paginator.
//
// The Controller is the only writer of the record set, the filtered set and
// the filter predicate. Normalization results arrive over a channel and are
// applied here; render jobs and page sinks only receive copies.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/cache"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/notes"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/offload"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/render"
)

// Default timings.
const (
	DefaultPollInterval   = 5 * time.Minute
	DefaultFilterDebounce = 300 * time.Millisecond
	UpdateNoticeDuration  = 4 * time.Second
)

// Fetcher retrieves the feed.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.Envelope, error)
	// FetchToken retrieves only the freshness token.
	FetchToken(ctx context.Context) (domain.Token, error)
}

// EnvelopeCache is the best-effort envelope cache.
type EnvelopeCache interface {
	Get(ctx context.Context) (cache.Entry, bool)
	Put(ctx context.Context, env domain.Envelope) cache.PutResult
	Clear(ctx context.Context)
}

// Processor normalizes envelopes off the caller's goroutine.
type Processor interface {
	Submit(ctx context.Context, env domain.Envelope) (<-chan offload.Result, error)
}

// MarkerRenderer materializes filtered records as map markers.
type MarkerRenderer interface {
	Render(ctx context.Context, records []domain.IncidentRecord) *render.Job
	Focus(id string) bool
	ZoomToArea(records []domain.IncidentRecord, subdistrict string) bool
	Stop()
}

// NotesPaginator keeps the note list in sync with the filtered records.
type NotesPaginator interface {
	SetRecords(filtered []domain.IncidentRecord) notes.Page
	Refresh() notes.Page
	HideSurface()
	ShowSurface() (window geo.Bounds, ok bool)
}

// TransportError is a failed fetch or an unreadable envelope.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "load feed: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Deps are the collaborators a Controller drives.
type Deps struct {
	Feed      Fetcher
	Cache     EnvelopeCache
	Processor Processor
	Renderer  MarkerRenderer
	Notes     NotesPaginator
	// Surface is re-centred on the frozen window when the map is shown
	// again. May be nil.
	Surface  render.Surface
	Notifier Notifier
}

// Options configures a Controller. Zero durations take the defaults.
type Options struct {
	PollInterval     time.Duration
	FilterDebounce   time.Duration
	ViewportDebounce time.Duration
	CacheEnabled     bool
}

// Controller runs load cycles and owns the derived state.
type Controller struct {
	deps    Deps
	opts    Options
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	filterDebounce   *Debouncer
	viewportDebounce *Debouncer
	ready            atomic.Bool

	// publishMu orders filtered-set publication so renders and pages
	// never go out older than the state they were derived from.
	publishMu sync.Mutex

	mu            sync.Mutex
	state         State
	cycleID       string
	records       []domain.IncidentRecord
	filtered      []domain.IncidentRecord
	predicate     domain.FilterPredicate
	predicateSet  bool
	victimOptions []string
	areaOptions   []domain.AreaOption
	token         domain.Token
	haveToken     bool
	lastUpdated   time.Time
	fromCache     bool
	lastErr       error
	cacheEnabled  bool
	mapHidden     bool
	notice        string
	noticeUntil   time.Time
	rejected      int
	loadDuration  time.Duration
}

// New creates a Controller in the Idle state.
func New(deps Deps, opts Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FilterDebounce <= 0 {
		opts.FilterDebounce = DefaultFilterDebounce
	}
	if opts.ViewportDebounce <= 0 {
		opts.ViewportDebounce = DefaultFilterDebounce
	}
	if deps.Notifier == nil {
		deps.Notifier = NewLogNotifier(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		deps:         deps,
		opts:         opts,
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateIdle,
		predicate:    domain.DefaultFilterPredicate(nil),
		cacheEnabled: opts.CacheEnabled,
	}
	c.filterDebounce = NewDebouncer(clock, opts.FilterDebounce, c.refilter)
	c.viewportDebounce = NewDebouncer(clock, opts.ViewportDebounce, c.refreshNotes)
	metrics.LoadState.Set(float64(StateIdle))
	return c
}

// Close stops pending debounced work and the running render job.
func (c *Controller) Close() {
	c.filterDebounce.Cancel()
	c.viewportDebounce.Cancel()
	c.cancel()
	c.deps.Renderer.Stop()
}

// CheckReadiness returns nil once a load cycle has succeeded.
func (c *Controller) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no flood data loaded yet")
	}
	return nil
}

// Load runs one load cycle. Unless force is set and the cache is enabled,
// a fresh cached envelope is used instead of the network. On failure the
// previous records stay in place and the error is also reported to the
// Notifier.
func (c *Controller) Load(ctx context.Context, force bool) error {
	cycleID := uuid.NewString()
	logger := c.logger.With("cycle_id", cycleID)
	start := c.clock.Now()
	c.setLoading(cycleID)

	env, fromCache, err := c.acquire(ctx, force, logger)
	if err != nil {
		terr := &TransportError{Err: err}
		logger.Error("load failed", "error", terr)
		c.fail(terr)
		c.deps.Notifier.Alert("โหลดข้อมูลไม่สำเร็จ", terr)
		return terr
	}
	c.recordToken(env.FetchedAt, fromCache)

	res, err := c.normalize(ctx, env)
	if err != nil {
		logger.Error("processing failed", "error", err)
		c.fail(err)
		c.deps.Notifier.Alert("ประมวลผลข้อมูลไม่สำเร็จ", err)
		return err
	}

	c.apply(res, c.clock.Since(start))
	logger.Info("load complete",
		"records", len(res.Records),
		"rejected", res.Rejected,
		"from_cache", fromCache,
		"offloaded", res.Offloaded,
	)
	return nil
}

func (c *Controller) acquire(ctx context.Context, force bool, logger *slog.Logger) (domain.Envelope, bool, error) {
	if !force && c.CacheEnabled() {
		if entry, ok := c.deps.Cache.Get(ctx); ok {
			logger.Debug("using cached envelope", "age", entry.Age)
			return entry.Envelope, true, nil
		}
	}

	env, err := c.deps.Feed.Fetch(ctx)
	if err != nil {
		return domain.Envelope{}, false, err
	}
	if c.CacheEnabled() {
		if result := c.deps.Cache.Put(ctx, env); result != cache.PutStored {
			logger.Warn("envelope not cached as-is", "result", result.String())
		}
	}
	return env, false, nil
}

func (c *Controller) normalize(ctx context.Context, env domain.Envelope) (offload.Result, error) {
	results, err := c.deps.Processor.Submit(ctx, env)
	if err != nil {
		return offload.Result{}, fmt.Errorf("submit envelope: %w", err)
	}
	res, ok := <-results
	if !ok {
		return offload.Result{}, fmt.Errorf("normalize envelope: %w", ctx.Err())
	}
	if res.Err != nil {
		return offload.Result{}, res.Err
	}
	return res, nil
}

func (c *Controller) apply(res offload.Result, took time.Duration) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	c.records = res.Records
	c.rejected = res.Rejected
	c.loadDuration = took
	c.victimOptions = victimOptions(res.Records)
	c.areaOptions = domain.AreaOptions(res.Records)
	c.predicate = c.reconcilePredicate()
	c.filtered = domain.Filter(c.records, c.predicate)
	c.state = StateReady
	c.lastErr = nil
	filtered := c.filtered
	c.mu.Unlock()

	c.ready.Store(true)
	c.metrics.LoadState.Set(float64(StateReady))
	c.metrics.RecordsLoaded.Set(float64(len(res.Records)))

	// A load supersedes any pending predicate refilter.
	c.filterDebounce.Cancel()
	c.publish(filtered)
}

// reconcilePredicate keeps the user's victim selection across loads,
// dropping types that vanished. With nothing selected, or before the first
// user change, every option is selected.
func (c *Controller) reconcilePredicate() domain.FilterPredicate {
	if !c.predicateSet {
		return c.predicate.WithVictims(c.victimOptions)
	}
	var kept []string
	for _, v := range c.victimOptions {
		if c.predicate.HasVictim(v) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		kept = c.victimOptions
	}
	return c.predicate.WithVictims(kept)
}

// victimOptions adds the general type when some record lists no victim
// type, so those records stay selectable.
func victimOptions(records []domain.IncidentRecord) []string {
	options := domain.VictimTypeOptions(records)
	if slices.Contains(options, domain.GeneralVictimType) {
		return options
	}
	for _, r := range records {
		if len(r.VictimTypes) == 0 {
			return append(options, domain.GeneralVictimType)
		}
	}
	return options
}

// publish hands filtered to the renderer and paginator. Callers hold
// publishMu.
func (c *Controller) publish(filtered []domain.IncidentRecord) {
	c.metrics.RecordsFiltered.Set(float64(len(filtered)))
	c.deps.Renderer.Render(c.ctx, filtered)
	c.deps.Notes.SetRecords(filtered)
}

func (c *Controller) setLoading(cycleID string) {
	c.mu.Lock()
	c.state = StateLoading
	c.cycleID = cycleID
	c.mu.Unlock()
	c.metrics.LoadState.Set(float64(StateLoading))
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.state = StateFailed
	c.lastErr = err
	c.mu.Unlock()
	c.metrics.LoadState.Set(float64(StateFailed))
}

func (c *Controller) recordToken(token domain.Token, fromCache bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.haveToken = token != ""
	c.lastUpdated = c.clock.Now()
	c.fromCache = fromCache
}

// State returns the current load state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Records returns the last successfully loaded records.
func (c *Controller) Records() []domain.IncidentRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records
}

// Filtered returns the records passing the current predicate.
func (c *Controller) Filtered() []domain.IncidentRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filtered
}

// Token returns the last recorded freshness token.
func (c *Controller) Token() (domain.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.haveToken
}

// CacheEnabled reports whether loads may use the cache.
func (c *Controller) CacheEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cacheEnabled
}

// SetCacheEnabled toggles cache use. Disabling also clears the cache.
func (c *Controller) SetCacheEnabled(ctx context.Context, enabled bool) {
	c.mu.Lock()
	c.cacheEnabled = enabled
	c.mu.Unlock()
	if !enabled {
		c.deps.Cache.Clear(ctx)
	}
}

// ClearCache drops the cached envelope.
func (c *Controller) ClearCache(ctx context.Context) {
	c.deps.Cache.Clear(ctx)
}
