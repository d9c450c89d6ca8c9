package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	kafkaadapter "github.com/parkpoomdev/sos-thai-flood-map/internal/adapter/kafka"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/adapter/feed"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/cache"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/config"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/notes"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/offload"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/pipeline"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/prefs"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/render"
)

// app holds the wired components for one process.
type app struct {
	logger    *slog.Logger
	prefs     *prefs.Store
	store     *cache.Store
	surface   *render.MemorySurface
	renderer  *render.Renderer
	paginator *notes.Paginator
	ctrl      *pipeline.Controller
	closers   []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	clock := clockwork.NewRealClock()
	a := &app{logger: logger}

	p, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		return nil, err
	}
	a.prefs = p

	storage, closer, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.store = cache.NewStore(storage, clock, logger, metrics)

	a.surface = render.NewMemorySurface()
	var surface render.Surface = a.surface
	if cfg.KafkaEnabled {
		published := kafkaadapter.NewSurface(a.surface, cfg, clock, logger, metrics)
		a.closers = append(a.closers, published)
		surface = published
		logger.Info("marker publishing enabled", "topic", cfg.KafkaMarkerTopic, "brokers", cfg.KafkaBrokers)
	}

	a.renderer = render.NewRenderer(surface, render.Options{
		OnProgress: func(pr render.Progress) {
			logger.Debug("rendering markers", "done", pr.Done, "total", pr.Total)
		},
	}, clock, logger, metrics)
	a.paginator = notes.New(a.surface, func(page notes.Page) {
		logger.Debug("notes page", "shown", len(page.Items), "total", page.Total, "frozen", page.Frozen)
	})

	processor := offload.New(domain.NewNormalizer(cfg.Bounds()), offload.Options{Disabled: !cfg.OffloadEnabled}, logger, metrics)
	a.ctrl = pipeline.New(pipeline.Deps{
		Feed:      feed.NewClient(cfg.FeedURL, cfg.FeedRateLimit, logger, metrics),
		Cache:     a.store,
		Processor: processor,
		Renderer:  a.renderer,
		Notes:     a.paginator,
		Surface:   surface,
	}, pipeline.Options{
		PollInterval:     cfg.PollInterval,
		FilterDebounce:   cfg.FilterDebounce,
		ViewportDebounce: cfg.FilterDebounce,
		CacheEnabled:     cfg.CacheEnabled && p.Get().UseCache,
	}, clock, logger, metrics)

	a.surface.OnMove(a.ctrl.ViewportChanged)
	return a, nil
}

// openStorage opens the configured cache backend. The closer is nil for
// the in-memory backend.
func openStorage(ctx context.Context, cfg *config.Config) (cache.Storage, io.Closer, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendSQLite:
		s, err := cache.OpenSQLiteStorage(cfg.CacheSQLitePath, cfg.CacheQuotaBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		return s, s, nil
	case config.CacheBackendRedis:
		s, err := cache.OpenRedisStorage(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cache.FreshnessWindow)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis cache: %w", err)
		}
		return s, s, nil
	default:
		return cache.NewMemoryStorage(cfg.CacheQuotaBytes), nil, nil
	}
}

func (a *app) Close() {
	a.ctrl.Close()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}
