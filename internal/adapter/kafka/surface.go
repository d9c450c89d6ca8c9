// Package kafka mirrors the marker layer onto a Kafka topic so an external
// map frontend can follow what the renderer draws.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/config"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/render"
)

// Event types.
const (
	EventMarker = "marker"
	EventClear  = "clear"
)

// LayerEvent is one message on the marker topic. Generation increases on
// every clear; consumers drop markers from older generations.
type LayerEvent struct {
	Type        string         `json:"type"`
	Generation  uint64         `json:"generation"`
	Marker      *render.Marker `json:"marker,omitempty"`
	PublishedAt time.Time      `json:"published_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Surface wraps a render.Surface and publishes marker batches and layer
// clears. Publishing never blocks or fails rendering.
type Surface struct {
	render.Surface
	writer     messageWriter
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	generation atomic.Uint64
}

// NewSurface creates a publishing Surface for the configured marker topic.
func NewSurface(inner render.Surface, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Surface {
	s := &Surface{
		Surface: inner,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
	s.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaMarkerTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   s.completed,
	}
	return s
}

func newSurfaceWithWriter(inner render.Surface, w messageWriter, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Surface {
	return &Surface{Surface: inner, writer: w, clock: clock, logger: logger, metrics: metrics}
}

// AddMarkers adds the batch to the wrapped surface and publishes it.
func (s *Surface) AddMarkers(markers []render.Marker) {
	s.Surface.AddMarkers(markers)
	if len(markers) == 0 {
		return
	}

	gen := s.generation.Load()
	now := s.clock.Now()
	msgs := make([]kafkago.Message, 0, len(markers))
	for i := range markers {
		msg, err := serializeToMessage(LayerEvent{
			Type:        EventMarker,
			Generation:  gen,
			Marker:      &markers[i],
			PublishedAt: now,
		})
		if err != nil {
			s.logger.Warn("skipping marker", "error", err, "record_id", markers[i].ID)
			continue
		}
		msgs = append(msgs, msg)
	}
	s.write(msgs)
}

// ClearMarkers clears the wrapped surface and publishes a clear event
// starting a new generation.
func (s *Surface) ClearMarkers() {
	s.Surface.ClearMarkers()
	gen := s.generation.Add(1)
	msg, err := serializeToMessage(LayerEvent{
		Type:        EventClear,
		Generation:  gen,
		PublishedAt: s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn("skipping clear event", "error", err)
		return
	}
	s.write([]kafkago.Message{msg})
}

// OnMove forwards to the wrapped surface when it reports movement.
func (s *Surface) OnMove(fn func()) {
	if n, ok := s.Surface.(render.MoveNotifier); ok {
		n.OnMove(fn)
	}
}

func (s *Surface) Close() error {
	return s.writer.Close()
}

func (s *Surface) write(msgs []kafkago.Message) {
	if len(msgs) == 0 {
		return
	}
	if err := s.writer.WriteMessages(context.Background(), msgs...); err != nil {
		s.completed(msgs, err)
	}
}

// completed reports async write results.
func (s *Surface) completed(msgs []kafkago.Message, err error) {
	if err == nil {
		return
	}
	s.metrics.MarkerPublishErrors.Inc()
	s.logger.Warn("publish marker events failed", "error", err, "messages", len(msgs))
}

// serializeToMessage marshals a LayerEvent into a Kafka message keyed by
// record id, or by "layer" for clears.
func serializeToMessage(ev LayerEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize layer event: %w", err)
	}
	key := "layer"
	if ev.Marker != nil {
		key = ev.Marker.ID
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "generation", Value: []byte(strconv.FormatUint(ev.Generation, 10))},
			{Key: "published_at", Value: []byte(ev.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
