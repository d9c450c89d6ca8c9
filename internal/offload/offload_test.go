package offload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func item(id string, lon, lat float64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"_id":%q,"location":{"geometry":{"coordinates":[%v,%v]}}}`, id, lon, lat))
}

func envelopeOf(items ...json.RawMessage) domain.Envelope {
	if items == nil {
		items = []json.RawMessage{}
	}
	return domain.Envelope{FetchedAt: "t1", Data: domain.EnvelopeData{Items: items}}
}

func newProcessor(opts Options) *Processor {
	return New(domain.NewNormalizer(domain.ThailandBounds()), opts, discardLogger(), observability.NewMetricsForTesting())
}

func recordIDs(records []domain.IncidentRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

// --- mocks ---

type panickingNormalizer struct {
	inner   ItemNormalizer
	panicOn string
}

func (p *panickingNormalizer) Normalize(raw json.RawMessage) (domain.IncidentRecord, error) {
	rec, err := p.inner.Normalize(raw)
	if err == nil && rec.ID == p.panicOn {
		panic("normalizer exploded")
	}
	return rec, err
}

// --- tests ---

func TestSplit(t *testing.T) {
	items := make([]json.RawMessage, 10)
	chunks := split(items, 4)

	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		sizes[i] = len(c)
	}
	assert.Equal(t, []int{3, 3, 3, 1}, sizes)
	assert.Len(t, split(items[:2], 4), 2)
	assert.Nil(t, split(nil, 4))
}

func TestProcess_ChunkedPreservesOrderAndRejects(t *testing.T) {
	var items []json.RawMessage
	var want []string
	for i := range 23 {
		id := fmt.Sprintf("r%02d", i)
		if i%5 == 0 {
			items = append(items, item(id, 999, 999))
			continue
		}
		items = append(items, item(id, 100.4+float64(i)/1000, 7.0))
		want = append(want, id)
	}

	p := newProcessor(Options{})
	res := p.Process(context.Background(), envelopeOf(items...))

	require.NoError(t, res.Err)
	assert.True(t, res.Offloaded)
	assert.Equal(t, 5, res.Rejected)
	if diff := cmp.Diff(want, recordIDs(res.Records)); diff != "" {
		t.Errorf("record order mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, float64(len(want)), testutil.ToFloat64(p.metrics.ItemsNormalized), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(p.metrics.ItemsRejected), 0)
}

func TestProcess_FallbackMatchesOffloaded(t *testing.T) {
	items := []json.RawMessage{
		item("a", 100.47, 7.00),
		item("b", 999, 999),
		item("c", 100.48, 7.01),
		item("a", 100.49, 7.02),
		item("d", 100.50, 7.03),
	}

	fast := newProcessor(Options{}).Process(context.Background(), envelopeOf(items...))
	slow := newProcessor(Options{Disabled: true})
	sync := slow.Process(context.Background(), envelopeOf(items...))

	require.NoError(t, fast.Err)
	require.NoError(t, sync.Err)
	assert.False(t, sync.Offloaded)
	assert.Equal(t, []string{"a", "c", "d"}, recordIDs(sync.Records))
	assert.Equal(t, recordIDs(fast.Records), recordIDs(sync.Records))
	if diff := cmp.Diff(fast.Records, sync.Records); diff != "" {
		t.Errorf("fallback differs from offloaded result (-offloaded +sync):\n%s", diff)
	}
	assert.InDelta(t, 1, testutil.ToFloat64(slow.metrics.ProcessingFallback), 0)
}

func TestProcess_PanicBecomesProcessingError(t *testing.T) {
	for _, disabled := range []bool{false, true} {
		t.Run(fmt.Sprintf("disabled=%v", disabled), func(t *testing.T) {
			norm := &panickingNormalizer{inner: domain.NewNormalizer(domain.ThailandBounds()), panicOn: "boom"}
			p := New(norm, Options{Disabled: disabled}, discardLogger(), observability.NewMetricsForTesting())

			res := p.Process(context.Background(), envelopeOf(item("ok", 100.4, 7.0), item("boom", 100.5, 7.0)))

			require.Error(t, res.Err)
			var pe *ProcessingError
			require.ErrorAs(t, res.Err, &pe)
			assert.Contains(t, pe.Error(), "normalizer exploded")
			assert.Nil(t, res.Records)
			assert.InDelta(t, 1, testutil.ToFloat64(p.metrics.ProcessingErrors), 0)
		})
	}
}

func TestProcess_EnvelopeWithoutItems(t *testing.T) {
	res := newProcessor(Options{}).Process(context.Background(), domain.Envelope{FetchedAt: "t"})

	var pe *ProcessingError
	require.ErrorAs(t, res.Err, &pe)
	assert.ErrorIs(t, res.Err, domain.ErrEnvelopeShape)
}

func TestProcess_EmptyList(t *testing.T) {
	res := newProcessor(Options{}).Process(context.Background(), envelopeOf())

	require.NoError(t, res.Err)
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)
}

func TestSubmit_OneJobInFlight(t *testing.T) {
	p := newProcessor(Options{})
	ctx := context.Background()

	first, err := p.Submit(ctx, envelopeOf(item("a", 100.4, 7.0)))
	require.NoError(t, err)

	// The first result has not been received, so a second submit waits.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = p.Submit(waitCtx, envelopeOf(item("b", 100.4, 7.0)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	res := <-first
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"a"}, recordIDs(res.Records))

	require.Eventually(t, func() bool {
		tryCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		ch, err := p.Submit(tryCtx, envelopeOf(item("c", 100.4, 7.0)))
		if err != nil {
			return false
		}
		got := <-ch
		return len(got.Records) == 1 && got.Records[0].ID == "c"
	}, time.Second, 10*time.Millisecond)
}

func TestSubmit_AbandonedResultReleasesSlot(t *testing.T) {
	p := newProcessor(Options{})
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := p.Submit(ctx, envelopeOf(item("a", 100.4, 7.0)))
	require.NoError(t, err)
	cancel()

	// Either the result raced in or the channel closed empty; both free the slot.
	for range ch {
	}

	res := p.Process(context.Background(), envelopeOf(item("b", 100.4, 7.0)))
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"b"}, recordIDs(res.Records))
}

func TestProcessingError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root")
	err := &ProcessingError{Phase: "chunk 2", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "processing failed in chunk 2: root", err.Error())
}
