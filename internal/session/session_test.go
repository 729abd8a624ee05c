package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otboard/internal/domain"
	"otboard/internal/filter"
	"otboard/internal/hub"
	"otboard/internal/meta"
	"otboard/internal/panel"
)

// slowFetcher blocks fetches for filters without a date range until the
// gate is closed; everything else resolves immediately. The payload
// echoes the filter's from-date, so a test can tell which generation a
// frame came from.
type slowFetcher struct {
	gate  chan struct{}
	calls atomic.Int64
}

func (f *slowFetcher) Fetch(ctx context.Context, p string, flt domain.Filter, view domain.ViewMetric) (any, error) {
	f.calls.Add(1)
	if flt.DateFrom == "" {
		<-f.gate
	}
	return map[string]string{"panel": p, "from": flt.DateFrom}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// nextFrame pops the next frame of the given type, skipping others.
func nextFrame(t *testing.T, client *hub.Client, frameType string) Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-client.Send:
			var frame Frame
			require.NoError(t, json.Unmarshal(data, &frame))
			if frame.Type == frameType {
				return frame
			}
		case <-deadline:
			t.Fatalf("no %s frame within deadline", frameType)
		}
	}
}

func TestStaleResultDropped(t *testing.T) {
	fetcher := &slowFetcher{gate: make(chan struct{})}
	client := hub.NewClient("c1", 64)
	sess := New(client, fetcher, meta.NewStore(), testLogger())

	ctx := context.Background()

	// First fetch hangs on the gate: its filter has no date range yet.
	sess.Subscribe(ctx, []string{panel.KPI})

	// A filter change supersedes it before it completes.
	sess.HandleIntent(ctx, filter.Intent{
		Type: filter.IntentSetDateRange,
		From: "2025-11-03",
		To:   "2025-11-03",
	})

	frame := nextFrame(t, client, FramePanel)
	assert.Equal(t, panel.KPI, frame.Panel)
	assert.Contains(t, string(frame.Payload), "2025-11-03")

	// Release the stale fetch; its result must not reach the client.
	close(fetcher.gate)

	select {
	case data := <-client.Send:
		var late Frame
		require.NoError(t, json.Unmarshal(data, &late))
		if late.Type == FramePanel {
			t.Fatalf("stale panel frame delivered: %s", late.Payload)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUnchangedIntentDoesNotRefetch(t *testing.T) {
	fetcher := &slowFetcher{gate: make(chan struct{})}
	close(fetcher.gate)
	client := hub.NewClient("c1", 64)
	sess := New(client, fetcher, meta.NewStore(), testLogger())

	ctx := context.Background()
	in := filter.Intent{Type: filter.IntentSetDateRange, From: "2025-11-03", To: "2025-11-03"}

	sess.Subscribe(ctx, []string{panel.KPI})
	sess.HandleIntent(ctx, in)
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 2 },
		2*time.Second, 10*time.Millisecond)

	// The repeated intent re-announces the filter but fetches nothing,
	// and no refresh goroutine is spawned.
	sess.HandleIntent(ctx, in)
	nextFrame(t, client, FrameFilter)
	assert.Equal(t, int64(2), fetcher.calls.Load())
}

func TestSubscribeReplaysCachedResult(t *testing.T) {
	fetcher := &slowFetcher{gate: make(chan struct{})}
	close(fetcher.gate)
	client := hub.NewClient("c1", 64)
	sess := New(client, fetcher, meta.NewStore(), testLogger())

	ctx := context.Background()
	sess.Subscribe(ctx, []string{panel.KPI})
	first := nextFrame(t, client, FramePanel)

	sess.Subscribe(ctx, []string{panel.KPI})
	second := nextFrame(t, client, FramePanel)

	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, int64(1), fetcher.calls.Load(), "replay must not refetch")
}

func TestSubscribeIgnoresUnknownPanels(t *testing.T) {
	fetcher := &slowFetcher{gate: make(chan struct{})}
	close(fetcher.gate)
	client := hub.NewClient("c1", 64)
	sess := New(client, fetcher, meta.NewStore(), testLogger())

	sess.Subscribe(context.Background(), []string{"minimap", "confetti"})

	assert.Empty(t, client.Panels())
	assert.Equal(t, int64(0), fetcher.calls.Load())
}

func TestViewMetricRefreshesHeatmapOnly(t *testing.T) {
	fetcher := &slowFetcher{gate: make(chan struct{})}
	close(fetcher.gate)
	client := hub.NewClient("c1", 64)
	sess := New(client, fetcher, meta.NewStore(), testLogger())

	ctx := context.Background()
	sess.Subscribe(ctx, []string{panel.KPI, panel.Heatmap})
	nextFrame(t, client, FramePanel)
	nextFrame(t, client, FramePanel)

	before := fetcher.calls.Load()
	sess.SetViewMetric(ctx, string(domain.ViewStress))

	frame := nextFrame(t, client, FramePanel)
	assert.Equal(t, panel.Heatmap, frame.Panel)
	assert.Equal(t, before+1, fetcher.calls.Load())
}

// viewFetcher blocks heatmap fetches under the punctuality view until
// the gate is closed and echoes the view each payload was built for.
type viewFetcher struct {
	gate  chan struct{}
	calls atomic.Int64
}

func (f *viewFetcher) Fetch(ctx context.Context, p string, flt domain.Filter, view domain.ViewMetric) (any, error) {
	f.calls.Add(1)
	if view == domain.ViewPunctuality {
		<-f.gate
	}
	return map[string]string{"panel": p, "view": string(view)}, nil
}

func TestSupersededViewResultDropped(t *testing.T) {
	fetcher := &viewFetcher{gate: make(chan struct{})}
	client := hub.NewClient("c1", 64)
	sess := New(client, fetcher, meta.NewStore(), testLogger())

	ctx := context.Background()

	// The initial heatmap fetch runs under the punctuality view and
	// hangs on the gate.
	sess.Subscribe(ctx, []string{panel.Heatmap})

	// The view switch re-encodes the heatmap without changing the
	// filter, so the generation stays put.
	sess.SetViewMetric(ctx, string(domain.ViewStress))

	frame := nextFrame(t, client, FramePanel)
	assert.Contains(t, string(frame.Payload), `"view":"stress"`)

	// Release the old fetch; its punctuality encoding must not
	// overwrite the stress frame.
	close(fetcher.gate)

	select {
	case data := <-client.Send:
		var late Frame
		require.NoError(t, json.Unmarshal(data, &late))
		if late.Type == FramePanel {
			t.Fatalf("superseded view frame delivered: %s", late.Payload)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestViewMetricRejectsInvalid(t *testing.T) {
	fetcher := &slowFetcher{gate: make(chan struct{})}
	close(fetcher.gate)
	client := hub.NewClient("c1", 64)
	sess := New(client, fetcher, meta.NewStore(), testLogger())

	sess.SetViewMetric(context.Background(), "sparkles")
	assert.Equal(t, int64(0), fetcher.calls.Load())
}

func TestStartAnnouncesFilter(t *testing.T) {
	fetcher := &slowFetcher{gate: make(chan struct{})}
	client := hub.NewClient("c1", 64)
	sess := New(client, fetcher, meta.NewStore(), testLogger())

	sess.Start()

	frame := nextFrame(t, client, FrameFilter)
	assert.True(t, strings.Contains(string(frame.Payload), `"granularity":"60"`))
}
