package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trend-monitor/internal/dedup"
	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/forward"
	"solana-trend-monitor/internal/storage/memory"
	"solana-trend-monitor/internal/tracker"
)

const (
	mintA = "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"
	mintB = "So11111111111111111111111111111111111111112"
)

var now = time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

// recordingSender records sends per destination and fails destinations in failing.
type recordingSender struct {
	mu      sync.Mutex
	sends   map[string][]string
	failing map[string]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sends: make(map[string][]string), failing: make(map[string]bool)}
}

func (s *recordingSender) Connected() bool { return true }
func (s *recordingSender) Connect(_ context.Context) error { return nil }

func (s *recordingSender) Send(_ context.Context, destination, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[destination] {
		return errors.New("chat not found")
	}
	s.sends[destination] = append(s.sends[destination], text)
	return nil
}

func (s *recordingSender) sent(destination string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sends[destination]...)
}

type fixedQuoter struct {
	mu     sync.Mutex
	quotes map[string][]domain.Quote
}

func (q *fixedQuoter) Quote(_ context.Context, id string) domain.Quote {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.quotes[id]
	if len(list) == 0 {
		return domain.Quote{}
	}
	head := list[0]
	if len(list) > 1 {
		q.quotes[id] = list[1:]
	}
	return head
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func (r *sleepRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waits)
}

type harness struct {
	sender     *recordingSender
	cache      *dedup.MemoryCache
	store      *memory.TrackingStore
	registry   *tracker.Registry
	dispatcher *Dispatcher
	sendSleeps *sleepRecorder
}

func newHarness(t *testing.T, quotes map[string][]domain.Quote) *harness {
	t.Helper()

	h := &harness{
		sender:     newRecordingSender(),
		cache:      dedup.NewMemoryCache(time.Hour).WithClock(func() time.Time { return now }),
		store:      memory.NewTrackingStore(),
		sendSleeps: &sleepRecorder{},
	}

	retrySleeps := &sleepRecorder{}
	fwd := forward.New(h.sender, forward.Config{MaxAttempts: 3, RetryDelay: 5 * time.Second},
		forward.WithSleep(retrySleeps.Sleep),
		forward.WithNotifier(nil),
	)

	offsetSleeps := &sleepRecorder{}
	sampler := tracker.NewSampler(&fixedQuoter{quotes: quotes}, h.store,
		[]domain.Offset{{Name: "1m", After: time.Minute}, {Name: "5m", After: 5 * time.Minute}},
		tracker.WithSleep(offsetSleeps.Sleep),
		tracker.WithClock(func() time.Time { return now }),
		tracker.WithLocation(time.UTC),
	)
	h.registry = tracker.NewRegistry(sampler, 8, nil)
	t.Cleanup(h.registry.Abandon)

	h.dispatcher = New(Config{Destinations: []string{"@alpha", "@beta"}, SendDelay: 2 * time.Second},
		h.cache, fwd, h.registry,
		WithSleep(h.sendSleeps.Sleep),
		WithClock(func() time.Time { return now }),
	)
	return h
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.registry.Drain(ctx))
}

func TestHandleMessage_ForwardsAndTracks(t *testing.T) {
	h := newHarness(t, map[string][]domain.Quote{
		mintA: {{Price: 1.0, MarketCap: 1000}, {Price: 1.2, MarketCap: 1200}, {Price: 0.8, MarketCap: 800}},
	})
	ctx := context.Background()

	sum, err := h.dispatcher.HandleMessage(ctx, domain.Message{Origin: "@calls", Text: "💊 " + mintA, ReceivedAt: now})
	require.NoError(t, err)
	assert.Equal(t, Summary{Candidates: 1, Tracked: 1, Delivered: 2}, sum)

	assert.Equal(t, []string{mintA}, h.sender.sent("@alpha"))
	assert.Equal(t, []string{mintA}, h.sender.sent("@beta"))
	assert.Equal(t, 1, h.sendSleeps.count())
	assert.Equal(t, 2, h.cache.Len())

	h.drain(t)
	records, err := h.store.GetByDetectionRange(ctx, now.UnixMilli(), now.UnixMilli())
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, 1.0, r.BaselinePrice)
	assert.Equal(t, 1000.0, r.BaselineMarketCap)
	assert.InDelta(t, 20.0, r.Sample("1m").GainPct, 1e-9)
	assert.InDelta(t, -20.0, r.Sample("5m").GainPct, 1e-9)
}

func TestHandleMessage_DedupWithinWindow(t *testing.T) {
	h := newHarness(t, map[string][]domain.Quote{mintA: {{Price: 1}}})
	ctx := context.Background()
	msg := domain.Message{Origin: "@calls", Text: "💹 " + mintA, ReceivedAt: now}

	_, err := h.dispatcher.HandleMessage(ctx, msg)
	require.NoError(t, err)

	sum, err := h.dispatcher.HandleMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 0, sum.Delivered)
	assert.Equal(t, 1, sum.Tracked)

	assert.Len(t, h.sender.sent("@alpha"), 1)
	assert.Len(t, h.sender.sent("@beta"), 1)
	assert.Equal(t, 1, h.sendSleeps.count(), "no delay when nothing was sent")
}

func TestHandleMessage_OverlappingPatternsForwardOnce(t *testing.T) {
	h := newHarness(t, nil)
	text := "💊 " + mintA + "\nchart: 💹 " + mintA + "\nCA " + mintA

	sum, err := h.dispatcher.HandleMessage(context.Background(), domain.Message{Text: text, ReceivedAt: now})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Candidates)
	assert.Equal(t, 1, sum.Tracked)
	assert.Equal(t, []string{mintA}, h.sender.sent("@alpha"))
	assert.Equal(t, []string{mintA}, h.sender.sent("@beta"))
}

func TestHandleMessage_MultipleCandidates(t *testing.T) {
	h := newHarness(t, nil)
	text := "💊 " + mintA + "\nalso watching " + mintB

	sum, err := h.dispatcher.HandleMessage(context.Background(), domain.Message{Text: text, ReceivedAt: now})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Candidates)
	assert.Equal(t, 4, sum.Delivered)
	assert.Equal(t, []string{mintA, mintB}, h.sender.sent("@alpha"))
	assert.Equal(t, 2, h.sendSleeps.count())
}

func TestHandleMessage_NoCandidates(t *testing.T) {
	h := newHarness(t, nil)

	sum, err := h.dispatcher.HandleMessage(context.Background(), domain.Message{Text: "gm, nothing today"})
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.Equal(t, 0, h.registry.Active())
}

func TestHandleMessage_FailedForwardNotCached(t *testing.T) {
	h := newHarness(t, nil)
	h.sender.failing["@beta"] = true
	ctx := context.Background()
	msg := domain.Message{Text: "💊 " + mintA, ReceivedAt: now}

	sum, err := h.dispatcher.HandleMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Delivered)
	assert.Equal(t, 1, sum.Failed)

	ok, _ := h.cache.Exists(ctx, mintA, "@beta")
	assert.False(t, ok)

	h.sender.failing["@beta"] = false
	sum, err = h.dispatcher.HandleMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Delivered)
	assert.Equal(t, []string{mintA}, h.sender.sent("@beta"))
}

type brokenCache struct{}

func (brokenCache) Exists(context.Context, string, string) (bool, error) {
	return false, errors.New("redis down")
}

func (brokenCache) Add(context.Context, string, string) error {
	return errors.New("redis down")
}

func TestHandleMessage_CacheErrorForwardsAnyway(t *testing.T) {
	h := newHarness(t, nil)
	h.dispatcher.cache = brokenCache{}

	sum, err := h.dispatcher.HandleMessage(context.Background(), domain.Message{Text: "💊 " + mintA, ReceivedAt: now})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Delivered)
}

type panickingTracker struct{}

func (panickingTracker) Start(string, time.Time) *tracker.Run {
	panic("boom")
}

func TestHandleMessage_RecoversPanic(t *testing.T) {
	h := newHarness(t, nil)
	h.dispatcher.tracker = panickingTracker{}

	_, err := h.dispatcher.HandleMessage(context.Background(), domain.Message{Text: "💊 " + mintA})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)
}

type chanSource struct {
	ch  chan domain.Message
	err error
}

func (s chanSource) Messages(context.Context) (<-chan domain.Message, error) {
	return s.ch, s.err
}

func TestRun_ConsumesUntilSourceCloses(t *testing.T) {
	h := newHarness(t, nil)
	ch := make(chan domain.Message, 2)
	ch <- domain.Message{Text: "💊 " + mintA, ReceivedAt: now}
	ch <- domain.Message{Text: "💊 " + mintB, ReceivedAt: now}
	close(ch)

	require.NoError(t, h.dispatcher.Run(context.Background(), chanSource{ch: ch}))
	assert.Equal(t, []string{mintA, mintB}, h.sender.sent("@alpha"))
}

func TestRun_StopsOnContext(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.dispatcher.Run(ctx, chanSource{ch: make(chan domain.Message)}))
}

func TestRun_ReturnsPanicError(t *testing.T) {
	h := newHarness(t, nil)
	h.dispatcher.tracker = panickingTracker{}
	ch := make(chan domain.Message, 1)
	ch <- domain.Message{Text: "💊 " + mintA}

	err := h.dispatcher.Run(context.Background(), chanSource{ch: ch})
	assert.ErrorIs(t, err, ErrPanic)
}

func TestRun_SourceError(t *testing.T) {
	h := newHarness(t, nil)
	err := h.dispatcher.Run(context.Background(), chanSource{err: errors.New("unauthorized")})
	assert.Error(t, err)
}
