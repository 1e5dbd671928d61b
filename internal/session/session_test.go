package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teb-dashboard/internal/dataset"
	"teb-dashboard/internal/models"
	"teb-dashboard/internal/telemetry"
)

var errDown = errors.New("connection refused")

type fakeSource struct {
	mu          sync.Mutex
	realtime    *models.RealtimeSnapshot
	alerts      []models.AlertEvent
	predictions *models.PredictionBatch
	fail        bool

	realtimeCalls atomic.Int32
	alertCalls    atomic.Int32
	predCalls     atomic.Int32
}

func (f *fakeSource) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeSource) FetchRealtime(ctx context.Context) (*models.RealtimeSnapshot, error) {
	f.realtimeCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errDown
	}
	cp := *f.realtime
	return &cp, nil
}

func (f *fakeSource) FetchAlerts(ctx context.Context) ([]models.AlertEvent, error) {
	f.alertCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errDown
	}
	return append([]models.AlertEvent(nil), f.alerts...), nil
}

func (f *fakeSource) FetchPredictions(ctx context.Context) (*models.PredictionBatch, error) {
	f.predCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errDown
	}
	return f.predictions, nil
}

func newSource() *fakeSource {
	return &fakeSource{
		realtime: &models.RealtimeSnapshot{
			KPIs: models.RealtimeKPIs{TotalFailures: 41, CriticalTurbines: []string{"TEB001"}},
			Turbines: []models.RealtimeTurbine{
				{ID: "TEB001", Name: "TEB001", Status: "critical", Failures: 41, MTTR: 70, Availability: 25},
				{ID: "TEB002", Name: "TEB002", Status: "operational", Failures: 33, MTTR: 3.5, Availability: 97},
			},
		},
		alerts: []models.AlertEvent{
			{ID: "alert_TEB001_1", Type: "critical", Source: models.SourceSystem, TurbineID: "TEB001", Priority: models.PriorityHigh, Message: "m"},
		},
		predictions: &models.PredictionBatch{Predictions: []models.Prediction{
			{TurbineID: "TEB001", FailureProbability: 0.9, AnomalyDetected: true},
			{TurbineID: "TEB003", FailureProbability: 0.2},
		}},
	}
}

func newSession(t *testing.T, src Source, clock telemetry.Clock) *Session {
	t.Helper()
	s, err := New(src, Options{Clock: clock, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRefreshRealtime(t *testing.T) {
	src := newSource()
	clock := telemetry.NewFakeClock(time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC))
	s := newSession(t, src, clock)

	_, ok := s.Realtime()
	assert.False(t, ok)

	require.NoError(t, s.RefreshNow(context.Background()))
	rt, ok := s.Realtime()
	require.True(t, ok)
	assert.Equal(t, 41, rt.KPIs.TotalFailures)
	assert.Equal(t, clock.Now(), rt.Timestamp)
	assert.True(t, s.Status().Connected)
	assert.Equal(t, clock.Now(), s.Status().LastUpdate)
}

func TestRealtimeFailureKeepsPriorSnapshot(t *testing.T) {
	src := newSource()
	s := newSession(t, src, telemetry.NewFakeClock(time.Now()))

	var changes []bool
	s.onConn = func(c bool) { changes = append(changes, c) }

	require.NoError(t, s.RefreshRealtime(context.Background()))
	before, _ := s.Realtime()

	src.setFail(true)
	err := s.RefreshRealtime(context.Background())
	assert.ErrorIs(t, err, errDown)

	after, ok := s.Realtime()
	require.True(t, ok)
	assert.Same(t, before, after)
	st := s.Status()
	assert.False(t, st.Connected)
	assert.Equal(t, errDown.Error(), st.LastError)

	src.setFail(false)
	require.NoError(t, s.RefreshRealtime(context.Background()))
	assert.True(t, s.Status().Connected)
	assert.Empty(t, s.Status().LastError)
	assert.Equal(t, []bool{true, false, true}, changes)
}

func TestRefreshPredictionsSynthesizesAlerts(t *testing.T) {
	src := newSource()
	s := newSession(t, src, telemetry.NewFakeClock(time.Now()))

	require.NoError(t, s.RefreshPredictions(context.Background()))
	alerts, err := s.Alerts()
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.PriorityCritical, alerts[0].Priority)
	assert.Equal(t, "anomaly", alerts[1].Type)

	batch, ok := s.Predictions()
	require.True(t, ok)
	assert.Len(t, batch.Predictions, 2)
	assert.False(t, s.LastCheck().IsZero())

	// same generation time, same ids: nothing new is added
	require.NoError(t, s.RefreshPredictions(context.Background()))
	alerts, _ = s.Alerts()
	assert.Len(t, alerts, 2)
}

func TestRefreshAlertsMergesByID(t *testing.T) {
	src := newSource()
	s := newSession(t, src, telemetry.NewFakeClock(time.Now()))

	require.NoError(t, s.RefreshAlerts(context.Background()))
	require.NoError(t, s.RefreshAlerts(context.Background()))
	alerts, err := s.Alerts()
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	src.setFail(true)
	assert.ErrorIs(t, s.RefreshAlerts(context.Background()), errDown)
	alerts, _ = s.Alerts()
	assert.Len(t, alerts, 1)
}

func TestAlertMutations(t *testing.T) {
	s := newSession(t, newSource(), telemetry.NewFakeClock(time.Now()))
	require.NoError(t, s.RefreshAlerts(context.Background()))
	require.NoError(t, s.RefreshPredictions(context.Background()))

	n, err := s.UnreadCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ok, err := s.MarkRead("alert_TEB001_1")
	require.NoError(t, err)
	assert.True(t, ok)
	n, _ = s.UnreadCount()
	assert.Equal(t, 2, n)

	ok, err = s.Dismiss("alert_TEB001_1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.Dismiss("alert_TEB001_1")
	assert.False(t, ok)

	require.NoError(t, s.ClearAlerts())
	alerts, _ := s.Alerts()
	assert.Empty(t, alerts)
	n, _ = s.UnreadCount()
	assert.Zero(t, n)
}

func TestPollersFollowTheirIntervals(t *testing.T) {
	src := newSource()
	clock := telemetry.NewFakeClock(time.Now())
	s := newSession(t, src, clock)
	s.Start()

	require.Eventually(t, func() bool {
		return src.realtimeCalls.Load() == 1 && src.alertCalls.Load() == 1 && src.predCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	clock.Advance(DefaultRealtimeInterval)
	require.Eventually(t, func() bool { return src.realtimeCalls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, src.alertCalls.Load())

	clock.Advance(DefaultRealtimeInterval)
	require.Eventually(t, func() bool {
		return src.realtimeCalls.Load() == 3 && src.alertCalls.Load() == 2 && src.predCalls.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestAutoRefreshToggle(t *testing.T) {
	src := newSource()
	clock := telemetry.NewFakeClock(time.Now())
	s := newSession(t, src, clock)
	s.SetAlerting(false)
	s.Start()
	require.Eventually(t, func() bool { return src.realtimeCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.SetAutoRefresh(false)
	assert.False(t, s.AutoRefresh())
	assert.Equal(t, 0, clock.Tickers())
	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, src.realtimeCalls.Load())

	// manual refresh keeps working with auto-refresh off
	require.NoError(t, s.RefreshNow(context.Background()))
	assert.EqualValues(t, 2, src.realtimeCalls.Load())

	s.SetAutoRefresh(true)
	require.Eventually(t, func() bool { return src.realtimeCalls.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 0, src.alertCalls.Load())
}

func TestFailedPollsKeepRetrying(t *testing.T) {
	src := newSource()
	src.setFail(true)
	clock := telemetry.NewFakeClock(time.Now())
	s := newSession(t, src, clock)
	s.SetAlerting(false)
	s.Start()

	for want := int32(1); want <= 3; want++ {
		w := want
		require.Eventually(t, func() bool { return src.realtimeCalls.Load() == w }, time.Second, 5*time.Millisecond)
		clock.Advance(DefaultRealtimeInterval)
	}
	assert.False(t, s.Status().Connected)
}

func TestSnapshot(t *testing.T) {
	s := newSession(t, newSource(), telemetry.NewFakeClock(time.Now()))

	snap, err := s.Snapshot("q1", false)
	require.NoError(t, err)
	assert.Same(t, dataset.Resolve("q1"), snap)

	_, err = s.Snapshot("", true)
	assert.ErrorIs(t, err, ErrNoLiveData)

	require.NoError(t, s.RefreshNow(context.Background()))
	snap, err = s.Snapshot("", true)
	require.NoError(t, err)
	assert.Equal(t, dataset.PeriodRealtime, snap.Key)
	assert.Len(t, snap.Turbines, 2)
	assert.Equal(t, "TEB001", snap.KPIs.MostCritical)
}

func TestCloseStopsPollers(t *testing.T) {
	src := newSource()
	clock := telemetry.NewFakeClock(time.Now())
	s, err := New(src, Options{Clock: clock, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	s.Start()
	require.Eventually(t, func() bool { return src.realtimeCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	assert.Equal(t, 0, clock.Tickers())
}

// blockingSource holds every fetch until its context is cancelled once
// blocking is switched on
type blockingSource struct {
	*fakeSource
	blocking atomic.Bool
	started  chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{fakeSource: newSource(), started: make(chan struct{}, 8)}
}

func (b *blockingSource) hold(ctx context.Context) error {
	b.started <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func (b *blockingSource) FetchRealtime(ctx context.Context) (*models.RealtimeSnapshot, error) {
	if b.blocking.Load() {
		return nil, b.hold(ctx)
	}
	return b.fakeSource.FetchRealtime(ctx)
}

func (b *blockingSource) FetchAlerts(ctx context.Context) ([]models.AlertEvent, error) {
	if b.blocking.Load() {
		return nil, b.hold(ctx)
	}
	return b.fakeSource.FetchAlerts(ctx)
}

func (b *blockingSource) FetchPredictions(ctx context.Context) (*models.PredictionBatch, error) {
	if b.blocking.Load() {
		return nil, b.hold(ctx)
	}
	return b.fakeSource.FetchPredictions(ctx)
}

func waitStarted(t *testing.T, src *blockingSource, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-src.started:
		case <-time.After(time.Second):
			t.Fatalf("fetch %d never started", i+1)
		}
	}
}

func TestStoppedRealtimePollLeavesStatus(t *testing.T) {
	src := newBlockingSource()
	s := newSession(t, src, telemetry.NewFakeClock(time.Now()))

	var changes []bool
	s.onConn = func(c bool) { changes = append(changes, c) }

	require.NoError(t, s.RefreshNow(context.Background()))
	before := s.Status()

	src.blocking.Store(true)
	s.SetAlerting(false)
	s.Start()
	waitStarted(t, src, 1)

	s.SetAutoRefresh(false)
	assert.Equal(t, before, s.Status())
	assert.Equal(t, []bool{true}, changes)
}

func TestStoppedAlertPollsLeaveAlertList(t *testing.T) {
	src := newBlockingSource()
	s := newSession(t, src, telemetry.NewFakeClock(time.Now()))
	s.SetAutoRefresh(false)

	src.blocking.Store(true)
	s.Start()
	waitStarted(t, src, 2)

	s.SetAlerting(false)
	assert.True(t, s.LastCheck().IsZero())
	_, ok := s.Predictions()
	assert.False(t, ok)

	// a cancelled manual poll reports the cancellation and writes nothing
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src.blocking.Store(false)
	assert.ErrorIs(t, s.RefreshAlerts(ctx), context.Canceled)
	alerts, err := s.Alerts()
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestCheckAlerts(t *testing.T) {
	t.Run("stopped pollers run in place", func(t *testing.T) {
		src := newSource()
		s := newSession(t, src, telemetry.NewFakeClock(time.Now()))

		require.NoError(t, s.CheckAlerts(context.Background()))
		alerts, err := s.Alerts()
		require.NoError(t, err)
		assert.Len(t, alerts, 3)

		src.setFail(true)
		assert.ErrorIs(t, s.CheckAlerts(context.Background()), errDown)
	})

	t.Run("running pollers are triggered", func(t *testing.T) {
		src := newSource()
		s := newSession(t, src, telemetry.NewFakeClock(time.Now()))
		s.SetAutoRefresh(false)
		s.Start()
		require.Eventually(t, func() bool {
			return src.alertCalls.Load() == 1 && src.predCalls.Load() == 1
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, s.CheckAlerts(context.Background()))
		require.Eventually(t, func() bool {
			return src.alertCalls.Load() == 2 && src.predCalls.Load() == 2
		}, time.Second, 5*time.Millisecond)
	})
}

func TestPollersReportSchedule(t *testing.T) {
	s := newSession(t, newSource(), telemetry.NewFakeClock(time.Now()))
	assert.Equal(t, map[string]bool{TaskRealtime: false, TaskAlerts: false, TaskPredictions: false}, s.Pollers())

	s.SetAlerting(false)
	s.Start()
	assert.Equal(t, map[string]bool{TaskRealtime: true, TaskAlerts: false, TaskPredictions: false}, s.Pollers())
}

func TestConcurrentTogglesMatchSchedule(t *testing.T) {
	s := newSession(t, newSource(), telemetry.NewFakeClock(time.Now()))
	s.Start()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(enabled bool) {
			defer wg.Done()
			s.SetAutoRefresh(enabled)
			s.SetAlerting(!enabled)
		}(i%2 == 0)
	}
	wg.Wait()

	pollers := s.Pollers()
	assert.Equal(t, s.AutoRefresh(), pollers[TaskRealtime])
	assert.Equal(t, s.Alerting(), pollers[TaskAlerts])
	assert.Equal(t, s.Alerting(), pollers[TaskPredictions])
}
