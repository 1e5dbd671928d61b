package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teb-dashboard/internal/models"
	"teb-dashboard/internal/parser"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func waitRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func noRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
		t.Fatal("unexpected run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSynthesizeAlerts(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	ms := now.UnixMilli()

	t.Run("critical", func(t *testing.T) {
		alerts := SynthesizeAlerts([]models.Prediction{{TurbineID: "TEB001", FailureProbability: 0.75}}, now, DefaultThresholds)
		require.Len(t, alerts, 1)
		a := alerts[0]
		assert.Equal(t, "ml_critical_TEB001_"+strconv.FormatInt(ms, 10), a.ID)
		assert.Equal(t, "critical", a.Type)
		assert.Equal(t, models.PriorityCritical, a.Priority)
		assert.Equal(t, models.SourceML, a.Source)
		assert.Equal(t, "Falha Iminente Detectada - TEB001", a.Title)
		assert.Equal(t, "Probabilidade de falha: 75.0%. Ação imediata necessária.", a.Message)
		assert.Equal(t, []string{ActionImmediateMaintenance}, a.Actions)
		assert.False(t, a.Read)
		assert.Equal(t, now, a.Timestamp)
	})

	t.Run("high", func(t *testing.T) {
		alerts := SynthesizeAlerts([]models.Prediction{{TurbineID: "TEB004", FailureProbability: 0.5}}, now, DefaultThresholds)
		require.Len(t, alerts, 1)
		assert.Equal(t, "warning", alerts[0].Type)
		assert.Equal(t, models.PriorityHigh, alerts[0].Priority)
		assert.Equal(t, "Risco Elevado - TEB004", alerts[0].Title)
		assert.Equal(t, "Probabilidade de falha: 50.0%. Agendar manutenção preventiva.", alerts[0].Message)
		assert.Equal(t, []string{ActionScheduleMaintenance}, alerts[0].Actions)
	})

	t.Run("critical with anomaly", func(t *testing.T) {
		alerts := SynthesizeAlerts([]models.Prediction{{TurbineID: "TEB001", FailureProbability: 0.75, AnomalyDetected: true}}, now, DefaultThresholds)
		require.Len(t, alerts, 2)
		assert.Equal(t, models.PriorityCritical, alerts[0].Priority)
		assert.Equal(t, "anomaly", alerts[1].Type)
		assert.Equal(t, models.PriorityMedium, alerts[1].Priority)
		assert.Equal(t, []string{ActionInvestigate}, alerts[1].Actions)
		assert.Equal(t, "Anomalia Detectada - TEB001", alerts[1].Title)
	})

	t.Run("boundaries", func(t *testing.T) {
		alerts := SynthesizeAlerts([]models.Prediction{
			{TurbineID: "A", FailureProbability: 0.7},
			{TurbineID: "B", FailureProbability: 0.4},
			{TurbineID: "C", FailureProbability: 0.1, AnomalyDetected: true},
		}, now, DefaultThresholds)
		require.Len(t, alerts, 2)
		assert.Equal(t, "A", alerts[0].TurbineID)
		assert.Equal(t, models.PriorityHigh, alerts[0].Priority)
		assert.Equal(t, "C", alerts[1].TurbineID)
		assert.Equal(t, "anomaly", alerts[1].Type)
	})

	t.Run("custom thresholds", func(t *testing.T) {
		alerts := SynthesizeAlerts([]models.Prediction{{TurbineID: "A", FailureProbability: 0.65}}, now, Thresholds{Critical: 0.6, Warning: 0.3})
		require.Len(t, alerts, 1)
		assert.Equal(t, models.PriorityCritical, alerts[0].Priority)
	})
}

func newAPI(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc("/api"+path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetch(t *testing.T) {
	srv := newAPI(t, map[string]http.HandlerFunc{
		RealtimePath: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			w.Write([]byte(`{"timestamp": "2025-06-16T10:00:00.5", "kpis": {"total_failures": 40},
				"turbines": [{"id": "TEB001", "status": "critical", "availability": 24.5}]}`))
		},
		AlertsPath: func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"alerts": [{"id": "alert_TEB001_1", "turbine_id": "TEB001", "type": "critical", "message": "m", "priority": "high"}]}`))
		},
		PredictionsPath: func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"predictions": [{"turbine_id": "TEB001", "failure_probability": 0.8}], "summary": {"total_turbines": 1}}`))
		},
	})
	c := NewClient(srv.URL+"/api/", 0)
	assert.Equal(t, srv.URL+"/api", c.base, "trailing slash is trimmed")
	ctx := context.Background()

	snap, err := c.FetchRealtime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, snap.KPIs.TotalFailures)
	require.Len(t, snap.Turbines, 1)

	alerts, err := c.FetchAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SourceSystem, alerts[0].Source)

	batch, err := c.FetchPredictions(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Predictions, 1)
	assert.Equal(t, 0.8, batch.Predictions[0].FailureProbability)
}

func TestClientErrors(t *testing.T) {
	srv := newAPI(t, map[string]http.HandlerFunc{
		RealtimePath: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": "boom"}`, http.StatusInternalServerError)
		},
		AlertsPath: func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"total_alerts": 0}`))
		},
	})
	c := NewClient(srv.URL+"/api", time.Second)

	_, err := c.FetchRealtime(context.Background())
	require.ErrorIs(t, err, ErrBadStatus)
	assert.Contains(t, err.Error(), "500")

	_, err = c.FetchAlerts(context.Background())
	assert.ErrorIs(t, err, parser.ErrInvalidPayload)

	_, err = c.FetchPredictions(context.Background())
	assert.ErrorIs(t, err, ErrBadStatus)

	// nothing listens here once the server is closed
	srv.Close()
	_, err = c.FetchRealtime(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrBadStatus))
}

func TestClientHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := newAPI(t, map[string]http.HandlerFunc{
		RealtimePath: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		},
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL+"/api", 0).FetchRealtime(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTaskRunsAtStartAndOnEveryTick(t *testing.T) {
	clock := NewFakeClock(time.Now())
	runs := make(chan struct{}, 10)
	task := NewTask("realtime", 30*time.Second, func(ctx context.Context) error {
		runs <- struct{}{}
		return nil
	}, WithClock(clock), WithLogger(quiet))

	task.Start(context.Background())
	defer task.Stop()
	assert.True(t, task.Running())

	waitRun(t, runs)
	noRun(t, runs)

	clock.Advance(29 * time.Second)
	noRun(t, runs)

	clock.Advance(time.Second)
	waitRun(t, runs)

	clock.Advance(30 * time.Second)
	waitRun(t, runs)
}

func TestTaskFailureKeepsSchedule(t *testing.T) {
	clock := NewFakeClock(time.Now())
	runs := make(chan struct{}, 10)
	var failures atomic.Int32
	task := NewTask("alerts", time.Minute, func(ctx context.Context) error {
		runs <- struct{}{}
		return errors.New("connection refused")
	}, WithClock(clock), WithLogger(quiet), WithObserver(func(name string, err error) {
		assert.Equal(t, "alerts", name)
		if err != nil {
			failures.Add(1)
		}
	}))

	task.Start(context.Background())
	defer task.Stop()

	waitRun(t, runs)
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		waitRun(t, runs)
	}
	require.Eventually(t, func() bool { return failures.Load() == 4 }, time.Second, 5*time.Millisecond)
}

func TestTaskStopCancelsTickerAndRun(t *testing.T) {
	clock := NewFakeClock(time.Now())
	started := make(chan struct{})
	var runErr atomic.Value
	task := NewTask("realtime", 30*time.Second, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		runErr.Store(ctx.Err())
		return ctx.Err()
	}, WithClock(clock), WithLogger(quiet))

	task.Start(context.Background())
	<-started
	assert.Equal(t, 1, clock.Tickers())

	task.Stop()
	assert.False(t, task.Running())
	assert.Equal(t, 0, clock.Tickers())
	assert.ErrorIs(t, runErr.Load().(error), context.Canceled)

	// stopping twice is harmless
	task.Stop()
}

func TestTaskTriggerNow(t *testing.T) {
	clock := NewFakeClock(time.Now())
	runs := make(chan struct{}, 10)
	task := NewTask("realtime", 30*time.Second, func(ctx context.Context) error {
		runs <- struct{}{}
		return nil
	}, WithClock(clock), WithLogger(quiet))

	assert.False(t, task.TriggerNow())

	task.Start(context.Background())
	waitRun(t, runs)
	assert.True(t, task.TriggerNow())
	waitRun(t, runs)

	task.Stop()
	assert.False(t, task.TriggerNow())
	clock.Advance(time.Hour)
	noRun(t, runs)

	// a stopped task can be started again
	task.Start(context.Background())
	defer task.Stop()
	waitRun(t, runs)
}

func TestFakeClockDropsUnreadTicks(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	tk := clock.NewTicker(time.Second)

	clock.Advance(time.Second)
	clock.Advance(time.Second)
	<-tk.C()
	select {
	case <-tk.C():
		t.Fatal("tick should have been dropped")
	default:
	}
	assert.True(t, time.Unix(2, 0).Equal(clock.Now()))
}

func TestTaskSlowRunDoesNotBlockTicks(t *testing.T) {
	clock := NewFakeClock(time.Now())
	release := make(chan struct{})
	var inFlight, peak atomic.Int32
	runs := make(chan struct{}, 10)
	task := NewTask("realtime", 30*time.Second, func(ctx context.Context) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		runs <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, WithClock(clock), WithLogger(quiet))

	task.Start(context.Background())
	waitRun(t, runs)
	clock.Advance(30 * time.Second)
	waitRun(t, runs)
	assert.EqualValues(t, 2, peak.Load())

	close(release)
	task.Stop()
	assert.Zero(t, inFlight.Load())
}
