// Package session holds the state of one dashboard session: the live
// telemetry, the alert list and the polling toggles.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"teb-dashboard/internal/dataset"
	"teb-dashboard/internal/db"
	"teb-dashboard/internal/models"
	"teb-dashboard/internal/telemetry"
)

// Task names, also used as metric labels
const (
	TaskRealtime    = "realtime"
	TaskAlerts      = "alerts"
	TaskPredictions = "predictions"
)

// ErrNoLiveData is returned when a live snapshot is asked for before the
// first successful realtime poll
var ErrNoLiveData = errors.New("no live data received yet")

// Source is the telemetry API as seen by the session
type Source interface {
	FetchRealtime(ctx context.Context) (*models.RealtimeSnapshot, error)
	FetchAlerts(ctx context.Context) ([]models.AlertEvent, error)
	FetchPredictions(ctx context.Context) (*models.PredictionBatch, error)
}

// Options configure a session. Zero values fall back to the defaults.
type Options struct {
	RealtimeInterval time.Duration
	AlertInterval    time.Duration
	Thresholds       telemetry.Thresholds
	Clock            telemetry.Clock
	Logger           *slog.Logger
	// Observe is called after every scheduled poll
	Observe func(task string, err error)
	// OnConnection is called whenever the connection status changes
	OnConnection func(connected bool)
}

// Default poll intervals
const (
	DefaultRealtimeInterval = 30 * time.Second
	DefaultAlertInterval    = 60 * time.Second
)

// Session is the state shared by the pollers and the API handlers
type Session struct {
	src    Source
	alerts *db.Database
	clock  telemetry.Clock
	log    *slog.Logger
	th     telemetry.Thresholds
	onConn func(bool)

	realtimeTask    *telemetry.Task
	alertTask       *telemetry.Task
	predictionsTask *telemetry.Task

	ctx    context.Context
	cancel context.CancelFunc

	// toggleMu orders toggle flips with their task transitions
	toggleMu sync.Mutex

	mu          sync.RWMutex
	status      models.ConnectionStatus
	realtime    *models.RealtimeSnapshot
	predictions *models.PredictionBatch
	lastCheck   time.Time
	autoRefresh bool
	alerting    bool
}

// New creates a session with auto-refresh and alerting enabled. Polling
// begins with Start.
func New(src Source, opts Options) (*Session, error) {
	store, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("opening alert store: %w", err)
	}

	if opts.RealtimeInterval <= 0 {
		opts.RealtimeInterval = DefaultRealtimeInterval
	}
	if opts.AlertInterval <= 0 {
		opts.AlertInterval = DefaultAlertInterval
	}
	if opts.Thresholds == (telemetry.Thresholds{}) {
		opts.Thresholds = telemetry.DefaultThresholds
	}
	if opts.Clock == nil {
		opts.Clock = telemetry.RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		src:         src,
		alerts:      store,
		clock:       opts.Clock,
		log:         opts.Logger,
		th:          opts.Thresholds,
		onConn:      opts.OnConnection,
		ctx:         ctx,
		cancel:      cancel,
		autoRefresh: true,
		alerting:    true,
	}

	taskOpts := []telemetry.TaskOption{
		telemetry.WithClock(opts.Clock),
		telemetry.WithLogger(opts.Logger),
	}
	if opts.Observe != nil {
		taskOpts = append(taskOpts, telemetry.WithObserver(opts.Observe))
	}
	s.realtimeTask = telemetry.NewTask(TaskRealtime, opts.RealtimeInterval, s.RefreshRealtime, taskOpts...)
	s.alertTask = telemetry.NewTask(TaskAlerts, opts.AlertInterval, s.RefreshAlerts, taskOpts...)
	s.predictionsTask = telemetry.NewTask(TaskPredictions, opts.AlertInterval, s.RefreshPredictions, taskOpts...)

	return s, nil
}

// Start schedules every enabled poller
func (s *Session) Start() {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	s.mu.RLock()
	auto, alerting := s.autoRefresh, s.alerting
	s.mu.RUnlock()

	if auto {
		s.realtimeTask.Start(s.ctx)
	}
	if alerting {
		s.alertTask.Start(s.ctx)
		s.predictionsTask.Start(s.ctx)
	}
}

// Close stops every poller, cancels outstanding requests and drops the
// alert list
func (s *Session) Close() error {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	s.cancel()
	s.realtimeTask.Stop()
	s.alertTask.Stop()
	s.predictionsTask.Stop()
	return s.alerts.Close()
}

// RefreshRealtime polls the realtime endpoint once. On failure the previous
// snapshot is kept and the session is marked disconnected. A poll cancelled
// by stopping its task leaves the session untouched.
func (s *Session) RefreshRealtime(ctx context.Context) error {
	snap, err := s.src.FetchRealtime(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	now := s.clock.Now()

	s.mu.Lock()
	was := s.status.Connected
	if err != nil {
		s.status.Connected = false
		s.status.LastError = err.Error()
	} else {
		if snap.Timestamp.IsZero() {
			snap.Timestamp = now
		}
		s.realtime = snap
		s.status = models.ConnectionStatus{Connected: true, LastUpdate: now}
	}
	connected := s.status.Connected
	s.mu.Unlock()

	if was != connected && s.onConn != nil {
		s.onConn(connected)
	}
	if err != nil {
		s.log.Warn("realtime_poll_err", "err", err)
		return fmt.Errorf("polling realtime data: %w", err)
	}
	return nil
}

// RefreshNow is the manual refresh. It works whether or not auto-refresh is on.
func (s *Session) RefreshNow(ctx context.Context) error {
	return s.RefreshRealtime(ctx)
}

// RefreshAlerts polls the alerts endpoint once and merges the result into
// the alert list
func (s *Session) RefreshAlerts(ctx context.Context) error {
	alerts, err := s.src.FetchAlerts(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		s.log.Warn("alerts_poll_err", "err", err)
		return fmt.Errorf("polling alerts: %w", err)
	}

	added, err := s.alerts.InsertAlerts(alerts)
	if err != nil {
		return fmt.Errorf("merging alerts: %w", err)
	}

	s.mu.Lock()
	s.lastCheck = s.clock.Now()
	s.mu.Unlock()

	s.log.Debug("alerts_merged", "received", len(alerts), "added", added)
	return nil
}

// RefreshPredictions polls the prediction endpoint once and merges the
// alerts synthesized from it
func (s *Session) RefreshPredictions(ctx context.Context) error {
	batch, err := s.src.FetchPredictions(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		s.log.Warn("predictions_poll_err", "err", err)
		return fmt.Errorf("polling predictions: %w", err)
	}

	now := s.clock.Now()
	synthesized := telemetry.SynthesizeAlerts(batch.Predictions, now, s.th)
	added, err := s.alerts.InsertAlerts(synthesized)
	if err != nil {
		return fmt.Errorf("merging prediction alerts: %w", err)
	}

	s.mu.Lock()
	s.predictions = batch
	s.lastCheck = now
	s.mu.Unlock()

	s.log.Debug("predictions_merged", "predictions", len(batch.Predictions), "added", added)
	return nil
}

// CheckAlerts asks for an immediate alert and prediction poll. Running
// pollers are triggered and answer in the background; stopped ones are
// polled in place and their errors returned.
func (s *Session) CheckAlerts(ctx context.Context) error {
	var errs []error
	if !s.alertTask.TriggerNow() {
		errs = append(errs, s.RefreshAlerts(ctx))
	}
	if !s.predictionsTask.TriggerNow() {
		errs = append(errs, s.RefreshPredictions(ctx))
	}
	return errors.Join(errs...)
}

// SetAutoRefresh turns the 30 second realtime poll on or off
func (s *Session) SetAutoRefresh(enabled bool) {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	s.mu.Lock()
	s.autoRefresh = enabled
	s.mu.Unlock()

	if enabled {
		s.realtimeTask.Start(s.ctx)
	} else {
		s.realtimeTask.Stop()
	}
}

// SetAlerting turns the 60 second alert and prediction polls on or off
func (s *Session) SetAlerting(enabled bool) {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	s.mu.Lock()
	s.alerting = enabled
	s.mu.Unlock()

	if enabled {
		s.alertTask.Start(s.ctx)
		s.predictionsTask.Start(s.ctx)
	} else {
		s.alertTask.Stop()
		s.predictionsTask.Stop()
	}
}

// AutoRefresh reports whether the realtime poll is enabled
func (s *Session) AutoRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoRefresh
}

// Alerting reports whether the alert polls are enabled
func (s *Session) Alerting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alerting
}

// Pollers reports which polling tasks are scheduled, by task name
func (s *Session) Pollers() map[string]bool {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	out := make(map[string]bool, 3)
	for _, t := range []*telemetry.Task{s.realtimeTask, s.alertTask, s.predictionsTask} {
		out[t.Name()] = t.Running()
	}
	return out
}

// Status returns the connection status of the realtime link
func (s *Session) Status() models.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastCheck returns when alerts or predictions were last received
func (s *Session) LastCheck() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCheck
}

// Realtime returns the last successful realtime snapshot
func (s *Session) Realtime() (*models.RealtimeSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realtime, s.realtime != nil
}

// Predictions returns the last prediction batch
func (s *Session) Predictions() (*models.PredictionBatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predictions, s.predictions != nil
}

// Snapshot returns the dataset snapshot of a period, or the snapshot built
// from the last live reading when live is set
func (s *Session) Snapshot(period string, live bool) (*models.PeriodSnapshot, error) {
	if !live {
		return dataset.Resolve(period), nil
	}
	rt, ok := s.Realtime()
	if !ok {
		return nil, ErrNoLiveData
	}
	return dataset.FromRealtime(rt), nil
}

// Alerts returns the alert list, most urgent first
func (s *Session) Alerts() ([]models.AlertEvent, error) {
	return s.alerts.ListAlerts()
}

// UnreadCount returns the number of unread alerts
func (s *Session) UnreadCount() (int, error) {
	return s.alerts.GetUnreadCount()
}

// MarkRead flags an alert as read. It reports whether the alert exists.
func (s *Session) MarkRead(id string) (bool, error) {
	return s.alerts.MarkAlertRead(id)
}

// Dismiss removes an alert. It reports whether the alert existed.
func (s *Session) Dismiss(id string) (bool, error) {
	return s.alerts.DeleteAlert(id)
}

// ClearAlerts empties the alert list
func (s *Session) ClearAlerts() error {
	return s.alerts.DeleteAllAlerts()
}

// AlertStats returns totals over the alert list
func (s *Session) AlertStats() (map[string]interface{}, error) {
	return s.alerts.GetStats()
}
