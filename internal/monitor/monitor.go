// Package monitor assembles the shared connection manager and every feature
// store from a resolved configuration.
package monitor

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/alerts"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/cameras"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/chaos"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/config"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/detections"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/health"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/joblogs"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/notify"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/obs"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/pipeline"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/workers"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Options configures a Monitor.
type Options struct {
	Config config.Loaded
	// Dialer defaults to the gorilla dialer. It is wrapped with fault
	// injection when Config.Chaos enables any.
	Dialer      websocket.Dialer
	Clock       clockwork.Clock
	Metrics     *obs.Metrics
	Notifier    notify.Notifier
	Invalidator notify.Invalidator
}

// feature is the part of every store the monitor drives.
type feature interface {
	Start()
	Stop()
	Name() string
	Status() dispatch.ConnectionStatus
}

// Monitor owns the connection manager and every feature store.
type Monitor struct {
	manager *websocket.Manager
	opt     Options
	cfg     dispatch.Cell[config.Loaded]

	Alerts     *alerts.Store
	Cameras    *cameras.Store
	Detections *detections.Store
	Pipeline   *pipeline.Store
	Health     *health.Store
	Workers    *workers.Store

	features []feature

	mu   sync.Mutex
	jobs map[string]*joblogs.Store
}

// New builds every store. Nothing connects until Start.
func New(opt Options) (*Monitor, error) {
	cfg := opt.Config
	dialer := opt.Dialer
	if dialer == nil {
		dialer = websocket.NewDialer(nil)
	}
	if cfg.Chaos.Enabled() {
		cd, err := chaos.NewDialer(dialer, cfg.Chaos)
		if err != nil {
			return nil, errors.Wrap(err, "chaos dialer")
		}
		logs.Warnf("monitor: chaos enabled, dial_fail=%.2f stall=%.2f drop=%.2f dup=%.2f",
			cfg.Chaos.DialFailRate, cfg.Chaos.StallRate, cfg.Chaos.DropRate, cfg.Chaos.DuplicateRate)
		dialer = cd
	}

	wsOpt := websocket.Options{Dialer: dialer, Clock: opt.Clock, KeepIdle: cfg.KeepIdle}
	var dispatchObserver dispatch.Observer
	if opt.Metrics != nil {
		wsOpt.Observer = opt.Metrics
		dispatchObserver = opt.Metrics
	}

	events, err := dispatch.ResolveKey(cfg.Server.BaseURL, dispatch.EndpointEvents, cfg.Server.APIKey)
	if err != nil {
		return nil, errors.Wrap(err, "resolve events endpoint").With("base_url", cfg.Server.BaseURL)
	}
	system, err := dispatch.ResolveKey(cfg.Server.BaseURL, dispatch.EndpointSystem, cfg.Server.APIKey)
	if err != nil {
		return nil, errors.Wrap(err, "resolve system endpoint").With("base_url", cfg.Server.BaseURL)
	}

	m := &Monitor{
		manager: websocket.NewManager(wsOpt),
		opt:     opt,
		jobs:    make(map[string]*joblogs.Store),
	}
	m.cfg.Store(cfg)

	base := func(key websocket.Key, f config.Feature) dispatch.Options {
		return dispatch.Options{
			Key:      key,
			Config:   cfg.WebSocket,
			Profile:  cfg.Profile,
			Enabled:  f.Enabled,
			Observer: dispatchObserver,
		}
	}

	m.Alerts = alerts.New(m.manager, alerts.Options{
		Options:    base(events, cfg.Features.Alerts),
		Effects:    m.effects(func(f config.Features) bool { return f.Alerts.ShowToasts }),
		MaxHistory: cfg.Features.Alerts.MaxHistory,
	})
	m.Cameras = cameras.New(m.manager, cameras.Options{
		Options:    base(events, cfg.Features.Cameras),
		Effects:    m.effects(func(f config.Features) bool { return f.Cameras.ShowToasts }),
		MaxHistory: cfg.Features.Cameras.MaxHistory,
	})
	m.Detections = detections.New(m.manager, detections.Options{
		Options:        base(events, cfg.Features.Detections),
		MaxDetections:  cfg.Features.Detections.MaxHistory,
		MaxBatches:     cfg.Detections.MaxBatches,
		FilterCameraID: cfg.Detections.FilterCameraID,
	})
	m.Pipeline = pipeline.New(m.manager, pipeline.Options{
		Options:           base(system, cfg.Features.Pipeline),
		Effects:           m.effects(func(f config.Features) bool { return f.Pipeline.ShowToasts }),
		MaxHistory:        cfg.Features.Pipeline.MaxHistory,
		BacklogThreshold:  cfg.Pipeline.BacklogThreshold,
		CriticalThreshold: cfg.Pipeline.CriticalThreshold,
	})
	m.Health = health.New(m.manager, health.Options{
		Options:    base(system, cfg.Features.Health),
		Effects:    m.effects(func(f config.Features) bool { return f.Health.ShowToasts }),
		MaxHistory: cfg.Features.Health.MaxHistory,
	})
	m.Workers = workers.New(m.manager, workers.Options{
		Options:               base(system, cfg.Features.Workers),
		Effects:               m.effects(func(f config.Features) bool { return f.Workers.ShowToasts }),
		MaxHistory:            cfg.Features.Workers.MaxHistory,
		FailureToastThreshold: cfg.Workers.FailureToastThreshold,
	})
	m.features = []feature{m.Alerts, m.Cameras, m.Detections, m.Pipeline, m.Health, m.Workers}
	return m, nil
}

// effects gates toasts on the latest configuration so reloads apply without
// rebuilding the stores.
func (m *Monitor) effects(show func(config.Features) bool) notify.Effects {
	e := notify.Effects{ShowToasts: true, Invalidator: m.opt.Invalidator}
	if m.opt.Notifier == nil {
		return e
	}
	e.Notifier = notify.NotifierFunc(func(t notify.Toast) {
		if show(m.cfg.Load().Features) {
			m.opt.Notifier.Notify(t)
		}
	})
	return e
}

// Start subscribes every enabled feature.
func (m *Monitor) Start() {
	for _, f := range m.features {
		f.Start()
	}
}

// Reload applies settings that can change at runtime: toast gates and the
// detection camera filter. Connection settings need a restart.
func (m *Monitor) Reload(cfg config.Loaded) {
	prev := m.cfg.Load()
	m.cfg.Store(cfg)
	if prev.Detections.FilterCameraID != cfg.Detections.FilterCameraID {
		m.Detections.SetCameraFilter(cfg.Detections.FilterCameraID)
	}
}

// WatchJob opens the log stream for jobID, reusing an existing store.
func (m *Monitor) WatchJob(jobID string) (*joblogs.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.jobs[jobID]; ok {
		return s, nil
	}
	cfg := m.cfg.Load()
	key, err := joblogs.Key(cfg.Server.BaseURL, jobID, cfg.Server.APIKey)
	if err != nil {
		return nil, errors.Wrap(err, "resolve job logs endpoint").With("job_id", jobID)
	}
	opt := joblogs.Options{
		Options: dispatch.Options{
			Key:     key,
			Config:  cfg.WebSocket,
			Profile: cfg.Profile,
			Enabled: cfg.Features.JobLogs.Enabled,
		},
		JobID:    jobID,
		MaxLines: cfg.Features.JobLogs.MaxHistory,
	}
	if m.opt.Metrics != nil {
		opt.Observer = m.opt.Metrics
	}
	s := joblogs.New(m.manager, opt)
	s.Start()
	m.jobs[jobID] = s
	return s, nil
}

// StopJob closes the log stream for jobID.
func (m *Monitor) StopJob(jobID string) {
	m.mu.Lock()
	s, ok := m.jobs[jobID]
	delete(m.jobs, jobID)
	m.mu.Unlock()
	if ok {
		s.Stop()
	}
}

// Close stops every store and releases every connection.
func (m *Monitor) Close() {
	m.mu.Lock()
	jobs := m.jobs
	m.jobs = make(map[string]*joblogs.Store)
	m.mu.Unlock()
	for _, s := range jobs {
		s.Stop()
	}
	for _, f := range m.features {
		f.Stop()
	}
	m.manager.Close()
}

// Manager exposes the shared connection manager.
func (m *Monitor) Manager() *websocket.Manager {
	return m.manager
}
