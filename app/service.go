package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/railsched/api/optimize"
	"github.com/kilianp07/railsched/config"
	"github.com/kilianp07/railsched/core/events"
	coremetrics "github.com/kilianp07/railsched/core/metrics"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
	"github.com/kilianp07/railsched/core/priority"
	"github.com/kilianp07/railsched/core/realtime"
	"github.com/kilianp07/railsched/core/runlog"
	"github.com/kilianp07/railsched/infra/dataset"
	"github.com/kilianp07/railsched/infra/logger"
	"github.com/kilianp07/railsched/infra/metrics"
	"github.com/kilianp07/railsched/infra/mqtt"
	"github.com/kilianp07/railsched/internal/eventbus"
)

// Service wires the optimizer to its transports and sinks.
type Service struct {
	Runner *optimizer.Runner
	API    *optimize.Server

	cfg     *config.Config
	bus     *eventbus.Bus[events.Event]
	sink    coremetrics.MetricsSink
	store   runlog.LogStore
	dataset *model.Snapshot
	reopt   *realtime.Reoptimizer
	log     logger.Logger

	// newTransport connects to the broker; replaced in tests.
	newTransport func(mqtt.Config) (mqtt.Transport, error)
}

// New creates a Service from the configuration. Nothing is started and no
// network connection is opened until Run.
func New(cfg *config.Config) (*Service, error) {
	cfg.Logging.Apply()
	logg := logger.New("service")

	engine, err := priority.NewEngine(cfg.Priority)
	if err != nil {
		return nil, fmt.Errorf("priority engine: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	bus := eventbus.New[events.Event]()
	runner, err := optimizer.NewRunner(cfg.Optimizer, engine, optimizer.Deps{
		Logger:    logger.New("optimizer"),
		Publisher: bus,
	})
	if err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}
	store, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}

	svc := &Service{
		Runner: runner,
		cfg:    cfg,
		bus:    bus,
		sink:   sink,
		store:  store,
		reopt:  realtime.NewReoptimizer(runner, logger.New("realtime")),
		log:    logg,
		newTransport: func(c mqtt.Config) (mqtt.Transport, error) {
			return mqtt.NewPahoClient(c, logger.New("mqtt_client"))
		},
	}
	opts := []optimize.Option{optimize.WithLogger(logger.New("api"))}
	if store != nil {
		opts = append(opts, optimize.WithStore(store))
	}
	if cfg.Dataset.Path != "" {
		snap, err := dataset.Load(cfg.Dataset.Path)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("dataset: %w", err)
		}
		svc.dataset = &snap
		opts = append(opts, optimize.WithDataset(snap))
		logg.Infof("loaded dataset %s: %d trains, %d sections", cfg.Dataset.Path, len(snap.Trains), len(snap.Sections))
	}
	svc.API = optimize.NewServer(cfg.API, runner, opts...)
	return svc, nil
}

// Dataset returns the default snapshot, if one was configured.
func (s *Service) Dataset() (model.Snapshot, bool) {
	if s.dataset == nil {
		return model.Snapshot{}, false
	}
	return s.dataset.Clone(), true
}

// Optimize runs req, falling back to the default dataset when the request
// has no work, and records the result under trigger.
func (s *Service) Optimize(ctx context.Context, req optimizer.Request, trigger string) (model.OptimizationResult, error) {
	if d, ok := s.Dataset(); ok {
		req.Snapshot = req.Snapshot.OrDefault(d)
	}
	res, err := s.Runner.RunRequest(ctx, req)
	if err != nil {
		return res, err
	}
	s.record(ctx, res, trigger, req.Snapshot)
	return res, nil
}

// Disrupt applies d to the default dataset and recomputes.
func (s *Service) Disrupt(ctx context.Context, d realtime.Disruption, trigger string) (realtime.Outcome, error) {
	base, ok := s.Dataset()
	if !ok {
		return realtime.Outcome{Disruption: d}, errors.New("no dataset configured")
	}
	out, err := s.reopt.Handle(ctx, base, d)
	if err != nil {
		return out, err
	}
	s.record(ctx, out.Result, trigger, out.Snapshot)
	return out, nil
}

func (s *Service) record(ctx context.Context, res model.OptimizationResult, trigger string, snap model.Snapshot) {
	if s.store == nil {
		return
	}
	if err := s.store.Append(ctx, runlog.NewRecord(res, trigger, snap.TrainIDs(), time.Now().UTC())); err != nil {
		s.log.Errorf("run log append %s: %v", res.RunID, err)
	}
}

// Run starts the collectors and transports and blocks on the HTTP API until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := metrics.StartEventCollector(ctx, s.bus, s.sink)
	defer func() {
		cancel()
		<-done
	}()

	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if s.cfg.MQTT.Enabled() {
		l, err := s.startListener(ctx)
		if err != nil {
			return err
		}
		defer l.Stop()
	}
	return s.API.ListenAndServe(ctx)
}

func (s *Service) startListener(ctx context.Context) (*mqtt.Listener, error) {
	tr, err := s.newTransport(s.cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	base, _ := s.Dataset()
	l := mqtt.NewListener(s.cfg.MQTT, tr, s.reopt, base,
		mqtt.WithListenerLogger(logger.New("mqtt_listener")),
		mqtt.WithOutcomeHook(func(ctx context.Context, o realtime.Outcome) {
			s.record(ctx, o.Result, "mqtt", o.Snapshot)
		}),
	)
	if err := l.Start(ctx); err != nil {
		tr.Disconnect()
		return nil, err
	}
	return l, nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
