package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/activity"
	"github.com/saiset-co/sai-interaction/catalog"
	"github.com/saiset-co/sai-interaction/config"
	"github.com/saiset-co/sai-interaction/cron"
	"github.com/saiset-co/sai-interaction/events"
	"github.com/saiset-co/sai-interaction/health"
	"github.com/saiset-co/sai-interaction/kv"
	"github.com/saiset-co/sai-interaction/logger"
	"github.com/saiset-co/sai-interaction/metrics"
	"github.com/saiset-co/sai-interaction/notify"
	"github.com/saiset-co/sai-interaction/recency"
	"github.com/saiset-co/sai-interaction/server"
	"github.com/saiset-co/sai-interaction/session"
	"github.com/saiset-co/sai-interaction/store"
	"github.com/saiset-co/sai-interaction/types"
)

const sessionPruneJob = "session_prune"

// Service wires the managers together and owns their lifecycle. Start order
// follows the dependency direction; Stop reverses it so the HTTP surface
// goes down before the stores behind it.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc

	configManager types.ConfigManager
	logger        types.Logger
	metrics       types.MetricsManager
	healthManager types.HealthManager
	kvStore       types.KVStore
	recordStore   store.Store
	sessions      *session.Store
	recency       *recency.Tracker
	catalog       *catalog.Cache
	broker        types.EventBroker
	publisher     *events.Publisher
	consumer      *events.Consumer
	hub           *notify.Hub
	activity      *activity.Broadcaster
	cronManager   types.CronManager
	httpServer    *server.Server
}

func NewService(configPath string) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{ctx: ctx, cancel: cancel}

	if err := svc.initialize(configPath); err != nil {
		cancel()
		return nil, err
	}

	return svc, nil
}

func (s *Service) initialize(configPath string) error {
	configManager, err := config.NewConfigurationManager(configPath)
	if err != nil {
		return types.WrapError(err, "failed to initialize configuration")
	}
	s.configManager = configManager

	serviceConfig := configManager.GetConfig()

	serviceLogger, err := logger.NewLogger(serviceConfig.Logger)
	if err != nil {
		return types.WrapError(err, "failed to initialize logger")
	}
	s.logger = serviceLogger

	s.logger.Info("Initializing service",
		zap.String("name", serviceConfig.Name),
		zap.String("version", serviceConfig.Version))

	metricsManager, err := metricsOrNil(s.ctx, configManager, s.logger)
	if err != nil {
		return err
	}
	s.metrics = metricsManager

	s.healthManager = health.NewManager(s.ctx, s.logger)

	kvStore, err := kv.NewKVStore(s.ctx, configManager, s.logger, s.metrics)
	if err != nil {
		return types.WrapError(err, "failed to initialize kv store")
	}
	s.kvStore = kvStore

	recordStore, err := store.NewStore(s.ctx, configManager, s.logger)
	if err != nil {
		return types.WrapError(err, "failed to initialize record store")
	}
	s.recordStore = recordStore

	s.sessions = session.NewStore(s.logger)
	s.recency = recency.NewTracker(s.kvStore, s.logger, serviceConfig.Recency)
	s.catalog = catalog.NewCache(s.kvStore, s.recordStore, s.logger, serviceConfig.Catalog)

	if serviceConfig.Notify != nil && serviceConfig.Notify.Enabled {
		s.hub = notify.NewHub(s.ctx, s.logger, serviceConfig.Notify)
	}

	var notifier types.Notifier
	if s.hub != nil {
		notifier = s.hub
	}
	s.activity = activity.NewBroadcaster(s.recordStore, notifier, s.logger)

	if err := s.initializeEvents(configManager, serviceConfig); err != nil {
		return err
	}

	if err := s.initializeCron(configManager, serviceConfig); err != nil {
		return err
	}

	s.registerHealthCheckers()

	s.httpServer = server.NewServer(s.ctx, configManager, s.logger, server.Dependencies{
		Catalog:   s.catalog,
		Recency:   s.recency,
		Sessions:  s.sessions,
		Publisher: s.publisherOrNil(),
		Activity:  s.activity,
		Records:   s.recordStore,
		Health:    s.healthManager,
		Metrics:   s.metrics,
	})

	return nil
}

func (s *Service) initializeEvents(configManager types.ConfigManager, serviceConfig *types.ServiceConfig) error {
	broker, err := events.NewEventBroker(s.ctx, configManager, s.logger, s.metrics)
	if err != nil {
		if types.IsError(err, types.ErrEventsAreDisabled) {
			s.logger.Warn("Event broker disabled, interactions will be rejected")
			return nil
		}
		return types.WrapError(err, "failed to initialize event broker")
	}
	s.broker = broker

	source := ""
	if serviceConfig.Events != nil {
		source = serviceConfig.Events.Source
	}
	s.publisher = events.NewPublisher(s.broker, s.logger, source)

	s.consumer = events.NewConsumer(s.recency, s.activity, s.logger)
	if err := s.consumer.Register(s.broker); err != nil {
		return types.WrapError(err, "failed to register interaction consumer")
	}

	return nil
}

func (s *Service) initializeCron(configManager types.ConfigManager, serviceConfig *types.ServiceConfig) error {
	if serviceConfig.Cron == nil || !serviceConfig.Cron.Enabled {
		return nil
	}

	cronManager, err := cron.NewManager(s.ctx, configManager, s.logger)
	if err != nil {
		return types.WrapError(err, "failed to initialize cron manager")
	}
	s.cronManager = cronManager

	sessionConfig := serviceConfig.Session
	if sessionConfig == nil || !sessionConfig.PruneEnabled {
		return nil
	}

	schedule := sessionConfig.PruneSchedule
	if schedule == "" {
		schedule = "0 */5 * * * *"
	}
	maxIdle := sessionConfig.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}

	return s.cronManager.Add(sessionPruneJob, schedule, func() {
		pruned := s.sessions.Prune(maxIdle)
		if pruned > 0 {
			s.logger.Info("Pruned idle sessions", zap.Int("count", pruned))
		}
	})
}

func (s *Service) registerHealthCheckers() {
	s.healthManager.RegisterChecker("kv", func(ctx context.Context) types.HealthCheck {
		if err := s.kvStore.Ping(ctx); err != nil {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: err.Error()}
		}
		return types.HealthCheck{Status: types.StatusHealthy}
	})

	s.healthManager.RegisterChecker("store", func(ctx context.Context) types.HealthCheck {
		if !s.recordStore.IsRunning() {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: "record store not running"}
		}
		return types.HealthCheck{Status: types.StatusHealthy}
	})

	if s.broker != nil {
		s.healthManager.RegisterChecker("events", func(ctx context.Context) types.HealthCheck {
			if !s.broker.IsRunning() {
				return types.HealthCheck{Status: types.StatusUnhealthy, Message: "event broker not running"}
			}
			return types.HealthCheck{Status: types.StatusHealthy}
		})
	}
}

func (s *Service) Start() error {
	s.logger.Info("Starting service")

	managers := s.lifecycleManagers()
	for _, m := range managers {
		if m.manager == nil {
			continue
		}
		if err := m.manager.Start(); err != nil {
			return types.WrapError(err, "failed to start "+m.name)
		}
	}

	s.logger.Info("Service started")
	return nil
}

func (s *Service) Stop() error {
	s.logger.Info("Stopping service")

	managers := s.lifecycleManagers()
	for i := len(managers) - 1; i >= 0; i-- {
		m := managers[i]
		if m.manager == nil {
			continue
		}
		if err := m.manager.Stop(); err != nil {
			s.logger.Warn("Manager stop failed",
				zap.String("manager", m.name),
				zap.Error(err))
		}
	}

	s.cancel()
	_ = s.logger.Sync()

	return nil
}

// Run starts the service and blocks until an interrupt or termination
// signal arrives.
func (s *Service) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signals
	s.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

	return s.Stop()
}

type namedManager struct {
	name    string
	manager types.LifecycleManager
}

func (s *Service) lifecycleManagers() []namedManager {
	managers := []namedManager{
		{"health", s.healthManager},
		{"kv", s.kvStore},
		{"store", s.recordStore},
	}

	if s.metrics != nil {
		managers = append(managers, namedManager{"metrics", s.metrics})
	}
	if s.broker != nil {
		managers = append(managers, namedManager{"events", s.broker})
	}
	if s.hub != nil {
		managers = append(managers, namedManager{"notify", s.hub})
	}
	if s.cronManager != nil {
		managers = append(managers, namedManager{"cron", s.cronManager})
	}

	managers = append(managers, namedManager{"server", s.httpServer})

	return managers
}

func (s *Service) publisherOrNil() server.EventPublisher {
	if s.publisher == nil {
		return nil
	}
	return s.publisher
}

// metricsOrNil treats a disabled metrics manager as an absent one. Every
// consumer of the manager guards against nil.
func metricsOrNil(ctx context.Context, configManager types.ConfigManager, serviceLogger types.Logger) (types.MetricsManager, error) {
	metricsManager, err := metrics.NewMetricsManager(ctx, configManager, serviceLogger)
	if err != nil {
		if types.IsError(err, types.ErrMetricsIsDisabled) {
			return nil, nil
		}
		return nil, types.WrapError(err, "failed to initialize metrics")
	}
	return metricsManager, nil
}
