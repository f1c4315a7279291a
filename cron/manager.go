package cron

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
)

type Manager struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   types.Logger
	cron     *cron.Cron
	timezone *time.Location
	jobs     map[string]cron.EntryID
	mu       sync.RWMutex
	running  int32
}

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger) (types.CronManager, error) {
	timezoneStr := "UTC"
	if cronConfig := config.GetConfig().Cron; cronConfig != nil && cronConfig.Timezone != "" {
		timezoneStr = cronConfig.Timezone
	}

	timezone, err := time.LoadLocation(timezoneStr)
	if err != nil {
		timezone = time.UTC
	}

	cronL := safeCronLogger{logger: logger}

	managerCtx, cancel := context.WithCancel(ctx)

	return &Manager{
		ctx:    managerCtx,
		cancel: cancel,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(timezone),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronL)),
		),
		timezone: timezone,
		jobs:     make(map[string]cron.EntryID),
	}, nil
}

func (m *Manager) Add(jobName, spec string, job func()) error {
	if jobName == "" {
		return types.ErrCronJobNameIsEmpty
	}
	if job == nil {
		return types.ErrCronJobIsNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[jobName]; exists {
		return types.Errorf(types.ErrCronJobExists, "job: %s", jobName)
	}

	entryID, err := m.cron.AddFunc(spec, job)
	if err != nil {
		return types.WrapError(err, "failed to schedule cron job")
	}

	m.jobs[jobName] = entryID

	m.logger.Info("Cron job scheduled",
		zap.String("job", jobName),
		zap.String("spec", spec))

	return nil
}

func (m *Manager) Remove(jobName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entryID, exists := m.jobs[jobName]
	if !exists {
		return types.Errorf(types.ErrCronJobNotFound, "job: %s", jobName)
	}

	m.cron.Remove(entryID)
	delete(m.jobs, jobName)

	return nil
}

func (m *Manager) Start() error {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	m.cron.Start()

	m.logger.Info("Cron manager started",
		zap.String("timezone", m.timezone.String()))

	return nil
}

func (m *Manager) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return types.ErrServerNotRunning
	}

	stopCtx := m.cron.Stop()
	m.cancel()

	select {
	case <-stopCtx.Done():
		m.logger.Info("Cron manager stopped gracefully")
	case <-time.After(10 * time.Second):
		m.logger.Warn("Cron manager stop timeout, some jobs may still be running")
	}

	return nil
}

func (m *Manager) IsRunning() bool {
	return atomic.LoadInt32(&m.running) == 1
}

type safeCronLogger struct {
	logger types.Logger
}

func (l safeCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l safeCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
