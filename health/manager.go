package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-interaction/types"
)

type Manager struct {
	ctx          context.Context
	cancel       context.CancelFunc
	logger       types.Logger
	checkers     map[string]types.HealthChecker
	startTime    time.Time
	mu           sync.RWMutex
	checkTimeout time.Duration
	running      int32
}

func NewManager(ctx context.Context, logger types.Logger) *Manager {
	managerCtx, cancel := context.WithCancel(ctx)

	return &Manager{
		ctx:          managerCtx,
		cancel:       cancel,
		logger:       logger,
		checkers:     make(map[string]types.HealthChecker),
		checkTimeout: 5 * time.Second,
	}
}

func (hm *Manager) RegisterChecker(name string, checker types.HealthChecker) {
	hm.mu.Lock()
	hm.checkers[name] = checker
	hm.mu.Unlock()
}

func (hm *Manager) Check(ctx context.Context) types.HealthReport {
	hm.mu.RLock()
	checkers := make(map[string]types.HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	hm.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, hm.checkTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(checkCtx)
	results := make(map[string]types.HealthCheck, len(checkers))
	var resultMu sync.Mutex

	for name, checker := range checkers {
		name, checker := name, checker
		g.Go(func() error {
			result := hm.executeCheck(gCtx, name, checker)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		hm.logger.Warn("Health check run incomplete", zap.Error(err))
	}

	return hm.buildReport(results)
}

func (hm *Manager) Start() error {
	if !atomic.CompareAndSwapInt32(&hm.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	hm.startTime = time.Now()
	hm.logger.Info("Health manager started")
	return nil
}

func (hm *Manager) Stop() error {
	if !atomic.CompareAndSwapInt32(&hm.running, 1, 0) {
		return types.ErrServerNotRunning
	}

	hm.cancel()
	hm.logger.Info("Health manager stopped gracefully")
	return nil
}

func (hm *Manager) IsRunning() bool {
	return atomic.LoadInt32(&hm.running) == 1
}

func (hm *Manager) executeCheck(ctx context.Context, name string, checker types.HealthChecker) (result types.HealthCheck) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = types.HealthCheck{
				Name:      name,
				Status:    types.StatusUnhealthy,
				Message:   fmt.Sprintf("checker panicked: %v", r),
				LastCheck: time.Now(),
				Duration:  time.Since(start),
			}
		}
	}()

	result = checker(ctx)
	result.Name = name
	result.LastCheck = time.Now()
	result.Duration = time.Since(start)

	return result
}

func (hm *Manager) buildReport(results map[string]types.HealthCheck) types.HealthReport {
	report := types.HealthReport{
		Status:    types.StatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.startTime),
		Checks:    results,
	}

	for _, check := range results {
		report.Summary.Total++
		switch check.Status {
		case types.StatusHealthy:
			report.Summary.Healthy++
		case types.StatusUnhealthy:
			report.Summary.Unhealthy++
			report.Status = types.StatusUnhealthy
		default:
			report.Summary.Unknown++
		}
	}

	return report
}
