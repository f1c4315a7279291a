package events

import (
	"context"
	"time"

	"github.com/saiset-co/sai-interaction/types"
)

var customBrokerCreators = make(map[string]types.EventBrokerCreator)

func RegisterEventBroker(brokerName string, creator types.EventBrokerCreator) {
	customBrokerCreators[brokerName] = creator
}

func NewEventBroker(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) (types.EventBroker, error) {
	eventsConfig := config.GetConfig().Events

	if eventsConfig == nil || !eventsConfig.Enabled {
		return nil, types.ErrEventsAreDisabled
	}

	var impl types.EventBroker
	var err error

	switch eventsConfig.Type {
	case "", "channel":
		impl, err = NewChannelBroker(ctx, logger, eventsConfig)
	default:
		if creator, exists := customBrokerCreators[eventsConfig.Type]; exists {
			impl, err = creator(eventsConfig.Config)
		} else {
			return nil, types.Errorf(types.ErrEventTypeUnknown, "type: %s", eventsConfig.Type)
		}
	}

	if err != nil {
		return nil, err
	}

	return newInstrumentedBroker(metrics, impl), nil
}

type instrumentedBroker struct {
	impl    types.EventBroker
	metrics types.MetricsManager
}

func newInstrumentedBroker(metrics types.MetricsManager, impl types.EventBroker) types.EventBroker {
	return &instrumentedBroker{
		impl:    impl,
		metrics: metrics,
	}
}

func (ib *instrumentedBroker) Publish(action string, payload interface{}) error {
	start := time.Now()
	err := ib.impl.Publish(action, payload)

	result := "success"
	if err != nil {
		result = "error"
	}

	ib.recordMetric("publish", result, action, time.Since(start))
	return err
}

func (ib *instrumentedBroker) Subscribe(action string, handler types.EventHandler) error {
	return ib.impl.Subscribe(action, handler)
}

func (ib *instrumentedBroker) Unsubscribe(action string) error {
	return ib.impl.Unsubscribe(action)
}

func (ib *instrumentedBroker) Start() error {
	return ib.impl.Start()
}

func (ib *instrumentedBroker) Stop() error {
	return ib.impl.Stop()
}

func (ib *instrumentedBroker) IsRunning() bool {
	return ib.impl.IsRunning()
}

func (ib *instrumentedBroker) recordMetric(operation, result, action string, duration time.Duration) {
	if ib.metrics == nil {
		return
	}

	counter := ib.metrics.Counter("event_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
		"action":    action,
	})
	counter.Inc()

	histogram := ib.metrics.Histogram("event_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"operation": operation, "action": action},
	)
	histogram.Observe(duration.Seconds())
}
