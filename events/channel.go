package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-interaction/types"
	"github.com/saiset-co/sai-interaction/utils"
)

type ChannelConfig struct {
	BufferSize     int           `json:"buffer_size"`
	HandlerTimeout time.Duration `json:"handler_timeout"`
	MaxAttempts    int           `json:"max_attempts"`
	Source         string        `json:"source"`
}

// ChannelBroker is an in-process event channel: publishers enqueue onto a
// buffered channel and a dispatch loop fans messages out to subscribed
// handlers. Delivery is at-least-once; a failing handler gets the message
// redelivered up to MaxAttempts before it is dropped with a log line.
type ChannelBroker struct {
	ctx           context.Context
	cancel        context.CancelFunc
	logger        types.Logger
	config        *ChannelConfig
	send          chan *types.EventMessage
	subscriptions map[string][]types.EventHandler
	subsMu        sync.RWMutex
	dispatchDone  chan struct{}
	started       int32
}

func NewChannelBroker(ctx context.Context, logger types.Logger, config *types.EventsConfig) (types.EventBroker, error) {
	chConfig := &ChannelConfig{
		BufferSize:     256,
		HandlerTimeout: 30 * time.Second,
		MaxAttempts:    2,
		Source:         "channel-broker",
	}

	if config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, chConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal channel broker config")
		}
	}

	brokerCtx, cancel := context.WithCancel(ctx)

	return &ChannelBroker{
		ctx:           brokerCtx,
		cancel:        cancel,
		logger:        logger,
		config:        chConfig,
		send:          make(chan *types.EventMessage, chConfig.BufferSize),
		subscriptions: make(map[string][]types.EventHandler),
		dispatchDone:  make(chan struct{}),
	}, nil
}

// Publish is fire-and-forget: it confirms the enqueue, never the handling.
// A full queue is surfaced to the caller so a systemic outage is visible.
func (b *ChannelBroker) Publish(action string, payload interface{}) error {
	if action == "" {
		return types.ErrEventActionIsEmpty
	}
	if !b.IsRunning() {
		return types.ErrEventBrokerNotReady
	}

	message := &types.EventMessage{
		Action:    action,
		Payload:   payload,
		Timestamp: time.Now(),
		Source:    b.config.Source,
		MessageID: uuid.New().String(),
		Attempt:   1,
	}

	select {
	case b.send <- message:
		b.logger.Debug("Event queued",
			zap.String("action", action),
			zap.String("message_id", message.MessageID))
		return nil
	case <-b.ctx.Done():
		return types.ErrEventBrokerStopped
	default:
		b.logger.Error("Event queue is full, rejecting message",
			zap.String("action", action),
			zap.String("message_id", message.MessageID))
		return types.Errorf(types.ErrEventBrokerIsFull, "action: %s", action)
	}
}

func (b *ChannelBroker) Subscribe(action string, handler types.EventHandler) error {
	if action == "" {
		return types.ErrEventActionIsEmpty
	}
	if handler == nil {
		return types.ErrEventHandlerIsNil
	}

	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	b.subscriptions[action] = append(b.subscriptions[action], handler)

	b.logger.Debug("Subscribed to action",
		zap.String("action", action),
		zap.Int("total_handlers", len(b.subscriptions[action])))

	return nil
}

func (b *ChannelBroker) Unsubscribe(action string) error {
	if action == "" {
		return types.ErrEventActionIsEmpty
	}

	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	delete(b.subscriptions, action)
	return nil
}

func (b *ChannelBroker) Start() error {
	if !atomic.CompareAndSwapInt32(&b.started, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	go b.dispatchLoop()

	b.logger.Info("Channel event broker started",
		zap.Int("buffer_size", b.config.BufferSize),
		zap.Int("max_attempts", b.config.MaxAttempts))

	return nil
}

func (b *ChannelBroker) Stop() error {
	if !atomic.CompareAndSwapInt32(&b.started, 1, 0) {
		return types.ErrServerNotRunning
	}

	b.cancel()

	select {
	case <-b.dispatchDone:
		b.logger.Info("Channel event broker stopped gracefully")
	case <-time.After(10 * time.Second):
		b.logger.Warn("Channel event broker stop timeout")
	}

	return nil
}

func (b *ChannelBroker) IsRunning() bool {
	return atomic.LoadInt32(&b.started) == 1
}

func (b *ChannelBroker) dispatchLoop() {
	defer close(b.dispatchDone)

	for {
		select {
		case <-b.ctx.Done():
			b.drain()
			return
		case message := <-b.send:
			b.dispatch(message)
		}
	}
}

// drain delivers whatever is still buffered at shutdown before giving up the
// at-least-once promise for this process.
func (b *ChannelBroker) drain() {
	for {
		select {
		case message := <-b.send:
			b.dispatch(message)
		default:
			return
		}
	}
}

func (b *ChannelBroker) dispatch(message *types.EventMessage) {
	b.subsMu.RLock()
	handlers := make([]types.EventHandler, len(b.subscriptions[message.Action]))
	copy(handlers, b.subscriptions[message.Action])
	b.subsMu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("No handlers for action",
			zap.String("action", message.Action),
			zap.String("message_id", message.MessageID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.config.HandlerTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	for i, handler := range handlers {
		h := handler
		handlerIndex := i

		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}

			err := b.invoke(h, message)
			if err != nil {
				b.logger.Error("Event handler failed",
					zap.String("action", message.Action),
					zap.String("message_id", message.MessageID),
					zap.Int("handler_index", handlerIndex),
					zap.Int("attempt", message.Attempt),
					zap.Error(err))
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		b.redeliver(message)
	}
}

func (b *ChannelBroker) invoke(handler types.EventHandler, message *types.EventMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("action", message.Action),
				zap.String("message_id", message.MessageID),
				zap.Any("panic", r))
			err = types.NewErrorf("handler panic: %v", r)
		}
	}()

	return handler(message)
}

func (b *ChannelBroker) redeliver(message *types.EventMessage) {
	if message.Attempt >= b.config.MaxAttempts {
		b.logger.Error("Dropping event after max delivery attempts",
			zap.String("action", message.Action),
			zap.String("message_id", message.MessageID),
			zap.Int("attempts", message.Attempt))
		return
	}

	message.Attempt++

	select {
	case b.send <- message:
	default:
		b.logger.Error("Event queue full during redelivery, dropping message",
			zap.String("action", message.Action),
			zap.String("message_id", message.MessageID))
	}
}
