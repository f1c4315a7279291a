package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrServerNotRunning     = errors.New("server not running")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerStartFailed    = errors.New("server start failed")
)

var (
	ErrKVKeyEmpty         = errors.New("kv key empty")
	ErrKVUnavailable      = errors.New("kv store unavailable")
	ErrKVConnectionFailed = errors.New("kv connection failed")
	ErrKVTypeUnknown      = errors.New("kv type unknown")
	ErrKVIsDisabled       = errors.New("kv store is disabled")
)

var (
	ErrStoreTypeUnknown      = errors.New("record store type unknown")
	ErrRecordNotFound        = errors.New("record not found")
	ErrRecordInvalid         = errors.New("record invalid")
	ErrCollectionNotFound    = errors.New("collection not found")
	ErrStoreOperationFailed  = errors.New("record store operation failed")
	ErrStoreConnectionFailed = errors.New("record store connection failed")
)

var (
	ErrProductNotFound = errors.New("product not found")
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

var (
	ErrEventInvalid        = errors.New("event invalid")
	ErrEventPublishFailed  = errors.New("event publish failed")
	ErrEventBrokerStopped  = errors.New("event broker stopped")
	ErrEventTypeUnknown    = errors.New("event broker type unknown")
	ErrEventsAreDisabled   = errors.New("event broker is disabled")
	ErrEventHandlerIsNil   = errors.New("event handler is nil")
	ErrEventActionIsEmpty  = errors.New("event action is empty")
	ErrEventBrokerIsFull   = errors.New("event broker queue is full")
	ErrEventBrokerNotReady = errors.New("event broker not initialized")
)

var (
	ErrNotifyNotRunning   = errors.New("notifier not running")
	ErrNotifySendFailed   = errors.New("notification send failed")
	ErrNotifyUserIDEmpty  = errors.New("notification user id empty")
	ErrActivityInvalid    = errors.New("activity invalid")
	ErrActivityNotStored  = errors.New("activity not stored")
)

var (
	ErrCronJobNameIsEmpty = errors.New("cron job name is empty")
	ErrCronJobExists      = errors.New("cron job exists")
	ErrCronJobNotFound    = errors.New("cron job not found")
	ErrCronJobIsNil       = errors.New("cron job is nil")
)

var (
	ErrMetricsTypeUnknown = errors.New("metrics type unknown")
	ErrMetricsIsDisabled  = errors.New("metrics manager is disabled")
)

var (
	ErrLoggerTypeUnknown   = errors.New("logger type unknown")
	ErrLoggerConfigInvalid = errors.New("logger config invalid")
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrContextCancelled = errors.New("context cancelled")
	ErrNotSupported     = errors.New("not supported")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
