package persistence

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// target names the connection and collection an operation runs against.
type target struct {
	connection string
	collection string
}

// emitEvent is a helper method to emit events
func (a *Adapter) emitEvent(event Event) {
	if a.bus != nil {
		a.bus.Emit(string(event.Type), event)
	}
}

// withEventEmission wraps an operation with start, success and failure
// events, and records its metrics.
func (a *Adapter) withEventEmission(
	t target,
	operation string,
	startEventType EventType,
	successEventType EventType,
	failedEventType EventType,
	input any,
	queryParam any,
	fn func() (any, error),
) (any, error) {
	startTime := time.Now()

	a.emitEvent(createEvent(startEventType, operation, t.connection, t.collection, input, nil, queryParam, nil, nil, startTime))

	result, err := fn()

	OperationDuration.WithLabelValues(t.connection, t.collection, operation).Observe(time.Since(startTime).Seconds())
	if err != nil {
		OperationsTotal.WithLabelValues(t.connection, t.collection, operation, "error").Inc()
		errStr := err.Error()
		var ve *ValidationError
		failEvent := createEvent(failedEventType, operation, t.connection, t.collection, input, nil, queryParam, &errStr, nil, startTime)
		if errors.As(err, &ve) {
			failEvent.Issues = ve.Issues
		}
		a.emitEvent(failEvent)
		a.logger.Error("operation failed",
			zap.String("operation", operation),
			zap.String("connection", t.connection),
			zap.String("collection", t.collection),
			zap.Error(err))
		return nil, err
	}

	OperationsTotal.WithLabelValues(t.connection, t.collection, operation, "success").Inc()
	a.emitEvent(createEvent(successEventType, operation, t.connection, t.collection, input, result, queryParam, nil, nil, startTime))
	return result, nil
}

// RegisterSubscription registers a callback for an Adapter event. It returns
// a unique ID that can be used to unregister the subscription later.
func (a *Adapter) RegisterSubscription(options RegisterSubscriptionOptions) string {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	unsubscribe := a.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	a.subscriptions[id] = &SubscriptionInfo{
		Id:          &id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: unsubscribe,
	}
	return id
}

// UnregisterSubscription removes a subscription by its ID.
func (a *Adapter) UnregisterSubscription(id string) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	if info, ok := a.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(a.subscriptions, id)
	}
}

// Subscriptions returns a list of all currently active subscriptions.
func (a *Adapter) Subscriptions() []SubscriptionInfo {
	a.subMu.RLock()
	defer a.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(a.subscriptions))
	for _, sub := range a.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}
