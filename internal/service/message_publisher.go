// Package service implements the business logic for forms, sessions and
// webhook delivery.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careform/intake/internal/datatypes"
)

// eventChanBufferSize bounds the publish channel; a full buffer drops events
// rather than blocking request handlers.
const eventChanBufferSize = 1024

// Event is one intake lifecycle occurrence fanned out to providers.
type Event struct {
	ID            uuid.UUID
	Type          datatypes.EventType
	Timestamp     time.Time
	Data          any
	ChangedFields []string
}

// MessagePublisher publishes intake events without blocking the caller.
type MessagePublisher interface {
	PublishEvent(ctx context.Context, eventType datatypes.EventType, data any)
	PublishEventWithChangedFields(ctx context.Context, eventType datatypes.EventType, data any, changedFields []string)
}

// eventPublisher receives fully-formed events. Providers (webhooks today,
// email later) implement this.
type eventPublisher interface {
	PublishEvent(ctx context.Context, event Event)
}

// MessagePublisherManager fans events out to every registered provider from a
// single background worker.
type MessagePublisherManager struct {
	eventChan chan Event
	providers []eventPublisher
	wg        sync.WaitGroup
}

// NewMessagePublisherManager creates the manager and starts its worker.
func NewMessagePublisherManager() *MessagePublisherManager {
	m := &MessagePublisherManager{
		eventChan: make(chan Event, eventChanBufferSize),
		providers: make([]eventPublisher, 0),
	}

	m.wg.Add(1)
	go m.startWorker()

	return m
}

// RegisterProvider adds a provider. Must only be called during startup,
// before any events are published.
func (m *MessagePublisherManager) RegisterProvider(provider eventPublisher) {
	m.providers = append(m.providers, provider)
}

// PublishEvent publishes an event with no changed fields.
func (m *MessagePublisherManager) PublishEvent(ctx context.Context, eventType datatypes.EventType, data any) {
	m.PublishEventWithChangedFields(ctx, eventType, data, nil)
}

// PublishEventWithChangedFields enqueues an event for fan-out. Never blocks:
// when the buffer is full the event is dropped with a warning.
func (m *MessagePublisherManager) PublishEventWithChangedFields(_ context.Context, eventType datatypes.EventType, data any, changedFields []string) {
	event := Event{
		ID:            uuid.Must(uuid.NewV7()),
		Type:          eventType,
		Timestamp:     time.Now(),
		Data:          data,
		ChangedFields: changedFields,
	}

	select {
	case m.eventChan <- event:
		slog.Debug("event published", "event_id", event.ID, "event_type", event.Type)
	default:
		slog.Warn("event channel full, event dropped", "event_id", event.ID, "event_type", event.Type)
	}
}

// startWorker drains the channel and hands each event to every provider. A
// per-event timeout keeps one stuck provider from freezing the worker.
func (m *MessagePublisherManager) startWorker() {
	defer m.wg.Done()

	for event := range m.eventChan {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		for _, provider := range m.providers {
			provider.PublishEvent(ctx, event)
		}
		cancel()
	}
}

// Shutdown stops the worker after draining buffered events.
func (m *MessagePublisherManager) Shutdown() {
	close(m.eventChan)
	m.wg.Wait()
}
