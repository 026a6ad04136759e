package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the envforge system.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// Environment is the associated environment name, if applicable.
	Environment string `json:"environment,omitempty"`

	// Command is the associated lifecycle command, if applicable.
	Command string `json:"command,omitempty"`

	// TraceID is the associated failure trace id, if applicable.
	TraceID string `json:"trace_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeEnvironmentCreated    = "environment.created"
	EventTypeEnvironmentTransition = "environment.transition"
	EventTypeEnvironmentDestroyed  = "environment.destroyed"
	EventTypeCommandStarted        = "command.started"
	EventTypeCommandCompleted      = "command.completed"
	EventTypeCommandFailed         = "command.failed"
	EventTypeTraceWritten          = "trace.written"
	EventTypeStateSaved            = "state.saved"
	EventTypeError                 = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishEnvironmentCreated publishes an environment created event.
func (ep *EventPublisher) PublishEnvironmentCreated(environment string) error {
	return ep.Publish(Event{
		Type:        EventTypeEnvironmentCreated,
		Source:      "lifecycle",
		Environment: environment,
		Message:     fmt.Sprintf("Environment %s created", environment),
		Level:       EventLevelInfo,
	})
}

// PublishTransition publishes a phase transition event.
func (ep *EventPublisher) PublishTransition(environment, fromPhase, toPhase string) error {
	return ep.Publish(Event{
		Type:        EventTypeEnvironmentTransition,
		Source:      "lifecycle",
		Environment: environment,
		Message:     fmt.Sprintf("Environment %s transitioned from %s to %s", environment, fromPhase, toPhase),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"from_phase": fromPhase,
			"to_phase":   toPhase,
		},
	})
}

// PublishEnvironmentDestroyed publishes an environment destroyed event.
func (ep *EventPublisher) PublishEnvironmentDestroyed(environment string) error {
	return ep.Publish(Event{
		Type:        EventTypeEnvironmentDestroyed,
		Source:      "lifecycle",
		Environment: environment,
		Message:     fmt.Sprintf("Environment %s destroyed", environment),
		Level:       EventLevelInfo,
	})
}

// PublishCommandStarted publishes a command started event.
func (ep *EventPublisher) PublishCommandStarted(environment, command string) error {
	return ep.Publish(Event{
		Type:        EventTypeCommandStarted,
		Source:      "cli",
		Environment: environment,
		Command:     command,
		Message:     fmt.Sprintf("Command %s started for environment %s", command, environment),
		Level:       EventLevelInfo,
	})
}

// PublishCommandCompleted publishes a command completed event.
func (ep *EventPublisher) PublishCommandCompleted(environment, command string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:        EventTypeCommandCompleted,
		Source:      "cli",
		Environment: environment,
		Command:     command,
		Message:     fmt.Sprintf("Command %s completed for environment %s", command, environment),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishCommandFailed publishes a command failed event.
func (ep *EventPublisher) PublishCommandFailed(environment, command, traceID, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypeCommandFailed,
		Source:      "cli",
		Environment: environment,
		Command:     command,
		TraceID:     traceID,
		Message:     fmt.Sprintf("Command %s failed for environment %s: %s", command, environment, reason),
		Level:       EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishTraceWritten publishes a trace written event.
func (ep *EventPublisher) PublishTraceWritten(environment, traceID, path string) error {
	return ep.Publish(Event{
		Type:        EventTypeTraceWritten,
		Source:      "trace",
		Environment: environment,
		TraceID:     traceID,
		Message:     fmt.Sprintf("Failure trace written for environment %s: %s", environment, path),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"path": path,
		},
	})
}

// PublishStateSaved publishes a state saved event.
func (ep *EventPublisher) PublishStateSaved(environment, phase string) error {
	return ep.Publish(Event{
		Type:        EventTypeStateSaved,
		Source:      "stores",
		Environment: environment,
		Message:     fmt.Sprintf("Environment %s state saved in phase %s", environment, phase),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"phase": phase,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled || ep.cancel == nil {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByEnvironment creates a filter that only allows events for a specific environment.
func FilterByEnvironment(environment string) EventFilter {
	return func(event Event) bool {
		return event.Environment == environment
	}
}
