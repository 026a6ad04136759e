package telemetry

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log level")
	}

	cfg = DefaultConfig()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log format")
	}

	cfg = DefaultConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "jaeger"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported trace exporter")
	}

	cfg = DefaultConfig()
	cfg.Tracing.SamplingRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sampling rate above 1")
	}
}

func TestEventPublisherSyncDelivery(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{
		Enabled:      true,
		BufferSize:   8,
		MaxBatchSize: 4,
		EnableAsync:  false,
	})
	if err != nil {
		t.Fatalf("NewEventPublisher: %v", err)
	}

	var got []Event
	ep.Subscribe(func(e Event) {
		got = append(got, e)
	}, nil)

	if err := ep.PublishTransition("my-app", "created", "provisioning"); err != nil {
		t.Fatalf("PublishTransition: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(got))
	}
	e := got[0]
	if e.Type != EventTypeEnvironmentTransition {
		t.Errorf("unexpected event type %q", e.Type)
	}
	if e.Environment != "my-app" {
		t.Errorf("unexpected environment %q", e.Environment)
	}
	if e.Data["from_phase"] != "created" || e.Data["to_phase"] != "provisioning" {
		t.Errorf("unexpected phase data: %v", e.Data)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Error("event id and timestamp should be populated")
	}
}

func TestEventPublisherFilters(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{
		Enabled:      true,
		BufferSize:   8,
		MaxBatchSize: 4,
		EnableAsync:  false,
	})
	if err != nil {
		t.Fatalf("NewEventPublisher: %v", err)
	}

	var delivered int
	ep.Subscribe(func(e Event) { delivered++ }, FilterByEnvironment("my-app"))

	_ = ep.PublishCommandStarted("my-app", "provision")
	_ = ep.PublishCommandStarted("other", "provision")

	if delivered != 1 {
		t.Errorf("expected 1 delivered event after filtering, got %d", delivered)
	}
}

func TestDisabledEventPublisher(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewEventPublisher: %v", err)
	}
	if err := ep.PublishEnvironmentCreated("my-app"); err != nil {
		t.Errorf("disabled publisher should accept events silently: %v", err)
	}
}

func TestDisabledMetricsAreNoOp(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	// None of these may panic on the no-op instance.
	m.RecordTransition("created", "provisioning")
	m.RecordCommand("provision", "completed", time.Second)
	m.RecordStateSave("ok")
	m.RecordStateLoad("ok")
	m.RecordLockWait(time.Millisecond)
	m.RecordLockTimeout()
	m.RecordFailure("timeout")
	m.RecordTraceWritten()
	m.SetEnvironmentCount("running", 1)
}

func TestRecordTransitionWithoutDefault(t *testing.T) {
	SetDefault(nil)
	// Must not panic when no default telemetry is installed.
	RecordTransition("my-app", "envforge-vm-my-app", "created", "provisioning")
}
