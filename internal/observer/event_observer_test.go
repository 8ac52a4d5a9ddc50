package observer

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []EventType
}

func (r *recordingObserver) OnEvent(_ context.Context, e AnalysisEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.EventType)
}

func (r *recordingObserver) GetObserverName() string { return "recording" }

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, AnalysisEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string               { return "panicking" }

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, AnalysisEvent{EventType: AnalysisStarted})
	m.OnEvent(ctx, AnalysisEvent{EventType: AnalysisStarted})
	m.OnEvent(ctx, AnalysisEvent{EventType: AnalysisCompleted, ProcessingTime: 2 * time.Second})
	m.OnEvent(ctx, AnalysisEvent{EventType: AnalysisFailed})
	m.OnEvent(ctx, AnalysisEvent{EventType: ModelRunFailed, Model: "effnet"})
	m.OnEvent(ctx, AnalysisEvent{EventType: ModelLoadFailed, Model: "effnet"})
	m.OnEvent(ctx, AnalysisEvent{EventType: ModelCancelled, Model: "vit"})
	m.OnEvent(ctx, AnalysisEvent{EventType: CacheHit})

	metrics := m.GetMetrics()
	if metrics["total_analyses"] != int64(2) {
		t.Errorf("total_analyses = %v, want 2", metrics["total_analyses"])
	}
	if metrics["successful_analyses"] != int64(1) {
		t.Errorf("successful_analyses = %v, want 1", metrics["successful_analyses"])
	}
	if metrics["failed_analyses"] != int64(1) {
		t.Errorf("failed_analyses = %v, want 1", metrics["failed_analyses"])
	}
	if metrics["cache_hits"] != int64(1) {
		t.Errorf("cache_hits = %v, want 1", metrics["cache_hits"])
	}
	if metrics["avg_processing_time"] != "2s" {
		t.Errorf("avg_processing_time = %v, want 2s", metrics["avg_processing_time"])
	}
	failures := metrics["model_failures"].(map[string]int64)
	if failures["effnet"] != 2 {
		t.Errorf("effnet failures = %d, want 2", failures["effnet"])
	}
	cancelled := metrics["model_cancellations"].(map[string]int64)
	if cancelled["vit"] != 1 {
		t.Errorf("vit cancellations = %d, want 1", cancelled["vit"])
	}
}

func TestSyncPublisherOrderAndPanicRecovery(t *testing.T) {
	p := NewSyncEventPublisher()
	rec := &recordingObserver{}
	p.Subscribe(panickingObserver{})
	p.Subscribe(rec)

	Publish(context.Background(), p, AnalysisEvent{EventType: ModelLoaded})
	Publish(context.Background(), p, AnalysisEvent{EventType: AnalysisCompleted})

	if len(rec.events) != 2 || rec.events[0] != ModelLoaded || rec.events[1] != AnalysisCompleted {
		t.Fatalf("events = %v", rec.events)
	}

	p.Unsubscribe(rec)
	Publish(context.Background(), p, AnalysisEvent{EventType: CacheHit})
	if len(rec.events) != 2 {
		t.Errorf("unsubscribed observer still notified: %v", rec.events)
	}
}

func TestPublishNilSubject(t *testing.T) {
	Publish(context.Background(), nil, AnalysisEvent{EventType: AnalysisStarted})
}
