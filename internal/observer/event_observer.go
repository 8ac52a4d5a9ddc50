package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent represents an analysis or model lifecycle event
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id,omitempty"`
	ImageSHA1      string                 `json:"image_sha1,omitempty"`
	Model          string                 `json:"model,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// AnalysisStarted when analysis begins
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when analysis finishes successfully
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when the image is rejected or analysis aborts
	AnalysisFailed EventType = "analysis_failed"
	// ModelLoaded when a model session is ready
	ModelLoaded EventType = "model_loaded"
	// ModelLoadFailed when a model cannot be loaded and is skipped
	ModelLoadFailed EventType = "model_load_failed"
	// ModelRunFailed when a model errors during inference
	ModelRunFailed EventType = "model_run_failed"
	// ModelCancelled when a model misses its deadline
	ModelCancelled EventType = "model_cancelled"
	// QualityLow when the image quality score falls under the threshold
	QualityLow EventType = "quality_low"
	// CacheHit when a stored result is served
	CacheHit EventType = "cache_hit"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// Publish stamps and sends an event; a nil subject drops it.
func Publish(ctx context.Context, s Subject, event AnalysisEvent) {
	if s == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.NotifyObservers(ctx, event)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.ImageSHA1 != "" {
		fields["image_sha1"] = event.ImageSHA1
	}
	if event.Model != "" {
		fields["model"] = event.Model
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Info("Eye analysis started")
	case AnalysisCompleted:
		entry.Info("Eye analysis completed")
	case AnalysisFailed:
		entry.Error("Eye analysis failed")
	case ModelLoaded:
		entry.Info("Model loaded")
	case ModelLoadFailed:
		entry.Warn("Model load failed, skipping")
	case ModelRunFailed:
		entry.Warn("Model inference failed")
	case ModelCancelled:
		entry.Warn("Model inference cancelled")
	case QualityLow:
		entry.Warn("Low image quality")
	case CacheHit:
		entry.Debug("Serving cached analysis")
	default:
		entry.Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects metrics from analysis events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalAnalyses       int64
	successfulAnalyses  int64
	failedAnalyses      int64
	cacheHits           int64
	lowQuality          int64
	totalProcessingTime time.Duration
	modelFailures       map[string]int64
	modelCancellations  map[string]int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		modelFailures:      make(map[string]int64),
		modelCancellations: make(map[string]int64),
	}
}

// OnEvent handles analysis events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalAnalyses++
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalProcessingTime += event.ProcessingTime
	case AnalysisFailed:
		o.failedAnalyses++
	case CacheHit:
		o.cacheHits++
	case QualityLow:
		o.lowQuality++
	case ModelRunFailed, ModelLoadFailed:
		o.modelFailures[event.Model]++
	case ModelCancelled:
		o.modelCancellations[event.Model]++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.successfulAnalyses > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulAnalyses)
	}

	failures := make(map[string]int64, len(o.modelFailures))
	for k, v := range o.modelFailures {
		failures[k] = v
	}
	cancellations := make(map[string]int64, len(o.modelCancellations))
	for k, v := range o.modelCancellations {
		cancellations[k] = v
	}

	return map[string]interface{}{
		"total_analyses":        o.totalAnalyses,
		"successful_analyses":   o.successfulAnalyses,
		"failed_analyses":       o.failedAnalyses,
		"cache_hits":            o.cacheHits,
		"low_quality_images":    o.lowQuality,
		"total_processing_time": o.totalProcessingTime.String(),
		"avg_processing_time":   avgProcessingTime.String(),
		"model_failures":        failures,
		"model_cancellations":   cancellations,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	sync      bool
}

// NewEventPublisher creates a publisher that notifies observers concurrently
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// NewSyncEventPublisher creates a publisher that notifies observers inline,
// in subscription order.
func NewSyncEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
		sync:      true,
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		if p.sync {
			notify(ctx, observer, event)
			continue
		}
		go notify(ctx, observer, event)
	}
}

func notify(ctx context.Context, obs Observer, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
