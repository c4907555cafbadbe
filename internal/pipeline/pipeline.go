package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"sessionwatch/internal/analyzer"
	"sessionwatch/internal/logger"
	"sessionwatch/internal/metrics"
	"sessionwatch/internal/sessiontable"
	"sessionwatch/pkg/models"
)

// Config controls pipeline behavior.
type Config struct {
	QueueSize     int
	SinkWorkers   int
	RetryAttempts int
	RetryBackoff  time.Duration
}

type sinkItem struct {
	event  *models.Event
	alerts []*models.Alert
}

// Pipeline turns raw events into session state updates and alerts.
// The per-session critical section covers the state update and
// analysis only; persistence and publication run on sink workers off
// the ingestion path.
type Pipeline struct {
	table       *sessiontable.Table
	analyzer    *analyzer.Analyzer
	eventWriter EventWriter
	alertWriter AlertWriter
	publisher   Publisher
	cfg         Config
	now         func() time.Time

	mu     sync.RWMutex
	queue  chan sinkItem
	closed bool
	wg     sync.WaitGroup
}

// New creates a pipeline. Writers and publisher may be nil; the
// matching hand-off is then skipped.
func New(table *sessiontable.Table, an *analyzer.Analyzer, eventWriter EventWriter, alertWriter AlertWriter, publisher Publisher, cfg Config) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.SinkWorkers <= 0 {
		cfg.SinkWorkers = 4
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	return &Pipeline{
		table:       table,
		analyzer:    an,
		eventWriter: eventWriter,
		alertWriter: alertWriter,
		publisher:   publisher,
		cfg:         cfg,
		now:         time.Now,
		queue:       make(chan sinkItem, cfg.QueueSize),
	}
}

// Start launches the sink workers. ctx bounds their retry/backoff;
// items already queued are still drained after cancellation.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.SinkWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.sinkLoop(ctx)
		}()
	}
}

// Submit validates, stamps and processes one raw event. A nil return
// means the event was accepted; ValidationError means it was rejected
// before any state mutation.
func (p *Pipeline) Submit(ctx context.Context, raw *models.RawEvent) error {
	if raw == nil {
		return &ValidationError{Reason: "empty payload"}
	}
	eventType, ok := models.ParseEventType(raw.EventType)
	if !ok {
		metrics.ValidationFailures.Inc()
		return &ValidationError{Reason: "unknown event_type: " + raw.EventType}
	}
	if raw.UserID == "" {
		metrics.ValidationFailures.Inc()
		return &ValidationError{Reason: "user_id is required"}
	}
	if raw.SessionID == "" {
		metrics.ValidationFailures.Inc()
		return &ValidationError{Reason: "session_id is required"}
	}

	meta := raw.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	event := &models.Event{
		UserID:            raw.UserID,
		SessionID:         raw.SessionID,
		EventType:         eventType,
		Timestamp:         p.now().UTC(),
		Metadata:          meta,
		DeviceFingerprint: raw.DeviceFingerprint,
		IPAddress:         raw.IPAddress,
		UserAgent:         raw.UserAgent,
	}
	metrics.EventsIngested.WithLabelValues(string(eventType)).Inc()

	alerts := p.process(ctx, event)
	for _, alert := range alerts {
		metrics.AlertsFired.WithLabelValues(string(alert.Severity)).Inc()
		logger.Warnf("Security alert for session %s: %s", alert.SessionID, alert.Description)
	}

	p.dispatch(sinkItem{event: event, alerts: alerts})
	return nil
}

func (p *Pipeline) process(ctx context.Context, event *models.Event) []*models.Alert {
	if event.EventType == models.EventSessionStart {
		p.table.UpsertStart(event.SessionID, event.UserID, event.Timestamp)
		metrics.ActiveSessions.Set(float64(p.table.Len()))
	}

	var alerts []*models.Alert
	_, err := p.table.Apply(event.SessionID, func(s *models.Session) {
		switch event.EventType {
		case models.EventHeartbeat:
			s.LastHeartbeat = event.Timestamp
		case models.EventSessionEnd:
			s.Status = models.StatusEnded
		case models.EventTabSwitch:
			s.TabSwitchTimes = append(s.TabSwitchTimes, event.Timestamp)
		}
		if event.EventType != models.EventSessionStart {
			s.EventCount++
		}
		alerts = p.analyzer.Analyze(ctx, event, s)
	})
	if errors.Is(err, sessiontable.ErrNotFound) {
		// Out-of-order delivery is expected; the event is accepted and
		// persisted but there is no session to update or analyze.
		logger.Debugf("Event %s for unknown session %s; analysis skipped", event.EventType, event.SessionID)
		return nil
	}
	return alerts
}

// dispatch hands the event and alerts to the sink workers without
// blocking ingestion. Overflow is counted and logged, not waited out.
func (p *Pipeline) dispatch(item sinkItem) {
	if p.eventWriter == nil && p.alertWriter == nil && p.publisher == nil {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- item:
	default:
		metrics.SinkDropped.Inc()
		logger.Warnf("Sink queue full; dropping write for session %s", item.event.SessionID)
	}
}

func (p *Pipeline) sinkLoop(ctx context.Context) {
	for item := range p.queue {
		if p.eventWriter != nil {
			if err := p.withRetry(ctx, func() error {
				return p.eventWriter.WriteEvent(ctx, item.event)
			}); err != nil {
				metrics.SinkWriteFailures.WithLabelValues("events").Inc()
				logger.Errorf("Failed to store event for session %s: %v", item.event.SessionID, err)
			}
		}
		if p.alertWriter != nil {
			for _, alert := range item.alerts {
				if err := p.withRetry(ctx, func() error {
					return p.alertWriter.WriteAlert(ctx, alert)
				}); err != nil {
					metrics.SinkWriteFailures.WithLabelValues("alerts").Inc()
					logger.Errorf("Failed to store alert %s: %v", alert.AlertID, err)
				}
			}
		}
		if p.publisher != nil {
			if err := p.publisher.Publish(ctx, item.event); err != nil {
				metrics.SinkWriteFailures.WithLabelValues("publish").Inc()
				logger.Debugf("Publish failed for session %s: %v", item.event.SessionID, err)
			}
		}
	}
}

func (p *Pipeline) withRetry(ctx context.Context, fn func() error) error {
	var err error
	backoff := p.cfg.RetryBackoff
	for attempt := 0; attempt < p.cfg.RetryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return err
		}
		backoff *= 2
	}
	return err
}

// Close drains the sink queue and closes the writers. Submit calls
// after Close are still processed in memory but no longer persisted.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()

	var first error
	closeOnce := func(name string, c interface{ Close() error }) {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil {
			logger.Errorf("Failed to close %s: %v", name, err)
			if first == nil {
				first = err
			}
		}
	}
	closeOnce("event writer", p.eventWriter)
	// Event and alert writers may share one store.
	if interface{}(p.alertWriter) != interface{}(p.eventWriter) {
		closeOnce("alert writer", p.alertWriter)
	}
	closeOnce("publisher", p.publisher)
	return first
}
