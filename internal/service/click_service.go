// Package service orchestrates the click-processing pipeline: for every
// redirect event it runs a fraud-check job and a click-log job on an
// unordered worker pool, with bounded retries. Failures here never reach
// the visitor; the redirect has already happened.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/arpitbanna/url-shortener/internal/enrich"
	"github.com/arpitbanna/url-shortener/internal/fingerprint"
	"github.com/arpitbanna/url-shortener/internal/fraud"
	"github.com/arpitbanna/url-shortener/internal/metrics"
	"github.com/arpitbanna/url-shortener/internal/models"
	"github.com/arpitbanna/url-shortener/internal/repo/interfaces"
	"github.com/arpitbanna/url-shortener/internal/sequence"
	"github.com/arpitbanna/url-shortener/internal/utils"
)

// SuspiciousReason is the classification written with every flagged click.
const SuspiciousReason = "heuristic_detected"

// Archiver stores raw click events in object storage, best-effort.
type Archiver interface {
	Archive(ctx context.Context, eventID string, event *models.ClickEvent, timestamp time.Time) error
}

type Config struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

type ClickService struct {
	repo     interfaces.ClickRepo
	engine   *fraud.Engine
	tracker  *sequence.Tracker
	geo      enrich.GeoLookup
	archiver Archiver

	maxRetries int
	retryDelay time.Duration

	tasks chan func()
	wg    sync.WaitGroup

	metrics *Metrics
}

type Metrics struct {
	mu              sync.RWMutex
	TotalProcessed  int64
	TotalFailed     int64
	TotalSuspicious int64
	LastProcessedAt time.Time
}

type MetricsData struct {
	TotalProcessed  int64
	TotalFailed     int64
	TotalSuspicious int64
	LastProcessedAt time.Time
}

func NewClickService(
	repo interfaces.ClickRepo,
	engine *fraud.Engine,
	tracker *sequence.Tracker,
	geo enrich.GeoLookup,
	archiver Archiver,
	cfg Config,
) *ClickService {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if geo == nil {
		geo = enrich.NoopGeoLookup{}
	}

	s := &ClickService{
		repo:       repo,
		engine:     engine,
		tracker:    tracker,
		geo:        geo,
		archiver:   archiver,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		tasks:      make(chan func(), cfg.Workers*4),
		metrics:    &Metrics{},
	}

	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	return s
}

func (s *ClickService) worker() {
	defer s.wg.Done()
	for task := range s.tasks {
		task()
	}
}

// HandleEvent dispatches the two independent background jobs for one
// redirect event. The jobs run unordered, possibly interleaved with jobs
// from other events of the same visitor.
func (s *ClickService) HandleEvent(ctx context.Context, ev *models.ClickEvent) {
	event := *ev
	s.tasks <- func() { s.runFraudCheck(ctx, &event) }
	s.tasks <- func() { s.runClickLog(ctx, &event) }
}

func (s *ClickService) runFraudCheck(ctx context.Context, ev *models.ClickEvent) {
	fp := fingerprint.Generate(ev.IPAddress, ev.UserAgent, ev.Referrer, ev.AcceptLanguage)

	err := s.withRetry(ctx, "check_fraud", func(ctx context.Context) error {
		verdict, err := s.engine.Evaluate(ctx, ev.IPAddress, ev.Code, ev.UserAgent, ev.Referrer, fp)
		if err != nil {
			return err
		}
		if !verdict.Suspicious {
			return nil
		}

		logrus.WithFields(logrus.Fields{
			"ip":          ev.IPAddress,
			"url":         ev.Code,
			"fingerprint": fp,
			"reasons":     verdict.Reasons,
		}).Warn("suspicious activity detected")

		metrics.SuspiciousRequests.WithLabelValues("task_detected").Inc()
		for _, reason := range verdict.Reasons {
			metrics.SuspiciousClicks.WithLabelValues(ev.Code, string(reason)).Inc()
		}
		s.metrics.incrementSuspicious()

		return s.Record(ctx, ev, fp, true)
	})
	if err != nil {
		s.metrics.incrementFailed()
		logrus.WithError(err).WithField("url", ev.Code).Error("fraud check abandoned")
		return
	}
	s.metrics.incrementProcessed()
}

func (s *ClickService) runClickLog(ctx context.Context, ev *models.ClickEvent) {
	fp := fingerprint.Generate(ev.IPAddress, ev.UserAgent, ev.Referrer, ev.AcceptLanguage)

	err := s.withRetry(ctx, "log_click", func(ctx context.Context) error {
		return s.Record(ctx, ev, fp, false)
	})
	if err != nil {
		s.metrics.incrementFailed()
		logrus.WithError(err).WithField("url", ev.Code).Error("click log abandoned")
		return
	}
	s.metrics.incrementProcessed()
}

// Record is the durable write path for one classified click. The
// suspicious path stores a flagged record; the normal path stores the
// click record and advances the lifetime counter. Both feed the hourly
// aggregator with the same flag.
func (s *ClickService) Record(ctx context.Context, ev *models.ClickEvent, fp string, suspicious bool) error {
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if suspicious {
		err := s.repo.InsertSuspiciousClick(ctx, &models.SuspiciousClick{
			ID:          uuid.NewString(),
			Fingerprint: fp,
			IPAddress:   ev.IPAddress,
			UserAgent:   ev.UserAgent,
			Referrer:    ev.Referrer,
			Reason:      SuspiciousReason,
			URLCode:     ev.Code,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		return s.repo.UpsertHourly(ctx, ev.URLID, fp, utils.HourBucket(now), true)
	}

	// The hourly upsert must precede the click insert: its unique-visitor
	// probe looks for an earlier click row of this fingerprint, and the row
	// written below would mask first sight.
	if err := s.repo.UpsertHourly(ctx, ev.URLID, fp, utils.HourBucket(now), false); err != nil {
		return err
	}

	err := s.repo.InsertClick(ctx, &models.ClickRecord{
		ID:          uuid.NewString(),
		URLID:       ev.URLID,
		IPAddress:   ev.IPAddress,
		UserAgent:   ev.UserAgent,
		Referrer:    ev.Referrer,
		Fingerprint: fp,
		ClickedAt:   now,
	})
	if err != nil {
		return err
	}
	if err := s.repo.IncrementReferrer(ctx, ev.URLID, ev.Referrer); err != nil {
		return err
	}

	if s.tracker != nil {
		if _, err := s.tracker.Record(ctx, fp, ev.Code); err != nil {
			return err
		}
	}

	s.enrich(ctx, ev, now)

	if s.archiver != nil {
		eventID := ev.EventID
		if eventID == "" {
			eventID = uuid.NewString()
		}
		if err := s.archiver.Archive(ctx, eventID, ev, now); err != nil {
			logrus.WithError(err).Warn("archive click event")
		}
	}

	return nil
}

// enrich emits the best-effort analytics counters; lookups never fail the
// pipeline.
func (s *ClickService) enrich(ctx context.Context, ev *models.ClickEvent, now time.Time) {
	country := s.geo.Country(ctx, ev.IPAddress)
	device, browser := enrich.ParseUserAgent(ev.UserAgent)

	metrics.ObserveClick(ev.Code, country, device, browser, ev.Referrer, now)
	metrics.UniqueVisitors.WithLabelValues(ev.Code, now.Format("2006-01-02")).Inc()
}

// withRetry runs fn up to maxRetries attempts with a fixed delay between
// attempts. The event is dropped after exhaustion; the error is surfaced
// to operators via logs and the failure counter, never to the visitor.
func (s *ClickService) withRetry(ctx context.Context, name string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		logrus.WithError(lastErr).WithFields(logrus.Fields{
			"task":    name,
			"attempt": attempt + 1,
		}).Warn("task attempt failed")
	}

	return lastErr
}

func (s *ClickService) GetMetrics() MetricsData {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()
	return MetricsData{
		TotalProcessed:  s.metrics.TotalProcessed,
		TotalFailed:     s.metrics.TotalFailed,
		TotalSuspicious: s.metrics.TotalSuspicious,
		LastProcessedAt: s.metrics.LastProcessedAt,
	}
}

// Shutdown stops accepting tasks and waits for in-flight jobs.
func (s *ClickService) Shutdown(ctx context.Context) error {
	close(s.tasks)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Metrics) incrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalProcessed++
	m.LastProcessedAt = time.Now()
}

func (m *Metrics) incrementFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalFailed++
}

func (m *Metrics) incrementSuspicious() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalSuspicious++
}
