package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fleet/internal/domain"
	"fleet/internal/repository"
	"fleet/internal/service"
)

// ExpiryNotifier raises alerts for documents that need attention.
type ExpiryNotifier interface {
	NotifyDocumentExpiry(ctx context.Context, doc domain.ClassifiedDocument)
}

// ExpirySweeper periodically classifies every vault document and raises an
// alert for each expired or critical one. Nothing is cached between runs.
type ExpirySweeper struct {
	cron     *cron.Cron
	docRepo  repository.DocumentRepository
	notifier ExpiryNotifier
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

// NewExpirySweeper creates a sweeper that runs on schedule (standard cron syntax or
// descriptors such as "@every 1h").
func NewExpirySweeper(schedule string, docRepo repository.DocumentRepository, notifier ExpiryNotifier, logger *slog.Logger) (*ExpirySweeper, error) {
	s := &ExpirySweeper{
		cron:     cron.New(),
		docRepo:  docRepo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid expiry sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the schedule.
func (s *ExpirySweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.logger.Info("starting expiry sweeper")
	s.cron.Start()
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.logger.Info("stopping expiry sweeper")
	<-s.cron.Stop().Done()
	s.running = false
}

// SweepResult counts the alerts raised by one sweep.
type SweepResult struct {
	Scanned  int
	Expired  int
	Critical int
}

// Sweep classifies all documents against the current date and notifies the
// expired and critical ones.
func (s *ExpirySweeper) Sweep(ctx context.Context) SweepResult {
	var result SweepResult

	docs, err := s.docRepo.GetAll(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed to load documents", "error", err)
		return result
	}

	reference := s.now()
	for _, doc := range docs {
		result.Scanned++
		c := service.ClassifyExpiry(doc.ExpiryDate, reference)
		switch c.Level {
		case domain.ExpiryExpired:
			result.Expired++
		case domain.ExpiryCritical:
			result.Critical++
		default:
			continue
		}
		s.notifier.NotifyDocumentExpiry(ctx, domain.ClassifiedDocument{
			Document:       *doc,
			Classification: c,
			Visible:        true,
		})
	}

	s.logger.Info("expiry sweep done", "scanned", result.Scanned, "expired", result.Expired, "critical", result.Critical)
	return result
}
