package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
	ctxlogger "github.com/jdalton/linkhoard/internal/platform/logger"
	"github.com/jdalton/linkhoard/internal/store"
)

// SchedulerConfig holds the tuning knobs for the polling loop.
type SchedulerConfig struct {
	// MaxInFlight bounds admitted work system-wide, across processes.
	MaxInFlight int

	// BatchSize caps how many items one iteration may admit.
	BatchSize int

	// AdmissionWindow is the sliding window during which finished work
	// still counts against capacity.
	AdmissionWindow time.Duration

	// StaleAfter is the age past which a processing item is presumed
	// orphaned by a crashed worker.
	StaleAfter time.Duration

	// PollInterval is the sleep between idle or stalled iterations.
	PollInterval time.Duration

	// ReclaimEvery is the number of iterations between stale reclamation
	// passes. The first pass runs on the first iteration, so a restarted
	// worker recovers orphans promptly.
	ReclaimEvery int
}

// DefaultSchedulerConfig returns a SchedulerConfig with reasonable defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxInFlight:     50,
		BatchSize:       20,
		AdmissionWindow: time.Minute,
		StaleAfter:      time.Hour,
		PollInterval:    time.Second,
		ReclaimEvery:    60,
	}
}

// Scheduler is the polling loop that drains the staged item backlog. Each
// iteration asks the admission controller for capacity, draws a fair batch
// bounded by it, admits the batch in one transaction, processes the items
// concurrently, and checks the touched sessions for completion. The loop
// never crashes the worker: iteration errors are logged and retried after a
// poll interval.
type Scheduler struct {
	stores    StagingStores
	admission *AdmissionController
	reclaimer *Reclaimer
	lifecycle *Lifecycle
	processor *Processor
	metrics   Metrics
	config    SchedulerConfig
	logger    *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	running bool

	iteration int
}

// NewScheduler creates a Scheduler and its internal components from the
// given stores and downstream collaborators.
func NewScheduler(
	stores StagingStores,
	bookmarks BookmarkCreator,
	tags TagAttacher,
	lists ListAttacher,
	metrics Metrics,
	config SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	if stores == nil {
		panic("stores cannot be nil")
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.ReclaimEvery <= 0 {
		config.ReclaimEvery = 60
	}

	// The loop context carries the logger so store-level logging (e.g.
	// transaction rollbacks) is attributed to this worker.
	ctx, cancel := context.WithCancel(ctxlogger.WithLogger(context.Background(), logger))

	sessions := stores.Sessions()
	items := stores.Items()

	return &Scheduler{
		stores:     stores,
		admission:  NewAdmissionController(items, config.MaxInFlight, config.AdmissionWindow, config.StaleAfter, logger),
		reclaimer:  NewReclaimer(items, config.StaleAfter, metrics, logger),
		lifecycle:  NewLifecycle(sessions, items, logger),
		processor:  NewProcessor(sessions, items, bookmarks, tags, lists, metrics, logger),
		metrics:    metrics,
		config:     config,
		logger:     logger.With(slog.String("component", "scheduler")),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the polling loop. Returns an error if the scheduler is
// already running or has been stopped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}
	if s.ctx.Err() != nil {
		return errors.New("scheduler has been stopped")
	}
	s.running = true

	s.wg.Add(1)
	go s.run()

	s.logger.Info("import scheduler started",
		slog.Int("max_in_flight", s.config.MaxInFlight),
		slog.Int("batch_size", s.config.BatchSize),
		slog.Duration("poll_interval", s.config.PollInterval))

	return nil
}

// Stop cancels the loop and waits for the current iteration to settle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancelFunc()
	s.wg.Wait()
	s.logger.Info("import scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		if s.ctx.Err() != nil {
			return
		}

		processed, err := s.runIteration(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("scheduler iteration failed", slog.String("error", err.Error()))
			s.sleep()
			continue
		}

		// A productive iteration loops immediately to keep draining while
		// capacity allows; idle and stalled iterations wait.
		if processed == 0 {
			s.sleep()
		}
	}
}

// runIteration executes one pass of the scheduling loop and returns how many
// items it admitted for processing.
func (s *Scheduler) runIteration(ctx context.Context) (int, error) {
	if s.iteration%s.config.ReclaimEvery == 0 {
		if _, err := s.reclaimer.ResetStaleItems(ctx); err != nil {
			return 0, err
		}
	}
	s.iteration++

	capacity, err := s.admission.AvailableCapacity(ctx)
	if err != nil {
		return 0, err
	}
	if capacity <= 0 {
		// Backpressure stall: recently triggered downstream work has not
		// aged out of the window yet.
		s.logger.Debug("no admission capacity", slog.Int("capacity", capacity))
		return 0, nil
	}

	limit := s.config.BatchSize
	if capacity < limit {
		limit = capacity
	}

	batch, err := s.stores.Items().NextBatch(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		// Nothing to process anywhere: sweep active sessions for any whose
		// last item completed without a follow-up batch to re-check them.
		if err := s.lifecycle.CompleteIdleSessions(ctx); err != nil {
			return 0, err
		}
		return 0, nil
	}

	admitted, sessionIDs, err := s.admitBatch(ctx, batch)
	if err != nil {
		return 0, err
	}
	if len(admitted) == 0 {
		// Another worker grabbed the whole batch between select and admit.
		return 0, nil
	}

	start := time.Now()
	s.processBatch(ctx, admitted)

	if err := s.lifecycle.CompleteDrainedSessions(ctx, sessionIDs); err != nil {
		return len(admitted), err
	}

	s.metrics.ObserveBatchDuration(time.Since(start))
	s.logger.Debug("batch settled",
		slog.Int("item_count", len(admitted)),
		slog.Int("session_count", len(sessionIDs)),
		slog.Duration("duration", time.Since(start)))

	return len(admitted), nil
}

// admitBatch transitions the batch's sessions to running and its items to
// processing in one transaction, and returns the items actually admitted
// (items grabbed by a concurrent worker in the meantime are dropped).
func (s *Scheduler) admitBatch(ctx context.Context, batch []*domain.StagedItem) ([]*domain.StagedItem, []uuid.UUID, error) {
	itemIDs := make([]uuid.UUID, len(batch))
	sessionSet := make(map[uuid.UUID]struct{})
	for i, item := range batch {
		itemIDs[i] = item.ID
		sessionSet[item.SessionID] = struct{}{}
	}

	sessionIDs := make([]uuid.UUID, 0, len(sessionSet))
	for id := range sessionSet {
		sessionIDs = append(sessionIDs, id)
	}

	var markedIDs []uuid.UUID
	err := s.stores.InTransaction(ctx, func(sessions store.SessionStore, items store.ItemStore) error {
		if err := sessions.MarkRunning(ctx, sessionIDs); err != nil {
			return err
		}

		marked, err := items.MarkProcessing(ctx, itemIDs, time.Now().UTC())
		if err != nil {
			return err
		}
		markedIDs = marked
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to admit batch: %w", err)
	}

	markedSet := make(map[uuid.UUID]struct{}, len(markedIDs))
	for _, id := range markedIDs {
		markedSet[id] = struct{}{}
	}

	admitted := batch[:0]
	for _, item := range batch {
		if _, ok := markedSet[item.ID]; ok {
			admitted = append(admitted, item)
		}
	}

	return admitted, sessionIDs, nil
}

// processBatch runs the processor over all admitted items concurrently and
// waits for every one to settle. One item's failure never aborts the others;
// per-item errors are logged here and the items stay recoverable through the
// stale reclaimer.
func (s *Scheduler) processBatch(ctx context.Context, items []*domain.StagedItem) {
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item *domain.StagedItem) {
			defer wg.Done()
			if err := s.processor.Process(ctx, item); err != nil {
				s.logger.Error("item processing failed",
					slog.String("item_id", item.ID.String()),
					slog.String("session_id", item.SessionID.String()),
					slog.String("error", err.Error()))
			}
		}(item)
	}
	wg.Wait()
}

func (s *Scheduler) sleep() {
	select {
	case <-s.ctx.Done():
	case <-time.After(s.config.PollInterval):
	}
}
