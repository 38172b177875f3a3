package scheduler

import (
	"context"
	"time"

	"github.com/fadedpez/ebucks/internal/logging"
)

// IndexMaintainer is an index store with time-based rotation and retention
type IndexMaintainer interface {
	RotateIndices(ctx context.Context) error
	PruneOldIndices(ctx context.Context) error
}

// ElasticsearchMaintenanceScheduler manages scheduled maintenance tasks for the audit indices
type ElasticsearchMaintenanceScheduler struct {
	scheduler      *Scheduler
	repo           IndexMaintainer
	rotationPeriod time.Duration
	prunePeriod    time.Duration
	logger         *logging.Logger
}

// NewElasticsearchMaintenanceScheduler creates a new scheduler for index maintenance.
// Zero periods fall back to daily rotation and weekly pruning.
func NewElasticsearchMaintenanceScheduler(repo IndexMaintainer, rotationPeriod, prunePeriod time.Duration, logger *logging.Logger) *ElasticsearchMaintenanceScheduler {
	if logger == nil {
		logger = logging.Nop()
	}
	if rotationPeriod <= 0 {
		rotationPeriod = 24 * time.Hour
	}
	if prunePeriod <= 0 {
		prunePeriod = 7 * 24 * time.Hour
	}
	return &ElasticsearchMaintenanceScheduler{
		scheduler:      NewScheduler(logger),
		repo:           repo,
		rotationPeriod: rotationPeriod,
		prunePeriod:    prunePeriod,
		logger:         logger.WithComponent("es_maintenance"),
	}
}

// Start schedules rotation and pruning and starts running them
func (s *ElasticsearchMaintenanceScheduler) Start(ctx context.Context) {
	s.scheduler.AddTask("index_rotation", s.rotationPeriod, s.rotateIndices)
	s.scheduler.AddTask("index_pruning", s.prunePeriod, s.pruneOldIndices)
	s.scheduler.Start(ctx)
	s.logger.Info("Elasticsearch maintenance scheduler started")
}

// Stop stops the maintenance scheduler
func (s *ElasticsearchMaintenanceScheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("Elasticsearch maintenance scheduler stopped")
}

func (s *ElasticsearchMaintenanceScheduler) rotateIndices(ctx context.Context) error {
	s.logger.Debug("Running scheduled index rotation task")
	return s.repo.RotateIndices(ctx)
}

func (s *ElasticsearchMaintenanceScheduler) pruneOldIndices(ctx context.Context) error {
	s.logger.Debug("Running scheduled index pruning task")
	return s.repo.PruneOldIndices(ctx)
}
