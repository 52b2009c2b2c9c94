package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/pkg/jobs"
)

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService writes audit entries through a background queue so request
// handlers never wait on the audit table. Failures are logged only.
type AuditService struct {
	store  auditStore
	queue  *jobs.Queue[models.AuditLog]
	logger *zap.Logger
}

// AuditConfig sizes the audit worker pool.
type AuditConfig struct {
	Workers    int
	Buffer     int
	MaxRetries int
	RetryDelay time.Duration
}

// NewAuditService constructs the service; call Start before Record.
func NewAuditService(store auditStore, cfg AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{store: store, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.Buffer,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the audit workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. It never fails the caller.
func (s *AuditService) Record(_ context.Context, log models.AuditLog) {
	if s == nil {
		return
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if err := s.queue.Enqueue(jobs.Job[models.AuditLog]{Type: log.Action, Payload: log}); err != nil {
		s.logger.Warn("failed to enqueue audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job[models.AuditLog]) error {
	entry := job.Payload
	return s.store.CreateAuditLog(ctx, &entry)
}
