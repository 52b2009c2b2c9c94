package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-swap-api/internal/models"
)

type flakyAuditStore struct {
	mu       sync.Mutex
	failures int
	stored   []models.AuditLog
}

func (s *flakyAuditStore) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("audit table locked")
	}
	s.stored = append(s.stored, *log)
	return nil
}

func (s *flakyAuditStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

func TestAuditServicePersistsQueuedEntries(t *testing.T) {
	store := &flakyAuditStore{}
	svc := NewAuditService(store, AuditConfig{Workers: 2, Buffer: 8}, nil)
	svc.Start(context.Background())

	for _, action := range []string{models.AuditActionSwapSubmit, models.AuditActionSwapApprove, models.AuditActionSwapCancel} {
		svc.Record(context.Background(), models.AuditLog{Action: action, Resource: models.AuditResourceSwapRequest})
	}
	svc.Stop()

	require.Equal(t, 3, store.count())
	for _, entry := range store.stored {
		assert.False(t, entry.CreatedAt.IsZero())
	}
}

func TestAuditServiceRetriesTransientFailures(t *testing.T) {
	store := &flakyAuditStore{failures: 1}
	svc := NewAuditService(store, AuditConfig{MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Record(context.Background(), models.AuditLog{Action: models.AuditActionLogin, Resource: "auth"})

	assert.Eventually(t, func() bool { return store.count() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestAuditServiceRecordAfterStopIsSilent(t *testing.T) {
	store := &flakyAuditStore{}
	svc := NewAuditService(store, AuditConfig{}, nil)
	svc.Start(context.Background())
	svc.Stop()

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), models.AuditLog{Action: models.AuditActionLogin})
	})
	assert.Equal(t, 0, store.count())

	var nilSvc *AuditService
	assert.NotPanics(t, func() { nilSvc.Record(context.Background(), models.AuditLog{}) })
}
