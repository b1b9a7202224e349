package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	"github.com/sponzahq/sponza-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Level: zerolog.Disabled})
}

type fakeLock struct {
	available bool
	acquired  int
	released  int
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) {
	f.acquired++
	return f.available, nil
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.released++
	return nil
}

type recordingJob struct {
	name string
	runs int
	err  error
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func TestRegistry_SkipsNil(t *testing.T) {
	registry := NewRegistry(&recordingJob{name: "a"}, nil, &recordingJob{name: "b"})
	if len(registry.Jobs()) != 2 {
		t.Fatalf("jobs = %d, want 2", len(registry.Jobs()))
	}
}

func TestRunCycle_RunsAllJobs(t *testing.T) {
	jobA := &recordingJob{name: "a"}
	jobB := &recordingJob{name: "b", err: errors.New("boom")}
	jobC := &recordingJob{name: "c"}
	lock := &fakeLock{available: true}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(jobA, jobB, jobC),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	// A failing job must not stop the rest of the cycle.
	if jobA.runs != 1 || jobB.runs != 1 || jobC.runs != 1 {
		t.Errorf("runs = %d/%d/%d, want 1/1/1", jobA.runs, jobB.runs, jobC.runs)
	}
	if lock.released != 1 {
		t.Errorf("lock released %d times, want 1", lock.released)
	}
}

func TestRunCycle_SkipsWhenLocked(t *testing.T) {
	job := &recordingJob{name: "a"}
	lock := &fakeLock{available: false}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Errorf("job ran %d times while another instance held the lock", job.runs)
	}
}

type fakeExpirer struct {
	expired int
	err     error
}

func (f *fakeExpirer) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.expired++
	return 2, nil
}

func TestSubscriptionExpiryJob(t *testing.T) {
	expirer := &fakeExpirer{}
	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:        testLogger(),
		Subscriptions: expirer,
	})
	if err != nil {
		t.Fatalf("NewSubscriptionExpiryJob: %v", err)
	}
	if job.Name() != "subscription-expiry" {
		t.Errorf("name = %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.expired != 1 {
		t.Errorf("ExpireDue called %d times, want 1", expirer.expired)
	}
}

type fakeStaleLister struct {
	rows []models.Transaction
}

func (f *fakeStaleLister) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	return f.rows, nil
}

type fakeFailer struct {
	failed  []uuid.UUID
	failOne uuid.UUID
}

func (f *fakeFailer) FailTransaction(ctx context.Context, txnID uuid.UUID, reason string) (*models.Transaction, error) {
	if txnID == f.failOne {
		return nil, errors.New("state conflict")
	}
	f.failed = append(f.failed, txnID)
	return &models.Transaction{ID: txnID, Status: enums.TransactionStatusFailed}, nil
}

func TestStaleTransactionJob_ContinuesPastErrors(t *testing.T) {
	stuck := models.Transaction{ID: uuid.New()}
	conflicting := models.Transaction{ID: uuid.New()}
	lister := &fakeStaleLister{rows: []models.Transaction{stuck, conflicting}}
	failer := &fakeFailer{failOne: conflicting.ID}

	job, err := NewStaleTransactionJob(StaleTransactionJobParams{
		Logger: testLogger(),
		Repo:   lister,
		Ledger: failer,
		TTL:    72 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewStaleTransactionJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(failer.failed) != 1 || failer.failed[0] != stuck.ID {
		t.Errorf("failed = %+v, want just %s", failer.failed, stuck.ID)
	}
}

type fakeCleaner struct {
	cutoff time.Time
}

func (f *fakeCleaner) DeleteReadOlderThan(ctx context.Context, before time.Time) (int64, error) {
	f.cutoff = before
	return 5, nil
}

func TestNotificationCleanupJob_UsesRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:        testLogger(),
		Notifications: cleaner,
		Retention:     30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := time.Now().Add(-30 * 24 * time.Hour)
	if cleaner.cutoff.Sub(want) > time.Minute || want.Sub(cleaner.cutoff) > time.Minute {
		t.Errorf("cutoff = %v, want about %v", cleaner.cutoff, want)
	}
}
