package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/logger"
)

const staleBatchSize = 100

type staleLister interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error)
}

type transactionFailer interface {
	FailTransaction(ctx context.Context, txnID uuid.UUID, reason string) (*models.Transaction, error)
}

// StaleTransactionJobParams configure the stale transaction job.
type StaleTransactionJobParams struct {
	Logger *logger.Logger
	Repo   staleLister
	Ledger transactionFailer
	TTL    time.Duration
}

type staleTransactionJob struct {
	logg   *logger.Logger
	repo   staleLister
	ledger transactionFailer
	ttl    time.Duration
	now    func() time.Time
}

// NewStaleTransactionJob fails pending transactions the gateway never
// confirmed within the TTL, refunding any up-front wallet debits.
func NewStaleTransactionJob(params StaleTransactionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &staleTransactionJob{
		logg:   params.Logger,
		repo:   params.Repo,
		ledger: params.Ledger,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (j *staleTransactionJob) Name() string { return "stale-transaction" }

func (j *staleTransactionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.ttl)
	stale, err := j.repo.ListStalePending(ctx, cutoff, staleBatchSize)
	if err != nil {
		return fmt.Errorf("listing stale transactions: %w", err)
	}

	failed := 0
	for _, txn := range stale {
		if _, err := j.ledger.FailTransaction(ctx, txn.ID, "no gateway confirmation within TTL"); err != nil {
			j.logg.Error(j.logg.WithTransactionID(ctx, txn.ID.String()), "failing stale transaction", err)
			continue
		}
		failed++
	}
	j.logg.Info(j.logg.WithField(ctx, "failed", failed), "stale transaction pass complete")
	return nil
}
