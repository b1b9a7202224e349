package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sponzahq/sponza-backend/pkg/logger"
)

type subscriptionExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// SubscriptionExpiryJobParams configure the subscription expiry job.
type SubscriptionExpiryJobParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionExpirer
}

type subscriptionExpiryJob struct {
	logg *logger.Logger
	subs subscriptionExpirer
	now  func() time.Time
}

// NewSubscriptionExpiryJob flips paid subscriptions past their end date to
// expired and installs the free fallback.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	return &subscriptionExpiryJob{
		logg: params.Logger,
		subs: params.Subscriptions,
		now:  time.Now,
	}, nil
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	expired, err := j.subs.ExpireDue(ctx, j.now())
	if err != nil {
		return fmt.Errorf("expiring subscriptions: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "subscription expiry pass complete")
	return nil
}
