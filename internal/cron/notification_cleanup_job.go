package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sponzahq/sponza-backend/pkg/logger"
)

type notificationCleaner interface {
	DeleteReadOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// NotificationCleanupJobParams configure the notification cleanup job.
type NotificationCleanupJobParams struct {
	Logger        *logger.Logger
	Notifications notificationCleaner
	Retention     time.Duration
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	notifier  notificationCleaner
	retention time.Duration
	now       func() time.Time
}

// NewNotificationCleanupJob deletes read notifications older than the
// retention window.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		notifier:  params.Notifications,
		retention: retention,
		now:       time.Now,
	}, nil
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)
	deleted, err := j.notifier.DeleteReadOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("deleting read notifications: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "deleted", deleted), "notification cleanup pass complete")
	return nil
}
