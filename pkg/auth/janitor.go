package auth

import (
	"context"
	"fmt"
	"io"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SessionJanitor periodically purges expired sessions.
type SessionJanitor struct {
	manager  *SessionManager
	schedule string
	logger   *logrus.Logger
	cron     *cron.Cron
}

// NewSessionJanitor creates a janitor that runs on a cron schedule such as "@every 1m".
func NewSessionJanitor(manager *SessionManager, schedule string, logger *logrus.Logger) *SessionJanitor {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &SessionJanitor{
		manager:  manager,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the sweep and starts the scheduler.
func (j *SessionJanitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.Sweep); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	j.cron.Start()
	j.logger.WithField("schedule", j.schedule).Info("Session janitor started")
	return nil
}

// Sweep purges expired sessions once.
func (j *SessionJanitor) Sweep() {
	removed, err := j.manager.PurgeExpired(context.Background())
	if err != nil {
		j.logger.WithError(err).Error("Session sweep failed")
		return
	}
	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Purged expired sessions")
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (j *SessionJanitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
