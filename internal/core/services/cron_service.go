package services

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronService triggers periodic sync passes. Sync cadence is governed by
// external triggers (this tick, the manual trigger endpoint standing in
// for a connectivity change); the engine itself carries no backoff timer.
type CronService struct {
	cron *cron.Cron
	sync *SyncService
	log  *logrus.Logger
	spec string
}

// NewCronService creates a new cron service
func NewCronService(sync *SyncService, log *logrus.Logger, spec string) *CronService {
	return &CronService{
		cron: cron.New(),
		sync: sync,
		log:  log,
		spec: spec,
	}
}

// Start schedules the periodic sync tick
func (s *CronService) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.sync.TriggerSync(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithField("spec", s.spec).Info("sync scheduler started")
	return nil
}

// Stop stops the scheduler; a pass already running finishes on its own
func (s *CronService) Stop() {
	s.cron.Stop()
	s.log.Info("sync scheduler stopped")
}
