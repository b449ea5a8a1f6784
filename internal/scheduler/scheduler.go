// Package scheduler retrains the model and rescores every SME on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/cashflow-risk/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Retrainer is the part of the service a scheduled run drives
type Retrainer interface {
	Train(ctx context.Context) (*service.TrainResult, error)
	RescoreAll(ctx context.Context) (int, error)
}

// Scheduler runs retraining on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	jobs    Retrainer
	log     *logrus.Logger
	timeout time.Duration
}

// New validates the cron schedule and registers the retraining job. Runs never overlap.
func New(schedule string, jobs Retrainer, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{jobs: jobs, log: log, timeout: 30 * time.Minute}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(log)),
	))
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("failed to parse retrain schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infof("Retrain scheduler started, next run at %s", s.cron.Entries()[0].Next.Format(time.RFC3339))
}

// Stop halts the schedule and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.RunOnce(ctx); err != nil {
		s.log.Errorf("Scheduled retrain failed: %v", err)
	}
}

// RunOnce retrains and, when a new model is live, rescores all SMEs
func (s *Scheduler) RunOnce(ctx context.Context) error {
	res, err := s.jobs.Train(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrain: %w", err)
	}

	n, err := s.jobs.RescoreAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to rescore after retrain: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"model_version":  res.Version,
		"rows":           res.Rows,
		"labels_patched": res.LabelsPatched,
		"smes_scored":    n,
	}).Info("Scheduled retrain complete")
	return nil
}
