package importer

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs backfill passes on a cron schedule while the app is open.
// Overlapping passes are skipped rather than queued.
type Scheduler struct {
	cron     *cron.Cron
	backfill *Backfiller
	log      logrus.FieldLogger
	reports  chan Report
}

// NewScheduler parses spec (standard five-field cron or an @every
// descriptor) and prepares the job. Call Start to begin.
func NewScheduler(ctx context.Context, spec string, backfill *Backfiller, logger logrus.FieldLogger) (*Scheduler, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "schedule")
	cronLog := cron.PrintfLogger(log)
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		backfill: backfill,
		log:      log,
		reports:  make(chan Report, 1),
	}
	if _, err := s.cron.AddFunc(spec, func() { s.runOnce(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Reports delivers the outcome of passes that filed or failed something.
// Reports are dropped when nobody is reading.
func (s *Scheduler) Reports() <-chan Report {
	return s.reports
}

// Start begins running passes in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.backfill.Run(ctx)
	if err != nil {
		s.log.WithError(err).Warn("scheduled backfill failed")
		return
	}
	if report.Processed == 0 && report.Failed == 0 {
		return
	}
	select {
	case s.reports <- report:
	default:
	}
}
