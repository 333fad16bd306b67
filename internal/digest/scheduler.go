package digest

import (
	"context"
	"fmt"

	"github.com/mileusna/crontab"

	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

// Scheduler runs the digest on a cron schedule ("0 8 * * *" by default).
type Scheduler struct {
	ctab     *crontab.Crontab
	runner   *Runner
	schedule string
	logger   *logging.Logger
}

func NewScheduler(runner *Runner, schedule string, logger *logging.Logger) *Scheduler {
	if runner == nil {
		panic("digest: runner required")
	}
	if schedule == "" {
		schedule = "0 8 * * *"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		ctab:     crontab.New(),
		runner:   runner,
		schedule: schedule,
		logger:   logger,
	}
}

// Run registers the job and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.ctab.AddJob(s.schedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), defaultJobLimit)
		defer cancel()
		if err := s.runner.RunOnce(jobCtx); err != nil {
			s.logger.Error("digest run failed", "error", err)
		}
	}); err != nil {
		s.ctab.Shutdown()
		return fmt.Errorf("digest: schedule %q: %w", s.schedule, err)
	}
	s.logger.Info("daily digest scheduled", "schedule", s.schedule)

	<-ctx.Done()
	s.ctab.Shutdown()
	return nil
}
