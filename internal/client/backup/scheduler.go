package backup

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/lifekeeper/internal/logging"
	"github.com/robfig/cron/v3"
)

// Backuper takes one backup.
type Backuper interface {
	Backup(ctx context.Context) (string, error)
}

// Scheduler runs backups on a cron schedule such as "@every 1h" or
// "0 3 * * *". A run that is still going when the next one is due makes
// the next one skip.
type Scheduler struct {
	cron *cron.Cron
	log  logging.Logger
}

func NewScheduler(ctx context.Context, spec string, b Backuper, log logging.Logger) (*Scheduler, error) {
	if log == nil {
		log = logging.NewNop()
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		key, err := b.Backup(ctx)
		if err != nil {
			log.Error(ctx, "scheduled backup failed", "error", err)
			return
		}
		log.Info(ctx, "scheduled backup done", "key", key)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", spec, err)
	}

	return &Scheduler{cron: c, log: log}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for a running backup or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn(ctx, "backup still running at shutdown")
	}
}
