// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartArchiveScheduler runs ArchiveDay for the previous UTC day every night at 00:15 UTC.
// The returned scheduler must be shut down by the caller.
func (s *ArchiveService) StartArchiveScheduler(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 15, 0))),
		gocron.NewTask(func() {
			day := time.Now().UTC().AddDate(0, 0, -1)
			key, n, err := s.ArchiveDay(ctx, day)
			if err != nil {
				s.Log.WithError(err).Error("[Scheduler] Postback log archive failed")
				return
			}
			s.Log.WithField("key", key).Infof("[Scheduler] Archived %d postback log(s)", n)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
