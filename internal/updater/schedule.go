package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Schedule registers Update on a standard five-field cron spec evaluated in tz and
// starts the scheduler. Runs that would overlap a cycle still in progress are
// skipped. Stop the returned cron to end scheduling.
func (u *Updater) Schedule(spec, tz string) (*cron.Cron, error) {
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("update_tz: %w", err)
	}
	logger := cron.PrintfLogger(zap.NewStdLog(u.log.Named("cron")))
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger)))

	id, err := c.AddFunc("CRON_TZ="+tz+" "+spec, func() {
		if err := u.Update(context.Background()); err != nil {
			if errors.Is(err, ErrBusy) {
				u.log.Warn("scheduled update skipped, previous cycle still running")
				return
			}
			u.log.Error("scheduled update failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("update_cron: %w", err)
	}
	c.Start()
	u.log.Info("update scheduled", zap.String("cron", spec), zap.String("tz", tz), zap.Time("next", c.Entry(id).Next))
	return c, nil
}
