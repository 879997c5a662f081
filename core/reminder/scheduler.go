package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
)

const defaultRunTimeout = 5 * time.Minute

// Start runs the job every interval until ctx is done. It does nothing when interval
// is not positive, leaving the job to the external scheduler.
func Start(ctx context.Context, job *Job, interval time.Duration, mode Mode, logger core.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
				summary, err := job.Run(tickCtx, mode)
				cancel()
				if err != nil {
					if errors.Cause(err) == ErrLocked {
						logger.Info("reminder run skipped, another run holds the lock")
						continue
					}
					logger.Error("scheduled reminder run failed", err)
					continue
				}
				if summary.Sent > 0 {
					logger.Info(fmt.Sprintf("scheduled reminder run sent %d mails", summary.Sent))
				}
			}
		}
	}()
}
