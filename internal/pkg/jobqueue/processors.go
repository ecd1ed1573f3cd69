package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/catalogsync"
)

// ExpirationSweeper downgrades lapsed premium plans.
type ExpirationSweeper interface {
	SweepExpirations(ctx context.Context) (*billing.SweepResult, error)
}

// RatingSyncer pulls age ratings for catalog games.
type RatingSyncer interface {
	Run(ctx context.Context, limit int) (*catalogsync.Report, error)
}

// Handlers are the services the workers call. A nil handler makes the
// matching job fail.
type Handlers struct {
	Sweeper ExpirationSweeper
	Ratings RatingSyncer
}

var errNoHandler = errors.New("no handler configured")

// runJob dispatches a job to its handler
func (q *Queue) runJob(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeExpirationSweep:
		return q.processExpirationSweepJob(ctx, job)
	case JobTypeRatingSync:
		return q.processRatingSyncJob(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (q *Queue) processExpirationSweepJob(ctx context.Context, job *Job) error {
	h := q.getHandlers()
	if h.Sweeper == nil {
		return fmt.Errorf("%s: %w", job.Type, errNoHandler)
	}
	res, err := h.Sweeper.SweepExpirations(ctx)
	if err != nil {
		return err
	}
	log.Infof("[JobQueue] Sweep job %s: expired=%d downgraded=%d failed=%d", job.ID, res.ExpiredCount, res.DowngradedCount, res.FailedCount)
	return nil
}

func (q *Queue) processRatingSyncJob(ctx context.Context, job *Job) error {
	h := q.getHandlers()
	if h.Ratings == nil {
		return fmt.Errorf("%s: %w", job.Type, errNoHandler)
	}
	payload, err := RatingSyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid rating sync payload: %w", err)
	}
	report, err := h.Ratings.Run(ctx, payload.Limit)
	if err != nil {
		return err
	}
	log.Infof("[JobQueue] Rating sync job %s: processed=%d rated=%d failed=%d", job.ID, report.Processed, report.Rated, report.Failed)
	return nil
}
