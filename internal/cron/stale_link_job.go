package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
)

const defaultStaleLinkMaxAge = 24 * time.Hour

type linkDeleter interface {
	DeleteLink(ctx context.Context, linkID string) error
}

// StaleLinkJobParams configure the stale payment link sweeper.
type StaleLinkJobParams struct {
	Logger  *logger.Logger
	Gateway linkDeleter
	Sources []PaymentSource
	MaxAge  time.Duration
	Batch   int
}

// NewStaleLinkJob builds the job that expires payment links nobody paid
// within the allowed window: the link is deleted at the processor and the
// owning record transitions to failed.
func NewStaleLinkJob(params StaleLinkJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if len(params.Sources) == 0 {
		return nil, fmt.Errorf("at least one payment source required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultStaleLinkMaxAge
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &staleLinkJob{
		logg:    params.Logger,
		gateway: params.Gateway,
		sources: params.Sources,
		maxAge:  maxAge,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type staleLinkJob struct {
	logg    *logger.Logger
	gateway linkDeleter
	sources []PaymentSource
	maxAge  time.Duration
	batch   int
	now     func() time.Time
}

func (j *staleLinkJob) Name() string { return "stale-link-sweep" }

func (j *staleLinkJob) Run(ctx context.Context) error {
	var errs []error
	for _, source := range j.sources {
		if err := j.sweepSource(ctx, source); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))
		}
	}
	return multierr.Combine(errs...)
}

func (j *staleLinkJob) sweepSource(ctx context.Context, source PaymentSource) error {
	pending, err := source.Pending(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list pending links: %w", err)
	}

	cutoff := j.now().UTC().Add(-j.maxAge)
	expired := 0
	for _, link := range pending {
		if link.CreatedAt.After(cutoff) {
			continue
		}

		// Expire our side first so the record cannot get stuck pending when
		// the processor call fails; an undeleted link dies at the processor
		// on its own TTL.
		if err := source.Fail(ctx, link.ID); err != nil {
			return fmt.Errorf("expire %s: %w", link.ID, err)
		}
		if err := j.gateway.DeleteLink(ctx, link.LinkID); err != nil {
			j.logg.Warn(j.logg.WithField(ctx, "payment_link_id", link.LinkID), "deleting stale payment link failed")
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"source":  source.Name(),
		"scanned": len(pending),
		"expired": expired,
	})
	j.logg.Info(logCtx, "stale link sweep complete")
	return nil
}
