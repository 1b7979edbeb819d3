package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/paylink"
)

const defaultReconcileBatch = 50

type linkPoller interface {
	PollStatus(ctx context.Context, linkID string) (paylink.LinkStatus, error)
}

// PaymentReconcileJobParams configure the poll-based payment reconciler.
type PaymentReconcileJobParams struct {
	Logger  *logger.Logger
	Gateway linkPoller
	Sources []PaymentSource
	Batch   int
}

// NewPaymentReconcileJob builds the job that polls outstanding payment links
// and applies the processor's verdict. It backstops lost webhooks: confirming
// a link the webhook already handled is a no-op.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if len(params.Sources) == 0 {
		return nil, fmt.Errorf("at least one payment source required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &paymentReconcileJob{
		logg:    params.Logger,
		gateway: params.Gateway,
		sources: params.Sources,
		batch:   batch,
	}, nil
}

type paymentReconcileJob struct {
	logg    *logger.Logger
	gateway linkPoller
	sources []PaymentSource
	batch   int
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	var errs []error
	for _, source := range j.sources {
		if err := j.reconcileSource(ctx, source); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))
		}
	}
	return multierr.Combine(errs...)
}

func (j *paymentReconcileJob) reconcileSource(ctx context.Context, source PaymentSource) error {
	pending, err := source.Pending(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list pending links: %w", err)
	}

	confirmed, failed := 0, 0
	for _, link := range pending {
		status, err := j.gateway.PollStatus(ctx, link.LinkID)
		if err != nil {
			// A single unreachable link must not starve the rest of the batch.
			j.logg.Warn(j.logg.WithField(ctx, "payment_link_id", link.LinkID), "polling payment link failed")
			continue
		}

		switch status {
		case paylink.LinkStatusPaid:
			if err := source.Confirm(ctx, link.ID); err != nil {
				return fmt.Errorf("confirm %s: %w", link.ID, err)
			}
			confirmed++
		case paylink.LinkStatusFailed:
			if err := source.Fail(ctx, link.ID); err != nil {
				return fmt.Errorf("fail %s: %w", link.ID, err)
			}
			failed++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"source":    source.Name(),
		"polled":    len(pending),
		"confirmed": confirmed,
		"failed":    failed,
	})
	j.logg.Info(logCtx, "payment reconcile pass complete")
	return nil
}
