package cron

import (
	"context"
	"fmt"

	"github.com/pageturnhq/bookstore-backend/pkg/logger"
)

// paymentSweeper is the slice of the payment service the TTL job drives.
type paymentSweeper interface {
	CleanupExpiredPayments(ctx context.Context) (int, error)
}

// PaymentTTLJobParams configure the expired-payment sweep.
type PaymentTTLJobParams struct {
	Logger   *logger.Logger
	Payments paymentSweeper
}

type paymentTTLJob struct {
	logg     *logger.Logger
	payments paymentSweeper
}

// NewPaymentTTLJob builds the job that cancels pending payments past their TTL.
func NewPaymentTTLJob(params PaymentTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	return &paymentTTLJob{
		logg:     params.Logger,
		payments: params.Payments,
	}, nil
}

func (j *paymentTTLJob) Name() string { return "payment-ttl" }

func (j *paymentTTLJob) Run(ctx context.Context) error {
	swept, err := j.payments.CleanupExpiredPayments(ctx)
	logCtx := j.logg.WithField(ctx, "payments_cancelled", swept)
	if err != nil {
		// Partial sweeps still count; the error carries every payment that
		// could not transition.
		j.logg.Error(logCtx, "payment ttl sweep finished with errors", err)
		return fmt.Errorf("payment ttl sweep: %w", err)
	}
	j.logg.Info(logCtx, "payment ttl sweep complete")
	return nil
}
