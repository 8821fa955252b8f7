package payments

import (
	"context"
	"fmt"

	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	pkgerrors "github.com/pageturnhq/bookstore-backend/pkg/errors"
)

// StatsService is the read-only rollup over payment rows. It never mutates
// anything and carries no invariants beyond read consistency with the store.
type StatsService interface {
	Collect(ctx context.Context) (*Statistics, error)
}

type statsService struct {
	repo Repository
}

// NewStatsService builds the statistics aggregator over the payment repo.
func NewStatsService(repo Repository) (StatsService, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	return &statsService{repo: repo}, nil
}

func (s *statsService) Collect(ctx context.Context) (*Statistics, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count payments by status")
	}

	successTotal, err := s.repo.SumAmountForStatus(ctx, enums.PaymentStatusSuccess)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum successful payment amounts")
	}

	refundTotal, err := s.repo.SumRefunds(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum refunds")
	}

	return &Statistics{
		CountsByStatus:     counts,
		TotalSuccessAmount: successTotal,
		TotalRefunded:      refundTotal,
	}, nil
}
