package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type StockAlertResetJobParams struct {
	Logger *logger.Logger
	Alerts replenishedAlertResetter
}

type replenishedAlertResetter interface {
	ResetReplenished(ctx context.Context) (int, error)
}

// NewStockAlertResetJob clears alerts for units that were restocked, so the
// next drop below threshold alerts again.
func NewStockAlertResetJob(params StockAlertResetJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Alerts == nil {
		return nil, fmt.Errorf("stock alerts required")
	}
	return &stockAlertResetJob{logg: params.Logger, alerts: params.Alerts}, nil
}

type stockAlertResetJob struct {
	logg   *logger.Logger
	alerts replenishedAlertResetter
}

func (j *stockAlertResetJob) Name() string { return "stock-alert-reset" }

func (j *stockAlertResetJob) Run(ctx context.Context) error {
	cleared, err := j.alerts.ResetReplenished(ctx)
	if err != nil {
		return fmt.Errorf("reset stock alerts: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "alerts_cleared", cleared), "stock alerts reset")
	return nil
}
