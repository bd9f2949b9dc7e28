package payments

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Intent statuses reported by the processor that the pipeline acts on.
const (
	StatusSucceeded            = "succeeded"
	StatusRequiresConfirmation = "requires_confirmation"
	StatusCanceled             = "canceled"
)

// Intent is the processor-agnostic view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
}

func (i Intent) Succeeded() bool {
	return i.Status == StatusSucceeded
}

type Refund struct {
	ID          string
	Status      string
	AmountMinor int64
}

// Gateway is the contract the checkout and reconciliation flows use to talk
// to the payment processor. Failures surface as PAYMENT_GATEWAY_ERROR.
type Gateway interface {
	CreateIntent(ctx context.Context, order *models.Order) (*Intent, error)
	RetrieveOrConfirm(ctx context.Context, intentID string) (*Intent, error)
	Refund(ctx context.Context, order *models.Order, amountMinor *int64) (*Refund, error)
}

// AmountMinor converts a decimal total to minor currency units, rounding half away from zero.
func AmountMinor(total decimal.Decimal) int64 {
	return total.Shift(2).Round(0).IntPart()
}
