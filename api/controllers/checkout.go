package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	cartctl "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type paymentIntentCreator interface {
	CreatePaymentIntent(ctx context.Context, owner cart.Owner, input checkoutsvc.PaymentIntentInput) (*checkoutsvc.PaymentIntentResult, error)
}

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, owner cart.Owner, orderID uuid.UUID, intentID string) (*reconciliation.ConfirmResult, error)
}

type paymentIntentRequest struct {
	CartID          uuid.UUID     `json:"cart_id" validate:"required"`
	ShippingAddress types.Address `json:"shipping_address"`
	BillingAddress  types.Address `json:"billing_address"`
}

type confirmPaymentRequest struct {
	OrderID         uuid.UUID `json:"order_id" validate:"required"`
	PaymentIntentID string    `json:"payment_intent_id" validate:"required,max=255"`
}

// CreatePaymentIntent turns the caller's cart into a pending order and
// returns the client secret the browser needs to collect payment.
func CreatePaymentIntent(svc paymentIntentCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload paymentIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner, ok := cartctl.RequestOwner(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCartID(ctx, payload.CartID.String())
		}
		result, err := svc.CreatePaymentIntent(ctx, owner, checkoutsvc.PaymentIntentInput{
			CartID:          payload.CartID,
			ShippingAddress: payload.ShippingAddress.Normalize(),
			BillingAddress:  payload.BillingAddress.Normalize(),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ConfirmPayment is the synchronous confirmation after the client completes
// payment. Guests get their cart cookie cleared once the order is paid.
func ConfirmPayment(svc paymentConfirmer, cookie middleware.SessionCookie, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner, ok := cartctl.RequestOwner(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		result, err := svc.ConfirmPayment(r.Context(), owner, payload.OrderID, payload.PaymentIntentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.ClearSession {
			cookie.Clear(w)
		}

		responses.WriteSuccess(w, orders.NewOrderDTO(result.Order))
	}
}
