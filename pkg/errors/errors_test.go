package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded"},
		{code: CodeOutOfStock, status: http.StatusConflict, publicMsg: "product is out of stock", detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusConflict, publicMsg: "insufficient stock", detailsOK: true},
		{code: CodeEmptyCart, status: http.StatusUnprocessableEntity, publicMsg: "cart is empty"},
		{code: CodeIntentMismatch, status: http.StatusConflict, publicMsg: "payment intent does not match order"},
		{code: CodeAlreadyPaid, status: http.StatusConflict, publicMsg: "order already paid"},
		{code: CodePaymentNotSucceeded, status: http.StatusPaymentRequired, publicMsg: "payment failed", detailsOK: true},
		{code: CodePaymentGateway, status: http.StatusBadGateway, publicMsg: "payment failed", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.publicMsg, meta.PublicMessage)
			assert.Equal(t, tt.retryable, meta.Retryable)
			assert.Equal(t, tt.detailsOK, meta.DetailsAllowed)
		})
	}
}

func TestPaymentAndInternalCodesHideMessages(t *testing.T) {
	for _, code := range []Code{CodeInternal, CodeDependency, CodePaymentGateway, CodePaymentNotSucceeded} {
		assert.False(t, MetadataFor(code).ExposeMessage, code)
	}
	for _, code := range []Code{CodeValidation, CodeOutOfStock, CodeEmptyCart, CodeIdempotency} {
		assert.True(t, MetadataFor(code).ExposeMessage, code)
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing foo", base.Message())
	assert.Nil(t, base.Details())

	base.WithDetails(map[string]any{"field": "foo"})
	assert.NotNil(t, base.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	assert.True(t, stdErrors.Is(wrapped, cause))
	assert.Equal(t, CodeConflict, wrapped.Code())
}

func TestAsAndIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeAlreadyPaid, "paid"))
	got := As(err)
	require.NotNil(t, got)
	assert.Equal(t, CodeAlreadyPaid, got.Code())
	assert.True(t, IsCode(err, CodeAlreadyPaid))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.Nil(t, As(nil))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
}

func TestDumpIncludesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_order_number", TableName: "orders"}
	err := Wrap(CodeConflict, pgErr, "insert order")

	dump := Dump(err)
	assert.Equal(t, CodeConflict, dump.Code)
	assert.Equal(t, http.StatusConflict, dump.HTTPStatus)
	assert.Equal(t, "23505", dump.PGCode)
	assert.Equal(t, "ux_orders_order_number", dump.PGConstraint)
	assert.Len(t, dump.Chain, 2)
}

func TestDumpIncludesStripeDetails(t *testing.T) {
	stripeErr := &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, DeclineCode: "insufficient_funds", RequestID: "req_1"}
	err := Wrap(CodePaymentGateway, stripeErr, "create intent")

	fields := Dump(err).Fields()
	assert.Equal(t, "card_declined", fields["stripe_code"])
	assert.Equal(t, "insufficient_funds", fields["stripe_decline_code"])
	assert.Equal(t, "req_1", fields["stripe_request_id"])
	assert.NotContains(t, fields, "pg_code")
}
