package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubRefunder struct {
	refund     *payments.Refund
	err        error
	lastOrder  uuid.UUID
	lastAmount *int64
}

func (s *stubRefunder) RefundOrder(_ context.Context, orderID uuid.UUID, amount *int64) (*payments.Refund, error) {
	s.lastOrder = orderID
	s.lastAmount = amount
	return s.refund, s.err
}

func refundRequestFor(orderID, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, "/admin/orders/"+orderID+"/refund", nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, "/admin/orders/"+orderID+"/refund", strings.NewReader(body))
	}
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", orderID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestAdminRefundOrderFull(t *testing.T) {
	orderID := uuid.New()
	svc := &stubRefunder{refund: &payments.Refund{ID: "re_1", Status: "pending", AmountMinor: 4000}}
	rec := httptest.NewRecorder()

	AdminRefundOrder(svc, nil).ServeHTTP(rec, refundRequestFor(orderID.String(), ""))

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, orderID, svc.lastOrder)
	assert.Nil(t, svc.lastAmount)
	assert.JSONEq(t, `{"data":{"refund_id":"re_1","status":"pending","amount":4000}}`, rec.Body.String())
}

func TestAdminRefundOrderPartial(t *testing.T) {
	svc := &stubRefunder{refund: &payments.Refund{ID: "re_2", Status: "succeeded", AmountMinor: 1500}}
	rec := httptest.NewRecorder()

	AdminRefundOrder(svc, nil).ServeHTTP(rec, refundRequestFor(uuid.NewString(), `{"amount":1500}`))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, svc.lastAmount)
	assert.Equal(t, int64(1500), *svc.lastAmount)
}

func TestAdminRefundOrderRejectsBadInput(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminRefundOrder(&stubRefunder{}, nil).ServeHTTP(rec, refundRequestFor("not-a-uuid", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	AdminRefundOrder(&stubRefunder{}, nil).ServeHTTP(rec, refundRequestFor(uuid.NewString(), `{"amount":-5}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRefundOrderUnpaid(t *testing.T) {
	svc := &stubRefunder{err: pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be refunded")}
	rec := httptest.NewRecorder()

	AdminRefundOrder(svc, nil).ServeHTTP(rec, refundRequestFor(uuid.NewString(), ""))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
