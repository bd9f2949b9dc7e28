package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestFormatNumber(t *testing.T) {
	at := time.Date(2026, 12, 31, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "ORD-20270101-000007", FormatNumber(at, 7))
	assert.Equal(t, "ORD-20270101-999999", FormatNumber(at, 999999))
}

func TestNumberGeneratorRetries(t *testing.T) {
	suffixes := []int{1, 2, 3}
	gen := &NumberGenerator{
		MaxAttempts: 5,
		Now:         func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
		Suffix: func() int {
			next := suffixes[0]
			suffixes = suffixes[1:]
			return next
		},
	}
	taken := map[string]bool{"ORD-20260301-000001": true, "ORD-20260301-000002": true}

	number, err := gen.Next(context.Background(), func(_ context.Context, n string) (bool, error) {
		return taken[n], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260301-000003", number)

	_, err = NewNumberGenerator(2).Next(context.Background(), func(context.Context, string) (bool, error) {
		return false, errors.New("db down")
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	_, err = NewNumberGenerator(2).Next(context.Background(), func(context.Context, string) (bool, error) {
		return true, nil
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func seedOrder(t *testing.T, conn *gorm.DB, intentID string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:   FormatNumber(time.Now(), int(uuid.New().ID()%1_000_000)),
		Total:         decimal.RequireFromString("40.00"),
		Currency:      "usd",
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
	}
	if intentID != "" {
		order.PaymentIntentID = &intentID
	}
	require.NoError(t, NewRepository(conn).Create(context.Background(), order))
	return order
}

func TestRepositoryTransitionsAreConditional(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()

	order := seedOrder(t, client.DB(), "pi_123")

	found, err := repo.FindByIntentID(ctx, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	changed, err := repo.MarkPaid(ctx, order.ID, now)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.MarkPaid(ctx, order.ID, now)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.MarkPaymentFailed(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, changed, "paid orders cannot fail")

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.NotNil(t, stored.PaidAt)

	changed, err = repo.MarkRefunded(ctx, order.ID, now)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.MarkCancelled(ctx, order.ID, now)
	require.NoError(t, err)
	assert.False(t, changed, "refund already cancelled the order")

	stored, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, stored.PaymentStatus)

	changed, err = repo.MarkPaid(ctx, order.ID, now)
	require.NoError(t, err)
	assert.False(t, changed, "refunded orders are terminal")
}

func TestRepositoryMarkPaidGuards(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()

	failed := seedOrder(t, client.DB(), "pi_retry")
	changed, err := repo.MarkPaymentFailed(ctx, failed.ID)
	require.NoError(t, err)
	require.True(t, changed)
	changed, err = repo.MarkPaid(ctx, failed.ID, now)
	require.NoError(t, err)
	assert.True(t, changed, "a failed attempt can still be paid")

	cancelled := seedOrder(t, client.DB(), "pi_cancel")
	changed, err = repo.MarkCancelled(ctx, cancelled.ID, now)
	require.NoError(t, err)
	require.True(t, changed)
	changed, err = repo.MarkPaid(ctx, cancelled.ID, now)
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := repo.FindByID(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
	assert.False(t, stored.CanBePaid())
}

func TestRepositorySetPaymentIntent(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	order := seedOrder(t, client.DB(), "")
	require.NoError(t, repo.SetPaymentIntent(ctx, order.ID, "pi_abc"))
	found, err := repo.FindByIntentID(ctx, "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	err = repo.SetPaymentIntent(ctx, uuid.New(), "pi_other")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindByIntentID(ctx, "pi_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
