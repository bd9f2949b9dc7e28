package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order, then its items and addresses.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit("Items", "Addresses").Create(order).Error; err != nil {
		return err
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	for i := range order.Addresses {
		order.Addresses[i].OrderID = order.ID
	}
	if len(order.Items) > 0 {
		if err := db.Create(&order.Items).Error; err != nil {
			return err
		}
	}
	if len(order.Addresses) > 0 {
		if err := db.Create(&order.Addresses).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	return r.findOne(ctx, "payment_intent_id = ?", intentID)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Preload("Addresses").
		Where(query, arg).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SetPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	return r.update(ctx, orderID, map[string]any{"payment_intent_id": intentID})
}

// MarkPaid is the first-time-paid transition, allowed only while the order is
// payable (pending or failed, not cancelled). A false result means another
// caller already paid it or it was refunded or cancelled meanwhile.
func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) (bool, error) {
	return r.transition(ctx, orderID, map[string]any{
		"payment_status": enums.PaymentStatusPaid,
		"status":         enums.OrderStatusProcessing,
		"paid_at":        paidAt,
	}, "payment_status IN ? AND status <> ?", models.PayableStatuses, enums.OrderStatusCancelled)
}

func (r *repository) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(ctx, orderID, map[string]any{
		"payment_status": enums.PaymentStatusFailed,
	}, "payment_status = ?", enums.PaymentStatusPending)
}

func (r *repository) MarkCancelled(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, orderID, map[string]any{
		"status":       enums.OrderStatusCancelled,
		"cancelled_at": at,
	}, "status <> ?", enums.OrderStatusCancelled)
}

func (r *repository) MarkRefunded(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, orderID, map[string]any{
		"payment_status": enums.PaymentStatusRefunded,
		"status":         enums.OrderStatusCancelled,
		"refunded_at":    at,
		"cancelled_at":   at,
	}, "payment_status <> ?", enums.PaymentStatusRefunded)
}

func (r *repository) transition(ctx context.Context, orderID uuid.UUID, updates map[string]any, guard string, guardArgs ...any) (bool, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Where(guard, guardArgs...).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
