package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// MergeResult reports what a login merge did.
type MergeResult struct {
	MergedItems  int  `json:"merged_items"`
	ClearSession bool `json:"-"`
}

// MergeResolver folds a guest cart into the authenticating user's cart.
type MergeResolver struct {
	repo  CartRepository
	tx    txRunner
	stock stockLocker
	logg  *logger.Logger
}

func NewMergeResolver(repo CartRepository, tx txRunner, stock stockLocker, logg *logger.Logger) (*MergeResolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock locker required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &MergeResolver{repo: repo, tx: tx, stock: stock, logg: logg}, nil
}

// Merge runs in a single transaction. On error neither cart is changed and
// the caller keeps the session token.
func (m *MergeResolver) Merge(ctx context.Context, userID uuid.UUID, sessionToken string) (MergeResult, error) {
	if userID == uuid.Nil {
		return MergeResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(sessionToken) == "" {
		return MergeResult{}, nil
	}

	ctx = m.logg.WithFields(ctx, map[string]any{
		"user_id": userID.String(),
		"owner":   GuestOwner(sessionToken).String(),
	})

	var result MergeResult
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)

		guest, err := repo.FindByOwner(ctx, GuestOwner(sessionToken), true)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.ClearSession = true
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load guest cart")
		}
		guestItems, err := repo.ListItems(ctx, guest.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load guest cart items")
		}
		if len(guestItems) == 0 {
			if err := repo.Delete(ctx, guest.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete empty guest cart")
			}
			result.ClearSession = true
			return nil
		}

		userCart, err := repo.FindByOwner(ctx, UserOwner(userID), true)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := repo.Reassign(ctx, guest.ID, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reassign guest cart")
			}
			result.MergedItems = len(guestItems)
			result.ClearSession = true
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user cart")
		}

		for _, item := range guestItems {
			unit := inventory.UnitRef{ProductID: item.ProductID, VariationID: item.VariationID}
			existing, err := repo.FindItemForUnit(ctx, userCart.ID, unit)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user cart item")
			}
			if existing == nil {
				if err := repo.MoveItem(ctx, item.ID, userCart.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "move cart item")
				}
				result.MergedItems++
				continue
			}

			level, err := m.stock.LockUnit(ctx, tx, unit)
			if err != nil {
				return err
			}
			combined := min(existing.Quantity+item.Quantity, level.Stock)
			if combined <= 0 {
				if err := repo.DeleteItem(ctx, existing.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "drop unavailable cart item")
				}
			} else if err := repo.SetItemQuantity(ctx, existing.ID, combined); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "combine cart item")
			}
			if combined < existing.Quantity+item.Quantity {
				m.logg.Warn(m.logg.WithFields(ctx, map[string]any{
					"unit":      unit.String(),
					"requested": existing.Quantity + item.Quantity,
					"available": level.Stock,
				}), "merged quantity capped at available stock")
			}
			result.MergedItems++
		}

		if err := repo.Delete(ctx, guest.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete guest cart")
		}
		result.ClearSession = true
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}

	m.logg.Info(m.logg.WithField(ctx, "merged_items", result.MergedItems), "guest cart merged")
	return result, nil
}
