package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// DefaultGuestTTL is how long a guest cart lives after its last mutation.
const DefaultGuestTTL = 24 * time.Hour

// Service exposes stock-aware cart operations. Every mutation runs in one
// transaction and refreshes the cart's expiration as its final step.
type Service interface {
	GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error)
	Get(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.CartItem, error)
	UpdateItem(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) error
	Clear(ctx context.Context, owner Owner) error
	Count(ctx context.Context, owner Owner) (int, error)
	Destroy(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

// AddItemInput is a request to put quantity of a unit into the cart.
type AddItemInput struct {
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	Quantity    int
}

type ServiceParams struct {
	Repo     CartRepository
	Tx       txRunner
	Stock    stockLocker
	GuestTTL time.Duration
	Now      func() time.Time
}

type service struct {
	repo     CartRepository
	tx       txRunner
	stock    stockLocker
	guestTTL time.Duration
	now      func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock locker required")
	}
	ttl := params.GuestTTL
	if ttl <= 0 {
		ttl = DefaultGuestTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		stock:    params.Stock,
		guestTTL: ttl,
		now:      now,
	}, nil
}

func (s *service) GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	var cart *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		cart, err = s.lockOrCreate(ctx, s.repo.WithTx(tx), owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) Get(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	found, err := s.repo.FindByOwner(ctx, owner, false)
	if err != nil {
		return nil, notFound(err, "cart not found")
	}
	cart, err := s.repo.FindByID(ctx, found.ID)
	if err != nil {
		return nil, notFound(err, "cart not found")
	}
	return cart, nil
}

func (s *service) Count(ctx context.Context, owner Owner) (int, error) {
	cart, err := s.Get(ctx, owner)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return cart.Count(), nil
}

func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.CartItem, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var result *models.CartItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.lockOrCreate(ctx, repo, owner)
		if err != nil {
			return err
		}

		unit, price, err := s.resolveUnit(ctx, repo, input)
		if err != nil {
			return err
		}

		level, err := s.stock.LockUnit(ctx, tx, unit)
		if err != nil {
			return err
		}
		if level.IsOut() {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("%s is out of stock", level.ProductName)).
				WithDetails(stockDetails(unit, level, 0))
		}

		existing, err := repo.FindItemForUnit(ctx, cart.ID, unit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}
		inCart := 0
		if existing != nil {
			inCart = existing.Quantity
		}
		availableToAdd := level.Stock - inCart
		if availableToAdd < 0 {
			availableToAdd = 0
		}
		if input.Quantity > availableToAdd {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("only %d more of %s can be added", availableToAdd, level.ProductName)).
				WithDetails(stockDetails(unit, level, availableToAdd))
		}

		if existing != nil {
			existing.Quantity += input.Quantity
			if err := repo.SetItemQuantity(ctx, existing.ID, existing.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
			}
			result = existing
		} else {
			item := &models.CartItem{
				CartID:      cart.ID,
				ProductID:   unit.ProductID,
				VariationID: unit.VariationID,
				Quantity:    input.Quantity,
				UnitPrice:   price,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				if dbpkg.IsUniqueViolation(err, "ux_cart_items_cart_unit") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart item was modified concurrently")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart item")
			}
			result = item
		}

		return s.touchExpiration(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) UpdateItem(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var result *models.CartItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByOwner(ctx, owner, true)
		if err != nil {
			return notFound(err, "cart not found")
		}
		item, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			return notFound(err, "cart item not found")
		}

		if quantity <= 0 {
			if err := repo.DeleteItem(ctx, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
			}
			return s.touchExpiration(ctx, repo, cart)
		}

		unit := inventory.UnitRef{ProductID: item.ProductID, VariationID: item.VariationID}
		level, err := s.stock.LockUnit(ctx, tx, unit)
		if err != nil {
			return err
		}
		if quantity > level.Stock {
			available := level.Stock
			if available < 0 {
				available = 0
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("only %d of %s available", available, level.ProductName)).
				WithDetails(stockDetails(unit, level, available))
		}

		if err := repo.SetItemQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		item.Quantity = quantity
		result = item
		return s.touchExpiration(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByOwner(ctx, owner, true)
		if err != nil {
			return notFound(err, "cart not found")
		}
		item, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			return notFound(err, "cart item not found")
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
		}
		return s.touchExpiration(ctx, repo, cart)
	})
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByOwner(ctx, owner, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if err := repo.DeleteItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		return s.touchExpiration(ctx, repo, cart)
	})
}

// Destroy deletes a cart and its items inside the caller's transaction.
// A cart that is already gone is not an error.
func (s *service) Destroy(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if err := s.repo.WithTx(tx).Delete(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart")
	}
	return nil
}

func (s *service) lockOrCreate(ctx context.Context, repo CartRepository, owner Owner) (*models.Cart, error) {
	cart, err := repo.FindByOwner(ctx, owner, true)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	cart = &models.Cart{UserID: owner.UserID}
	if owner.IsGuest() {
		token := owner.SessionToken
		cart.SessionToken = &token
		expires := s.now().UTC().Add(s.guestTTL)
		cart.ExpiresAt = &expires
	}
	if err := repo.Create(ctx, cart); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart was created concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return cart, nil
}

func (s *service) resolveUnit(ctx context.Context, repo CartRepository, input AddItemInput) (inventory.UnitRef, decimal.Decimal, error) {
	product, err := repo.FindProduct(ctx, input.ProductID)
	if err != nil {
		return inventory.UnitRef{}, decimal.Decimal{}, notFound(err, "product not found")
	}
	if !product.IsPublished() {
		return inventory.UnitRef{}, decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "product is not available for purchase").
			WithDetails(map[string]any{"product_id": product.ID.String()})
	}

	if !product.IsVariable() {
		if input.VariationID != nil {
			return inventory.UnitRef{}, decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "simple products do not accept a variation").
				WithDetails(map[string]any{"product_id": product.ID.String()})
		}
		return inventory.ProductUnit(product.ID), product.Price, nil
	}

	if input.VariationID == nil {
		return inventory.UnitRef{}, decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "variation_id is required for this product").
			WithDetails(map[string]any{"product_id": product.ID.String()})
	}
	variation, err := repo.FindVariation(ctx, *input.VariationID)
	if err != nil {
		return inventory.UnitRef{}, decimal.Decimal{}, notFound(err, "product variation not found")
	}
	if variation.ProductID != product.ID {
		return inventory.UnitRef{}, decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "variation does not belong to product").
			WithDetails(map[string]any{"product_id": product.ID.String(), "variation_id": variation.ID.String()})
	}
	return inventory.VariationUnit(product.ID, variation.ID), variation.Price, nil
}

// touchExpiration is the last write of every mutation. User carts never expire.
func (s *service) touchExpiration(ctx context.Context, repo CartRepository, cart *models.Cart) error {
	var expires *time.Time
	if cart.IsGuest() {
		at := s.now().UTC().Add(s.guestTTL)
		expires = &at
	}
	if err := repo.TouchExpiration(ctx, cart.ID, expires); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refresh cart expiration")
	}
	cart.ExpiresAt = expires
	return nil
}

func stockDetails(unit inventory.UnitRef, level inventory.StockLevel, availableToAdd int) map[string]any {
	details := map[string]any{
		"product_id":       unit.ProductID.String(),
		"product_name":     level.ProductName,
		"available":        max(level.Stock, 0),
		"available_to_add": availableToAdd,
	}
	if unit.VariationID != nil {
		details["variation_id"] = unit.VariationID.String()
	}
	return details
}

func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
