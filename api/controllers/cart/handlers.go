package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type cartService interface {
	Get(ctx context.Context, owner cartsvc.Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner cartsvc.Owner, input cartsvc.AddItemInput) (*models.CartItem, error)
	UpdateItem(ctx context.Context, owner cartsvc.Owner, itemID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, owner cartsvc.Owner, itemID uuid.UUID) error
	Clear(ctx context.Context, owner cartsvc.Owner) error
	Count(ctx context.Context, owner cartsvc.Owner) (int, error)
}

type cartMerger interface {
	Merge(ctx context.Context, userID uuid.UUID, sessionToken string) (cartsvc.MergeResult, error)
}

type addItemRequest struct {
	ProductID   uuid.UUID  `json:"product_id" validate:"required"`
	VariationID *uuid.UUID `json:"variation_id,omitempty"`
	Quantity    int        `json:"quantity" validate:"required,min=1"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type countResponse struct {
	Count int `json:"count"`
}

type mergeResponse struct {
	MergedItems int             `json:"merged_items"`
	Cart        cartsvc.CartDTO `json:"cart"`
}

// Handlers serves the /cart routes.
type Handlers struct {
	svc    cartService
	merger cartMerger
	cookie middleware.SessionCookie
	logg   *logger.Logger
}

func NewHandlers(svc cartService, merger cartMerger, cookie middleware.SessionCookie, logg *logger.Logger) *Handlers {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Handlers{svc: svc, merger: merger, cookie: cookie, logg: logg}
}

// Get returns the caller's cart, or an empty cart when there is none yet.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := RequestOwner(r)
	if !ok {
		responses.WriteSuccess(w, cartsvc.EmptyCartDTO(true))
		return
	}
	dto, err := h.loadCart(r.Context(), owner)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, dto)
}

func (h *Handlers) Count(w http.ResponseWriter, r *http.Request) {
	owner, ok := RequestOwner(r)
	if !ok {
		responses.WriteSuccess(w, countResponse{})
		return
	}
	count, err := h.svc.Count(r.Context(), owner)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, countResponse{Count: count})
}

func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	owner := ensureOwner(w, r, h.cookie)
	item, err := h.svc.AddItem(r.Context(), owner, cartsvc.AddItemInput{
		ProductID:   payload.ProductID,
		VariationID: payload.VariationID,
		Quantity:    payload.Quantity,
	})
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, cartsvc.NewCartItemDTO(*item))
}

// UpdateItem sets an item's quantity. Zero or less removes the item and answers 204.
func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := validators.URLParamUUID(r, "id")
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	var payload updateItemRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	owner, ok := RequestOwner(r)
	if !ok {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found"))
		return
	}
	if owner.IsGuest() {
		h.cookie.Issue(w, owner.SessionToken)
	}

	item, err := h.svc.UpdateItem(r.Context(), owner, itemID, *payload.Quantity)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	if item == nil {
		responses.WriteNoContent(w)
		return
	}
	responses.WriteSuccess(w, cartsvc.NewCartItemDTO(*item))
}

func (h *Handlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := validators.URLParamUUID(r, "id")
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	owner, ok := RequestOwner(r)
	if !ok {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found"))
		return
	}
	if err := h.svc.RemoveItem(r.Context(), owner, itemID); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteNoContent(w)
}

// Clear empties the cart but keeps it, so the guest cookie stays valid.
func (h *Handlers) Clear(w http.ResponseWriter, r *http.Request) {
	owner, ok := RequestOwner(r)
	if !ok {
		responses.WriteNoContent(w)
		return
	}
	if err := h.svc.Clear(r.Context(), owner); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteNoContent(w)
}

// Merge folds the request's guest cart into the authenticated user's cart.
// It runs right after login, so a failed merge is logged and reported as
// zero merged items with the guest cookie left in place.
func (h *Handlers) Merge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)
	if userID == nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return
	}
	ctx = h.logg.WithUserID(ctx, userID.String())

	var result cartsvc.MergeResult
	if h.merger == nil {
		h.logg.Warn(ctx, "cart merge unavailable; skipping")
	} else {
		merged, err := h.merger.Merge(ctx, *userID, middleware.SessionTokenFromContext(ctx))
		if err != nil {
			h.logg.Error(ctx, "cart merge failed; keeping guest cart", err)
		} else {
			result = merged
		}
	}
	if result.ClearSession {
		h.cookie.Clear(w)
	}

	dto, err := h.loadCart(ctx, cartsvc.UserOwner(*userID))
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, mergeResponse{MergedItems: result.MergedItems, Cart: dto})
}

func (h *Handlers) loadCart(ctx context.Context, owner cartsvc.Owner) (cartsvc.CartDTO, error) {
	cart, err := h.svc.Get(ctx, owner)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return cartsvc.EmptyCartDTO(owner.IsGuest()), nil
		}
		return cartsvc.CartDTO{}, err
	}
	return cartsvc.NewCartDTO(cart), nil
}
