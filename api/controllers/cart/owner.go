package cart

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
)

// RequestOwner resolves whose cart the request addresses. A bearer token
// wins over the guest cookie. ok is false for a guest that has no cookie yet.
func RequestOwner(r *http.Request) (cartsvc.Owner, bool) {
	if userID := middleware.UserIDFromContext(r.Context()); userID != nil {
		return cartsvc.UserOwner(*userID), true
	}
	if token := middleware.SessionTokenFromContext(r.Context()); token != "" {
		return cartsvc.GuestOwner(token), true
	}
	return cartsvc.Owner{}, false
}

// ensureOwner is used by mutating endpoints: a guest without a cookie gets a
// fresh session token, and guest cookies are refreshed to slide the 24h window.
func ensureOwner(w http.ResponseWriter, r *http.Request, cookie middleware.SessionCookie) cartsvc.Owner {
	owner, ok := RequestOwner(r)
	if !ok {
		owner = cartsvc.GuestOwner(uuid.NewString())
	}
	if owner.IsGuest() {
		cookie.Issue(w, owner.SessionToken)
	}
	return owner
}
