package cart

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Owner identifies whose cart an operation targets: an authenticated user or a guest session.
type Owner struct {
	UserID       *uuid.UUID
	SessionToken string
}

func UserOwner(userID uuid.UUID) Owner {
	return Owner{UserID: &userID}
}

func GuestOwner(token string) Owner {
	return Owner{SessionToken: token}
}

// Validate enforces that exactly one identity is present.
func (o Owner) Validate() error {
	hasUser := o.UserID != nil && *o.UserID != uuid.Nil
	hasSession := strings.TrimSpace(o.SessionToken) != ""
	switch {
	case hasUser && hasSession:
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner must be a user or a session, not both")
	case !hasUser && !hasSession:
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}
	return nil
}

func (o Owner) IsGuest() bool {
	return o.UserID == nil
}

// String is safe to log; session tokens are truncated.
func (o Owner) String() string {
	if o.UserID != nil {
		return "user:" + o.UserID.String()
	}
	token := o.SessionToken
	if len(token) > 8 {
		token = token[:8]
	}
	return "session:" + token
}
