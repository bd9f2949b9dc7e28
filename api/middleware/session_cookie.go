package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// SessionCookie describes the guest cart cookie.
type SessionCookie struct {
	Name     string
	TTL      time.Duration
	SameSite http.SameSite
	Secure   bool
}

func NewSessionCookie(app config.AppConfig, cart config.CartConfig) SessionCookie {
	return SessionCookie{
		Name:     cart.CookieName,
		TTL:      cart.GuestTTL,
		SameSite: cart.SameSite(),
		Secure:   !app.IsDev(),
	}
}

// Issue sets (or refreshes) the guest cookie.
func (c SessionCookie) Issue(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		Expires:  time.Now().Add(c.TTL),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// Clear expires the guest cookie on the client.
func (c SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}
