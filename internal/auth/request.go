package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kiosk-pos/api/internal/enum"
)

var (
	ErrMissingToken       = errors.New("missing token")
	ErrMalformedAuthToken = errors.New("invalid authorization format")
)

// TokenFromRequest returns the bearer token from the Authorization header.
// Order boards cannot set headers on a websocket handshake, so the "token"
// query parameter is accepted when the header is absent.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return "", ErrMalformedAuthToken
		}
		return token, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// IsStaff reports whether the token belongs to counter staff.
func (c *Claims) IsStaff() bool {
	return c.Role == enum.RoleCashier || c.Role == enum.RoleManager
}
