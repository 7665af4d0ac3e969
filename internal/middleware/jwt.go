package middleware // middleware holds the Echo middleware shared by the API routes

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the caller's identity in the request context. The user id from the
// "sub" claim is stored as uint64 under "user_id" and the role claim under
// "role"; handlers read them through UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header is "Bearer <jwt>".
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return deny(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			uid, role, err := AccessIdentity(raw, secret)
			if err != nil {
				return deny(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token")
			}

			c.Set(userIDKey, uid)
			c.Set(roleKey, role)
			return next(c)
		}
	}
}

// ParseAccessToken verifies an HS256 token signed with secret and returns
// its claims.
func ParseAccessToken(raw, secret string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// reject anything but HMAC so a forged "none" or RSA header fails
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, echo.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, echo.ErrUnauthorized
	}
	return claims, nil
}

// AccessIdentity verifies raw and returns the user id and role it
// carries.
func AccessIdentity(raw, secret string) (uint64, string, error) {
	claims, err := ParseAccessToken(raw, secret)
	if err != nil {
		return 0, "", err
	}
	uid, ok := subjectID(claims["sub"])
	if !ok {
		return 0, "", echo.ErrUnauthorized
	}
	role, _ := claims["role"].(string)
	return uid, role, nil
}

// deny writes the API error body used across the service.
func deny(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"message": msg, "code": code})
}
