package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
}

func userIDFromClaims(claims jwt.MapClaims) (string, bool) {
	for _, name := range []string{"sub", "id"} {
		switch v := claims[name].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return strconv.FormatInt(int64(v), 10), true
		}
	}
	return "", false
}

// AuthMiddleware accepts either the master API key, which acts as an admin,
// or a JWT verified against the configured key set.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c)
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		cc := c.(*AppContext)
		app := cc.App

		if app.MasterAPIKey != "" && token == app.MasterAPIKey {
			cc.User = &AppUser{UserID: "*", Role: app.AdminRole}
			return next(c)
		}
		if app.KeyFunc == nil {
			return unauthorized(c)
		}

		parsed, err := jwt.Parse(token, app.KeyFunc)
		if err != nil || !parsed.Valid {
			return unauthorized(c)
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c)
		}

		userID, ok := userIDFromClaims(claims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user ID"})
		}
		role := "user"
		if roleClaim, ok := claims["role"].(string); ok {
			role = roleClaim
		}

		cc.User = &AppUser{UserID: userID, Role: role}
		return next(c)
	}
}
