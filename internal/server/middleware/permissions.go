package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func IsAdmin(user *AppUser, adminRole string) bool {
	if user == nil || adminRole == "" {
		return false
	}
	return user.Role == adminRole
}

// CanAccessUser reports whether user may act on userID's data.
func CanAccessUser(user *AppUser, adminRole, userID string) bool {
	if user == nil {
		return false
	}
	return IsAdmin(user, adminRole) || (userID != "" && user.UserID == userID)
}

// RequireUserAccess guards routes scoped by the :userId path parameter.
func RequireUserAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc := c.(*AppContext)
		if cc.User == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		if !CanAccessUser(cc.User, cc.App.AdminRole, c.Param("userId")) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden"})
		}
		return next(c)
	}
}

func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc := c.(*AppContext)
		if cc.User == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		if !IsAdmin(cc.User, cc.App.AdminRole) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: admin only"})
		}
		return next(c)
	}
}
