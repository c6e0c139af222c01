package routes

import (
	"fmt"
	"net/http"

	"github.com/OFFIS-RIT/kgops/internal/server/middleware"
	"github.com/OFFIS-RIT/kgops/pkg/logger"

	"github.com/labstack/echo/v4"
)

func internalError(c echo.Context, msg string, err error) error {
	logger.Error(msg, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

func ValidateUserHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	rep, err := cc.App.Validate.Validate(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return internalError(c, "Failed to validate documents", err)
	}
	return c.JSON(http.StatusOK, rep)
}

func AnalyticsUserHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	rep, err := cc.App.Analyze.ForUser(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return internalError(c, "Failed to analyze relationship graph", err)
	}
	return c.JSON(http.StatusOK, rep)
}

func ExportUserHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	userID := c.Param("userId")
	f, err := cc.App.Export.Export(c.Request().Context(), userID)
	if err != nil {
		return internalError(c, "Failed to export documents", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "export-"+userID+".json"))
	return c.JSON(http.StatusOK, f)
}
