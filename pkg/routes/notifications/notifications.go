package notifications

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/DHvyas/votales-api/pkg/appcontext"
	"github.com/DHvyas/votales-api/pkg/notifications"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

// Register registers notification routes
func Register(g *echo.Group) {
	g.GET("", ListUnread)
	g.PUT("/read-all", MarkAllRead)
	g.PUT("/:id/read", MarkRead)
}

// ListUnread returns the caller's unread notifications
func ListUnread(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "notifications_handler.ListUnread")
	defer span.End()

	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user identity is required")
	}

	ctx, service, err := ectoinject.GetContext[*notifications.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get notification service")
	}

	items, err := service.ListUnread(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, items)
}

// MarkRead acknowledges a single notification
func MarkRead(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "notifications_handler.MarkRead")
	defer span.End()

	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user identity is required")
	}

	ctx, service, err := ectoinject.GetContext[*notifications.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get notification service")
	}

	if err := service.MarkRead(ctx, userID, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead acknowledges all of the caller's unread notifications
func MarkAllRead(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "notifications_handler.MarkAllRead")
	defer span.End()

	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user identity is required")
	}

	ctx, service, err := ectoinject.GetContext[*notifications.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get notification service")
	}

	if err := service.MarkAllRead(ctx, userID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
