package users

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/DHvyas/votales-api/pkg/appcontext"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
	"github.com/DHvyas/votales-api/pkg/users"
)

var validate = validator.New()

// Register registers user routes
func Register(g *echo.Group) {
	g.GET("/me", GetProfile)
	g.PUT("/me", UpdateProfile)
	g.DELETE("/me", DeleteAccount)
	g.GET("/search", Search)
	g.GET("/:id", GetPublicProfile)
	g.GET("/:id/tales", GetUserTales)
}

// GetProfile returns the caller's own profile
func GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "users_handler.GetProfile")
	defer span.End()

	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user identity is required")
	}

	ctx, service, err := ectoinject.GetContext[*users.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user service")
	}

	// First sight of a user creates their profile row
	if _, err := service.EnsureProfile(ctx, userID, appcontext.GetUserName(ctx)); err != nil {
		return err
	}

	profile, err := service.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, profile)
}

// UpdateProfile applies edits to the caller's profile
func UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "users_handler.UpdateProfile")
	defer span.End()

	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user identity is required")
	}

	var req models.UpdateUserProfileRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := ectoinject.GetContext[*users.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user service")
	}

	user, err := service.UpdateProfile(ctx, userID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

// DeleteAccount anonymizes the caller's tales and removes their account
func DeleteAccount(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "users_handler.DeleteAccount")
	defer span.End()

	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user identity is required")
	}

	ctx, service, err := ectoinject.GetContext[*users.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user service")
	}

	if err := service.DeleteAccount(ctx, userID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// GetPublicProfile returns another user's public profile
func GetPublicProfile(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "users_handler.GetPublicProfile")
	defer span.End()

	ctx, service, err := ectoinject.GetContext[*users.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user service")
	}

	profile, err := service.GetPublicProfile(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, profile)
}

// GetUserTales returns a user's tales grouped into roots and branches
func GetUserTales(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "users_handler.GetUserTales")
	defer span.End()

	ctx, service, err := ectoinject.GetContext[*users.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user service")
	}

	roots, branches, err := service.GetUserTales(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string][]models.TaleSummary{
		"roots":    roots,
		"branches": branches,
	})
}

// Search finds users by display name
func Search(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "users_handler.Search")
	defer span.End()

	q := c.QueryParam("q")
	if q == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	ctx, service, err := ectoinject.GetContext[*users.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user service")
	}

	results, err := service.SearchUsers(ctx, q)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, results)
}
