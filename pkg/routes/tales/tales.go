package tales

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/DHvyas/votales-api/pkg/appcontext"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tales"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

var validate = validator.New()

// Register registers tale routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/search", Search)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
	g.GET("/:id/choices", Choices)
	g.GET("/:id/map", StoryMap)
	g.POST("/:id/vote", Vote)
}

// List returns one page of story roots
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "tales_handler.List")
	defer span.End()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	sortBy := c.QueryParam("sort_by")
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	ctx, service, err := ectoinject.GetContext[*tales.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tale service")
	}

	result, err := service.ListRootTales(ctx, sortBy, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Create authors a new root tale or branch
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "tales_handler.Create")
	defer span.End()

	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user identity is required")
	}

	var req models.CreateTaleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.AuthorID = userID
	req.AuthorName = appcontext.GetUserName(ctx)

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := ectoinject.GetContext[*tales.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tale service")
	}

	taleID, err := service.CreateTale(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]string{"id": taleID})
}

// Get returns the full view of a tale
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "tales_handler.Get")
	defer span.End()

	ctx, service, err := ectoinject.GetContext[*tales.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tale service")
	}

	result, err := service.GetTale(ctx, c.Param("id"), appcontext.GetUserID(ctx))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Update applies author-only content edits
func Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "tales_handler.Update")
	defer span.End()

	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user identity is required")
	}

	var req models.UpdateTaleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := ectoinject.GetContext[*tales.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tale service")
	}

	result, err := service.UpdateTale(ctx, c.Param("id"), userID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Delete removes a tale via the strict author-initiated path
func Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "tales_handler.Delete")
	defer span.End()

	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user identity is required")
	}

	ctx, service, err := ectoinject.GetContext[*tales.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tale service")
	}

	if err := service.DeleteTaleStrict(ctx, c.Param("id"), userID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Choices returns one page of a tale's continuations
func Choices(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "tales_handler.Choices")
	defer span.End()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	ctx, service, err := ectoinject.GetContext[*tales.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tale service")
	}

	result, err := service.ListChoices(ctx, c.Param("id"), page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// StoryMap returns the node and edge set of the containing tree
func StoryMap(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "tales_handler.StoryMap")
	defer span.End()

	ctx, service, err := ectoinject.GetContext[*tales.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tale service")
	}

	result, err := service.GetStoryMap(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Vote casts the caller's vote on a tale
func Vote(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "tales_handler.Vote")
	defer span.End()

	userID := appcontext.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user identity is required")
	}

	ctx, service, err := ectoinject.GetContext[*tales.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tale service")
	}

	counted, err := service.Vote(ctx, c.Param("id"), userID, appcontext.GetUserName(ctx))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]bool{"counted": counted})
}

// Search finds tales matching the query text
func Search(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "tales_handler.Search")
	defer span.End()

	q := c.QueryParam("q")
	if q == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	ctx, service, err := ectoinject.GetContext[*tales.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tale service")
	}

	results, err := service.SearchTales(ctx, q)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, results)
}
