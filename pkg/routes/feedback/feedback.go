package feedback

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/DHvyas/votales-api/pkg/feedback"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

var validate = validator.New()

// Register registers feedback routes
func Register(g *echo.Group) {
	g.POST("", Submit)
}

// Submit stores a feedback submission
func Submit(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "feedback_handler.Submit")
	defer span.End()

	var req models.CreateFeedbackRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := ectoinject.GetContext[*feedback.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get feedback service")
	}

	result, err := service.Submit(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}
