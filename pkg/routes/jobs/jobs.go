package jobs

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/DHvyas/votales-api/config"
	"github.com/DHvyas/votales-api/pkg/redis"
	"github.com/DHvyas/votales-api/pkg/tracing"
	"github.com/DHvyas/votales-api/pkg/trending"
)

// HeaderJobSecret authenticates the external scheduler
const HeaderJobSecret = "X-Job-Secret"

// Register registers background job routes
func Register(g *echo.Group) {
	g.POST("/trending/recompute", RecomputeTrending)
}

// RecomputeTrending runs the trending score recomputation. Only callable by
// the scheduler holding the job secret; a run already in flight elsewhere
// returns 409.
func RecomputeTrending(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "jobs_handler.RecomputeTrending")
	defer span.End()

	ctx, cfg, err := ectoinject.GetContext[*config.Config](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get config")
	}

	if cfg.JobSecret == "" || c.Request().Header.Get(HeaderJobSecret) != cfg.JobSecret {
		return httperror.NewHTTPError(http.StatusUnauthorized, "invalid job secret")
	}

	ctx, job, err := ectoinject.GetContext[*trending.Job](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get trending job")
	}

	if err := job.Recompute(ctx); err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			return httperror.NewHTTPError(http.StatusConflict, "recompute already running")
		}
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "completed"})
}
