package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/DHvyas/votales-api/pkg/appcontext"
)

const (
	// HeaderUserID carries the authenticated caller's ID, extracted from the
	// auth token by the gateway in front of this service.
	HeaderUserID = "X-User-ID"
	// HeaderUserName carries the caller's display name.
	HeaderUserName = "X-User-Name"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			userID := req.Header.Get(HeaderUserID)
			userName := req.Header.Get(HeaderUserName)

			ctx := req.Context()
			ctx = appcontext.SetRequestID(ctx, requestID)
			ctx = appcontext.SetMethod(ctx, req.Method)
			ctx = appcontext.SetRoute(ctx, req.URL.Path)
			ctx = appcontext.SetRemoteIP(ctx, c.RealIP())
			ctx = appcontext.SetUserID(ctx, userID)
			ctx = appcontext.SetUserName(ctx, userName)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
