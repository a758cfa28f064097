package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/existflow/irontrack/internal/logger"
	"github.com/labstack/echo/v4"
)

// UserHeader identifies the calling user. There is no authentication.
const UserHeader = "X-User-ID"

// userMiddleware requires the user header and stores it on the context
func userMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := strings.TrimSpace(c.Request().Header.Get(UserHeader))
		if userID == "" {
			return errorJSON(c, http.StatusBadRequest, "missing "+UserHeader+" header")
		}

		c.Set("user_id", userID)
		return next(c)
	}
}

func currentUser(c echo.Context) string {
	return c.Get("user_id").(string)
}

// requestLogger logs each request and its response
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		res := c.Response()
		log := logger.Default().WithFields(logger.F("requestId", res.Header().Get(echo.HeaderXRequestID)))
		fields := []logger.Field{
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("status", res.Status),
			logger.F("size", res.Size),
			logger.F("duration", time.Since(start).String()),
		}
		if res.Status >= http.StatusInternalServerError {
			log.Error("HTTP Response", fields...)
		} else {
			log.Info("HTTP Response", fields...)
		}
		return nil
	}
}
