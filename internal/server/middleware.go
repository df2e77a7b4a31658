package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/model"
)

// requestValidator adapts the model validator to echo.
type requestValidator struct{}

func (requestValidator) Validate(i any) error {
	return model.Validator().Struct(i)
}

// requestLogger writes one line per request using ECS field names.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("event.dataset", "esfixer.api"),
				zap.String("http.request.method", c.Request().Method),
				zap.String("url.path", c.Request().URL.Path),
				zap.Int("http.response.status_code", c.Response().Status),
				zap.Float64("event.duration", float64(time.Since(start).Microseconds())/1000),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}

// instrument records request counts and latency per route.
func instrument() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			httpRequests.WithLabelValues(c.Request().Method, route, status).Inc()
			httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
