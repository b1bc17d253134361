package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

type clientIPKey struct{}

// RequestID returns middleware that assigns every request an id, honoring a
// client-supplied X-Request-ID when present. The id is stored on the echo
// context under "request_id", placed on the request context for services,
// and echoed back in the response header. The resolved client IP is placed
// on the request context alongside it so services below the HTTP layer can
// record the request origin.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			ctx := context.WithValue(c.Request().Context(), requestIDKey{}, rid)
			if ip := c.RealIP(); ip != "" {
				ctx = context.WithValue(ctx, clientIPKey{}, ip)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// RequestIDFromContext returns the request id placed on the context by
// RequestID, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// WithClientIP returns a context carrying the given client IP. RequestID
// sets this for every HTTP request; callers outside the HTTP layer can use
// it directly.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the client IP placed on the context by
// RequestID, or "" when absent.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
