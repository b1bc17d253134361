package dashboard

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sonexus/portal/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleOfficeStaff, auth.RolePrescriber, auth.RoleAdmin))
	g.GET("/dashboard/next-actions", h.NextActions)
}

func (h *Handler) NextActions(c echo.Context) error {
	actions, err := h.svc.NextActions(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if actions == nil {
		actions = []*Action{}
	}
	return c.JSON(http.StatusOK, actions)
}
