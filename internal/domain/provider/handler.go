package provider

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Provider directory and affiliation requests – any portal role
	readGroup := api.Group("", auth.RequireRole(auth.RoleOfficeStaff, auth.RolePrescriber))
	readGroup.GET("/providers", h.SearchProviders)
	readGroup.GET("/providers/:id", h.GetProvider)
	readGroup.POST("/affiliations", h.RequestAffiliation)
	readGroup.GET("/affiliations", h.ListUserAffiliations)

	// Provider management and affiliation review – admin only
	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/providers", h.CreateProvider)
	adminGroup.PUT("/providers/:id", h.UpdateProvider)
	adminGroup.GET("/affiliations/pending", h.ListPendingAffiliations)
	adminGroup.POST("/affiliations/:id/verify", h.VerifyAffiliation)
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrProviderNotFound), errors.Is(err, ErrAffiliationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAffiliationExists), errors.Is(err, ErrAlreadyProcessed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

// -- Providers --

func (h *Handler) CreateProvider(c echo.Context) error {
	var p Provider
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProvider(c.Request().Context(), &p); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProvider(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetProvider(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProvider(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Provider
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdateProvider(c.Request().Context(), &p); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SearchProviders(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchProviders(c.Request().Context(), c.QueryParam("search"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Affiliations --

type affiliationRequest struct {
	ProviderID uuid.UUID `json:"provider_id"`
}

func (h *Handler) RequestAffiliation(c echo.Context) error {
	var req affiliationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ProviderID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "provider_id is required")
	}
	a, err := h.svc.RequestAffiliation(c.Request().Context(), req.ProviderID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListUserAffiliations(c echo.Context) error {
	list, err := h.svc.ListUserAffiliations(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ListPendingAffiliations(c echo.Context) error {
	list, err := h.svc.ListPendingAffiliations(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, list)
}

type verifyRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

func (h *Handler) VerifyAffiliation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.VerifyAffiliation(c.Request().Context(), id, req.Approved, req.Reason)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, a)
}
