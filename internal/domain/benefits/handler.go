package benefits

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/domain/program"
	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/eligibility"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleOfficeStaff, auth.RolePrescriber))
	g.POST("/patients/:patientId/benefits-investigations", h.Run)
	g.GET("/patients/:patientId/benefits-investigations", h.ListForPatient)
	g.GET("/patients/:patientId/benefits-investigations/latest", h.Latest)
	g.GET("/benefits-investigations/:id", h.Get)
}

func mapServiceError(err error) error {
	var transportErr *eligibility.TransportError
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrNoAffiliation):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvestigationNotFound),
		errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, program.ErrProgramNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &transportErr):
		return echo.NewHTTPError(http.StatusBadGateway, "benefits service unavailable")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) Run(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.Run(c.Request().Context(), patientID, req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	items, err := h.svc.ListForPatient(c.Request().Context(), patientID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Latest(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	inv, err := h.svc.Latest(c.Request().Context(), patientID, c.QueryParam("type"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, inv)
}
