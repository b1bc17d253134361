package program

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleOfficeStaff, auth.RolePrescriber))
	readGroup.GET("/programs", h.ListPrograms)
	readGroup.GET("/programs/:id", h.GetProgram)
	readGroup.GET("/programs/:id/services", h.ListProgramServices)
	readGroup.POST("/patients/:patientId/service-enrollments", h.EnrollPatientInService)
	readGroup.GET("/patients/:patientId/service-enrollments", h.ListPatientServiceEnrollments)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/programs", h.CreateProgram)
	adminGroup.POST("/programs/:id/services", h.AddService)
	adminGroup.PATCH("/service-enrollments/:id/status", h.UpdateServiceEnrollmentStatus)
}

func (h *Handler) CreateProgram(c echo.Context) error {
	var p Program
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProgram(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPrograms(c echo.Context) error {
	items, err := h.svc.ListActivePrograms(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetProgram(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetProgram(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "program not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProgramServices(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListProgramServices(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrProgramNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "program not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var svc SupportService
	if err := c.Bind(&svc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddService(c.Request().Context(), id, &svc); err != nil {
		if errors.Is(err, ErrProgramNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "program not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, svc)
}

func (h *Handler) EnrollPatientInService(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var e ServiceEnrollment
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.EnrollPatientInService(c.Request().Context(), patientID, &e); err != nil {
		return mapEnrollmentError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListPatientServiceEnrollments(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	items, err := h.svc.ListPatientServiceEnrollments(c.Request().Context(), patientID)
	if err != nil {
		return mapEnrollmentError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateServiceEnrollmentStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateServiceEnrollmentStatus(c.Request().Context(), id, body.Status); err != nil {
		return mapEnrollmentError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func mapEnrollmentError(err error) error {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, ErrServiceNotFound),
		errors.Is(err, ErrServiceEnrollmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyEnrolled):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
