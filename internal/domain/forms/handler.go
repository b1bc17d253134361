package forms

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/filestore"
	"github.com/sonexus/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleOfficeStaff, auth.RolePrescriber))
	g.POST("/forms", h.Upload)
	g.GET("/forms", h.Search)
	g.GET("/forms/:id", h.Get)
	g.GET("/forms/:id/download", h.Download)
	g.GET("/forms/:id/versions", h.Versions)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.DELETE("/forms/:id", h.Delete)
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrFormNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrFileTooLarge), errors.Is(err, ErrTypeNotAllowed), errors.Is(err, ErrEmptyFile):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, filestore.ErrFileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		var storageErr *filestore.StorageError
		if errors.As(err, &storageErr) {
			return echo.NewHTTPError(http.StatusBadGateway, "file storage unavailable")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer file.Close()

	in := UploadInput{
		Title:              c.FormValue("title"),
		Description:        c.FormValue("description"),
		Category:           c.FormValue("category"),
		FileName:           fileHeader.Filename,
		ContentType:        fileHeader.Header.Get("Content-Type"),
		Size:               fileHeader.Size,
		Content:            file,
		ComplianceApproved: c.FormValue("compliance_approved") == "true",
	}
	if v := c.FormValue("program_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid program id")
		}
		in.ProgramID = &id
	}
	if v := c.FormValue("parent_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid parent id")
		}
		in.ParentID = &id
	}

	f, err := h.svc.Upload(c.Request().Context(), in)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) Search(c echo.Context) error {
	filter := SearchFilter{
		Category: c.QueryParam("category"),
		Term:     c.QueryParam("search"),
	}
	if v := c.QueryParam("program_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid program id")
		}
		filter.ProgramID = &id
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	f, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) Download(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var patientID *uuid.UUID
	if v := c.QueryParam("patient_id"); v != "" {
		pid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
		}
		patientID = &pid
	}

	content, f, err := h.svc.Download(c.Request().Context(), id, patientID, c.RealIP())
	if err != nil {
		return mapServiceError(err)
	}
	defer content.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", f.FileName))
	return c.Stream(http.StatusOK, f.MimeType, content)
}

func (h *Handler) Versions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.Versions(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
