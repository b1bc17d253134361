package messaging

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/domain/program"
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
	g.POST("/messages/threads", h.CreateThread)
	g.GET("/messages/threads", h.ListThreads)
	g.GET("/messages/threads/:id", h.GetThread)
	g.POST("/messages/threads/:id/messages", h.SendMessage)
	g.POST("/messages/attachments", h.UploadAttachment)
	g.GET("/messages/attachments/:id/download", h.DownloadAttachment)
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrThreadNotFound),
		errors.Is(err, ErrAttachmentNotFound),
		errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, program.ErrProgramNotFound),
		errors.Is(err, filestore.ErrFileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAttachmentUnlinked):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		var storageErr *filestore.StorageError
		if errors.As(err, &storageErr) {
			return echo.NewHTTPError(http.StatusBadGateway, "file storage unavailable")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) CreateThread(c echo.Context) error {
	var in CreateThreadInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.CreateThread(c.Request().Context(), in)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListThreads(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListThreads(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetThread(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetThread(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) SendMessage(c echo.Context) error {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Content       string      `json:"content"`
		AttachmentIDs []uuid.UUID `json:"attachment_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.SendMessage(c.Request().Context(), threadID, req.Content, req.AttachmentIDs)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) UploadAttachment(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer file.Close()

	a, err := h.svc.UploadAttachment(c.Request().Context(),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size, file)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) DownloadAttachment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	content, a, err := h.svc.DownloadAttachment(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	defer content.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", a.FileName))
	return c.Stream(http.StatusOK, a.MimeType, content)
}
