package rulepack

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emsgrid/emsgrid/internal/platform/auth"
	"github.com/emsgrid/emsgrid/internal/platform/db"
	"github.com/emsgrid/emsgrid/pkg/pagination"
)

// Handler provides REST endpoints for rule pack management.
type Handler struct {
	svc *Service
}

// NewHandler creates a new rule pack handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts pack routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	packs := g.Group("/packs", auth.RequireRole("admin", "compliance-officer"))
	packs.POST("", h.CreatePack)
	packs.GET("", h.ListPacks)
	packs.GET("/active", h.GetActivePack)
	packs.GET("/:id", h.GetPack)
	packs.POST("/:id/files", h.IngestFile)
	packs.GET("/:id/files", h.ListPackFiles)
	packs.GET("/:id/completeness", h.GetCompleteness)
	packs.POST("/:id/activate", h.ActivatePack)
	packs.POST("/:id/stage", h.StagePack)
	packs.POST("/:id/archive", h.ArchivePack)
}

// CreatePack handles POST /api/v1/packs
func (h *Handler) CreatePack(c echo.Context) error {
	var in CreatePackInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	pack, err := h.svc.CreatePack(c.Request().Context(), tenantID(c), in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, pack)
}

// ListPacks handles GET /api/v1/packs
func (h *Handler) ListPacks(c echo.Context) error {
	packs, err := h.svc.ListPacks(c.Request().Context(), tenantID(c),
		c.QueryParam("jurisdiction"), PackType(c.QueryParam("pack_type")))
	if err != nil {
		return mapError(err)
	}
	p := pagination.FromContext(c)
	total := len(packs)
	packs = page(packs, p)
	return c.JSON(http.StatusOK, pagination.NewResponse(packs, total, p.Limit, p.Offset))
}

// GetPack handles GET /api/v1/packs/:id
func (h *Handler) GetPack(c echo.Context) error {
	pack, err := h.svc.GetPack(c.Request().Context(), tenantID(c), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pack)
}

// GetActivePack handles GET /api/v1/packs/active?jurisdiction=WI&pack_type=bundle
func (h *Handler) GetActivePack(c echo.Context) error {
	pack, err := h.svc.GetActivePack(c.Request().Context(), tenantID(c),
		c.QueryParam("jurisdiction"), PackType(c.QueryParam("pack_type")))
	if err != nil {
		return mapError(err)
	}
	if pack == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no active pack for this jurisdiction and type")
	}
	return c.JSON(http.StatusOK, pack)
}

// IngestFile handles POST /api/v1/packs/:id/files (multipart upload)
func (h *Handler) IngestFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file")
	}

	ingested, err := h.svc.IngestFile(c.Request().Context(), tenantID(c), c.Param("id"), file.Filename, data)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, ingested)
}

// ListPackFiles handles GET /api/v1/packs/:id/files
func (h *Handler) ListPackFiles(c echo.Context) error {
	files, err := h.svc.ListPackFiles(c.Request().Context(), tenantID(c), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	if files == nil {
		files = []*PackFile{}
	}
	return c.JSON(http.StatusOK, files)
}

// GetCompleteness handles GET /api/v1/packs/:id/completeness
func (h *Handler) GetCompleteness(c echo.Context) error {
	completeness, err := h.svc.GetPackCompleteness(c.Request().Context(), tenantID(c), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, completeness)
}

// ActivatePack handles POST /api/v1/packs/:id/activate
func (h *Handler) ActivatePack(c echo.Context) error {
	actor := auth.UserIDFromContext(c.Request().Context())
	pack, err := h.svc.ActivatePack(c.Request().Context(), tenantID(c), c.Param("id"), actor)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pack)
}

// StagePack handles POST /api/v1/packs/:id/stage
func (h *Handler) StagePack(c echo.Context) error {
	pack, err := h.svc.StagePack(c.Request().Context(), tenantID(c), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pack)
}

// ArchivePack handles POST /api/v1/packs/:id/archive
func (h *Handler) ArchivePack(c echo.Context) error {
	pack, err := h.svc.ArchivePack(c.Request().Context(), tenantID(c), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pack)
}

func tenantID(c echo.Context) string {
	return db.TenantFromContext(c.Request().Context())
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrPackNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrPackImmutable), errors.Is(err, ErrInvalidPackType):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func page(packs []*Pack, p pagination.Params) []*Pack {
	if p.Offset >= len(packs) {
		return []*Pack{}
	}
	end := p.Offset + p.Limit
	if end > len(packs) {
		end = len(packs)
	}
	return packs[p.Offset:end]
}
