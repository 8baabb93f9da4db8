package compiler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emsgrid/emsgrid/internal/domain/ruledoc"
	"github.com/emsgrid/emsgrid/internal/domain/rulepack"
	"github.com/emsgrid/emsgrid/internal/platform/auth"
	"github.com/emsgrid/emsgrid/internal/platform/db"
)

// Handler provides the pack compilation endpoints.
type Handler struct {
	svc  *Service
	docs *ruledoc.Repository
}

// NewHandler creates a compiler handler.
func NewHandler(svc *Service, docs *ruledoc.Repository) *Handler {
	return &Handler{svc: svc, docs: docs}
}

// RegisterRoutes mounts compiler routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	packs := g.Group("/packs", auth.RequireRole("admin", "compliance-officer"))
	packs.POST("/:id/compile", h.CompilePack)
	packs.GET("/:id/documents/:entity", h.GetDocument)
}

// CompilePack handles POST /api/v1/packs/:id/compile. It compiles the pack
// for both entity types.
func (h *Handler) CompilePack(c echo.Context) error {
	ctx := c.Request().Context()
	docs, err := h.svc.CompileAll(ctx, db.TenantFromContext(ctx), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, docs)
}

// GetDocument handles GET /api/v1/packs/:id/documents/:entity
func (h *Handler) GetDocument(c echo.Context) error {
	entity := ruledoc.EntityType(c.Param("entity"))
	switch entity {
	case ruledoc.EntityIncident, ruledoc.EntityProfile:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "entity must be INCIDENT or PROFILE")
	}
	ctx := c.Request().Context()
	doc, err := h.docs.Get(ctx, db.TenantFromContext(ctx), c.Param("id"), entity)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, rulepack.ErrPackNotFound), errors.Is(err, ruledoc.ErrDocumentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
