package onboarding

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emsgrid/emsgrid/internal/domain/export"
	"github.com/emsgrid/emsgrid/internal/platform/db"
)

// Handler provides the onboarding endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an onboarding handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts onboarding routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	ob := g.Group("/onboarding")
	ob.GET("/checklist", h.Checklist)
	ob.POST("/:profileID/start", h.Start)
	ob.GET("/:profileID", h.GetStatus)
	ob.POST("/:profileID/steps/:stepID", h.CompleteStep)
	ob.GET("/:profileID/can-export", h.CanExport)
}

// Start handles POST /api/v1/onboarding/:profileID/start
func (h *Handler) Start(c echo.Context) error {
	ctx := c.Request().Context()
	status, err := h.svc.Start(ctx, db.TenantFromContext(ctx), c.Param("profileID"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, status)
}

// GetStatus handles GET /api/v1/onboarding/:profileID
func (h *Handler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	status, err := h.svc.GetStatus(ctx, db.TenantFromContext(ctx), c.Param("profileID"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, status)
}

// CompleteStep handles POST /api/v1/onboarding/:profileID/steps/:stepID
func (h *Handler) CompleteStep(c echo.Context) error {
	var data map[string]any
	if err := c.Bind(&data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	status, err := h.svc.CompleteStep(ctx, db.TenantFromContext(ctx),
		c.Param("profileID"), c.Param("stepID"), data)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, status)
}

// CanExport handles GET /api/v1/onboarding/:profileID/can-export
func (h *Handler) CanExport(c echo.Context) error {
	ctx := c.Request().Context()
	ok, err := h.svc.CanExportProduction(ctx, db.TenantFromContext(ctx), c.Param("profileID"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"can_export_production": ok})
}

// Checklist handles GET /api/v1/onboarding/checklist?jurisdiction=WI
func (h *Handler) Checklist(c echo.Context) error {
	jurisdiction := c.QueryParam("jurisdiction")
	return c.JSON(http.StatusOK, map[string]any{
		"jurisdiction": jurisdiction,
		"items":        GoLiveChecklist(jurisdiction),
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrOnboardingNotFound), errors.Is(err, export.ErrProfileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownStep):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoActivePack), errors.Is(err, ErrSampleNotValidated):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
