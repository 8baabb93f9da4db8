package export

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emsgrid/emsgrid/internal/domain/nemsis"
	"github.com/emsgrid/emsgrid/internal/platform/db"
	"github.com/emsgrid/emsgrid/internal/platform/store"
)

// Handler provides the export endpoints.
type Handler struct {
	svc *Service
	st  store.Store
}

// NewHandler creates an export handler.
func NewHandler(svc *Service, st store.Store) *Handler {
	return &Handler{svc: svc, st: st}
}

// RegisterRoutes mounts export routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	exp := g.Group("/export")
	exp.GET("/entity/:profileID", h.EntityPayload)
	exp.GET("/incidents/:id/payload", h.IncidentPayload)
	exp.GET("/incidents/:id/chart", h.Chart)
}

// EntityPayload handles GET /api/v1/export/entity/:profileID
func (h *Handler) EntityPayload(c echo.Context) error {
	ctx := c.Request().Context()
	payload, err := h.svc.BuildEntityPayload(ctx, db.TenantFromContext(ctx), c.Param("profileID"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, payload)
}

// IncidentPayload handles GET /api/v1/export/incidents/:id/payload
func (h *Handler) IncidentPayload(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := db.TenantFromContext(ctx)
	rec, err := h.st.Get(ctx, CollectionIncidents, tenant, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "incident record not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.svc.BuildIncidentPayload(rec))
}

// Chart handles GET /api/v1/export/incidents/:id/chart?profile_id=...
// The chart is rendered for the agency identified by profile_id.
func (h *Handler) Chart(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := db.TenantFromContext(ctx)

	profileID := c.QueryParam("profile_id")
	if profileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile_id is required")
	}
	agency, err := h.agencyInfo(c, tenant, profileID)
	if err != nil {
		return err
	}

	chart, err := h.svc.ExportChart(ctx, tenant, c.Param("id"), agency)
	if err != nil {
		return mapError(err)
	}
	return c.Blob(http.StatusOK, "application/xml", chart)
}

func (h *Handler) agencyInfo(c echo.Context, tenant, profileID string) (nemsis.AgencyInfo, error) {
	profile, err := h.st.Get(c.Request().Context(), CollectionProfiles, tenant, profileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nemsis.AgencyInfo{}, echo.NewHTTPError(http.StatusNotFound, "agency profile not found")
		}
		return nemsis.AgencyInfo{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return nemsis.AgencyInfo{
		StateID: profile.String("agency_state_id"),
		Number:  profile.String("agency_number"),
		Name:    profile.String("agency_name"),
		State:   profile.String("agency_state"),
	}, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrIncidentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
