package validation

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emsgrid/emsgrid/internal/domain/ruledoc"
	"github.com/emsgrid/emsgrid/internal/domain/rulepack"
	"github.com/emsgrid/emsgrid/internal/platform/db"
)

// Handler provides the record validation endpoint.
type Handler struct {
	validator *Validator
	packs     *rulepack.Service
}

// NewHandler creates a validation handler.
func NewHandler(validator *Validator, packs *rulepack.Service) *Handler {
	return &Handler{validator: validator, packs: packs}
}

// RegisterRoutes mounts validation routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/validation/records", h.ValidateRecord)
}

// ValidateRecordRequest is the request body for record validation. PackID is
// optional; when empty the active pack for the jurisdiction is used.
type ValidateRecordRequest struct {
	EntityType   string         `json:"entity_type"`
	PackID       string         `json:"pack_id"`
	Jurisdiction string         `json:"jurisdiction"`
	Payload      map[string]any `json:"payload"`
}

// ValidateRecord handles POST /api/v1/validation/records
func (h *Handler) ValidateRecord(c echo.Context) error {
	var req ValidateRecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	entity := ruledoc.EntityType(req.EntityType)
	switch entity {
	case ruledoc.EntityIncident, ruledoc.EntityProfile:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "entity_type must be INCIDENT or PROFILE")
	}

	ctx := c.Request().Context()
	tenant := db.TenantFromContext(ctx)

	packID := req.PackID
	if packID == "" {
		pack, err := h.activePack(c, req.Jurisdiction)
		if err != nil {
			return err
		}
		packID = pack.ID
	}

	result, err := h.validator.Validate(ctx, tenant, packID, entity, req.Payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// activePack resolves the active pack for a jurisdiction, preferring a
// bundle over a standalone jurisdiction dataset.
func (h *Handler) activePack(c echo.Context, jurisdiction string) (*rulepack.Pack, error) {
	if jurisdiction == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "jurisdiction is required when pack_id is not set")
	}
	ctx := c.Request().Context()
	tenant := db.TenantFromContext(ctx)
	for _, packType := range []rulepack.PackType{rulepack.TypeBundle, rulepack.TypeStateDataset} {
		pack, err := h.packs.GetActivePack(ctx, tenant, jurisdiction, packType)
		if err != nil {
			if errors.Is(err, rulepack.ErrPackNotFound) {
				continue
			}
			return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if pack != nil {
			return pack, nil
		}
	}
	return nil, echo.NewHTTPError(http.StatusNotFound, "no active pack for jurisdiction "+jurisdiction)
}
