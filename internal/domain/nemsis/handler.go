package nemsis

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// maxChartBytes bounds uploaded chart documents.
const maxChartBytes = 25 << 20

// Handler provides the chart validation endpoint.
type Handler struct {
	defaultJurisdiction string
}

// NewHandler creates a chart validation handler. defaultJurisdiction is used
// when the request does not name one.
func NewHandler(defaultJurisdiction string) *Handler {
	return &Handler{defaultJurisdiction: defaultJurisdiction}
}

// RegisterRoutes mounts chart routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/validation/charts", h.ValidateChart)
}

// ValidateChart handles POST /api/v1/validation/charts. The chart document
// is either a multipart "file" part or the raw request body.
func (h *Handler) ValidateChart(c echo.Context) error {
	jurisdiction := c.QueryParam("jurisdiction")
	if jurisdiction == "" {
		jurisdiction = h.defaultJurisdiction
	}

	data, err := chartBytes(c)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "chart document is required")
	}

	return c.JSON(http.StatusOK, ValidateChart(data, jurisdiction))
}

func chartBytes(c echo.Context) ([]byte, error) {
	if file, err := c.FormFile("file"); err == nil {
		src, err := file.Open()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
		}
		defer src.Close()
		data, err := io.ReadAll(io.LimitReader(src, maxChartBytes))
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file")
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxChartBytes))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	return data, nil
}
