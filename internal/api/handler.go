package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mneedham/pinot-cryptowatch/internal/domain/dto"
	"github.com/mneedham/pinot-cryptowatch/internal/domain/models"
	"github.com/mneedham/pinot-cryptowatch/internal/service"
)

// Handler provides HTTP handlers for the dashboard endpoints.
//
// Responsibilities:
//   - Validate incoming HTTP query parameters
//   - Delegate to the dashboard service for bundle assembly
//   - Translate result bundles into response DTOs
//   - Return structured JSON responses with appropriate HTTP status codes
type Handler struct {
	svc service.DashboardService
}

// NewHandler constructs a new Handler instance.
//
// Parameters:
//   - svc (service.DashboardService): Dashboard service used to assemble result bundles.
//
// Returns:
//   - *Handler: A handler ready to be registered with the router.
func NewHandler(svc service.DashboardService) *Handler {
	return &Handler{svc: svc}
}

const (
	defaultQuote = "United States Dollar"

	minWindowMinutes = 1
	maxWindowMinutes = 1440

	defaultTradesLimit = 50
	maxTradesLimit     = 200
)

// GetOverview handles GET /api/v1/overview requests.
//
// Query Parameters:
//   - window (int, optional): Trailing window length in minutes, 1 to 1440. Defaults to 1.
//   - quote (string, optional): Quote currency name for the notional rankings.
//     Defaults to "United States Dollar".
//
// Responses:
//   - 200 OK: Returns OverviewResponse with the market-wide bundle. A window
//     with no trades is still 200; the aggregate block carries a noData flag.
//   - 400 Bad Request: Invalid window parameter.
//   - 500 Internal Server Error: A bundle query failed.
func (h *Handler) GetOverview(c *gin.Context) {
	// ─── Validate "window" param ──────────────────────────────
	window, err := parseWindow(c.Query("window"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid window, expected minutes between 1 and 1440", err))
		return
	}

	quote := strings.TrimSpace(c.Query("quote"))
	if quote == "" {
		quote = defaultQuote
	}

	// ─── Query service (with request context) ─────────────────
	bundle, err := h.svc.Overview(c.Request.Context(), window, quote)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("failed to assemble overview", err))
		return
	}

	c.JSON(http.StatusOK, dto.NewOverviewResponse(*bundle))
}

// GetAsset handles GET /api/v1/asset/:base requests.
//
// Path Parameters:
//   - base (string, required): Base asset name (e.g., "Bitcoin").
//
// Query Parameters:
//   - window (int, optional): Trailing window length in minutes, 1 to 1440. Defaults to 1.
//   - quote (string, optional): Quote currency for the price statistics.
//     Defaults to "United States Dollar".
//
// Responses:
//   - 200 OK: Returns AssetResponse with the per-asset bundle.
//   - 400 Bad Request: Missing base asset or invalid window parameter.
//   - 500 Internal Server Error: A bundle query failed.
func (h *Handler) GetAsset(c *gin.Context) {
	base := strings.TrimSpace(c.Param("base"))
	if base == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("base asset is required", nil))
		return
	}

	window, err := parseWindow(c.Query("window"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid window, expected minutes between 1 and 1440", err))
		return
	}

	quote := strings.TrimSpace(c.Query("quote"))
	if quote == "" {
		quote = defaultQuote
	}

	bundle, err := h.svc.Asset(c.Request.Context(), base, quote, window)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("failed to assemble asset view", err))
		return
	}

	c.JSON(http.StatusOK, dto.NewAssetResponse(*bundle))
}

// GetLatestTrades handles GET /api/v1/trades/latest requests.
//
// Query Parameters:
//   - base (string, optional): Restrict to one base asset.
//   - quote (string, optional): Restrict to one quote currency.
//   - limit (int, optional): Number of trades to return, 1 to 200. Defaults to 50.
//
// Responses:
//   - 200 OK: Returns TradesResponse, newest first.
//   - 400 Bad Request: Invalid limit parameter.
//   - 500 Internal Server Error: Query failed.
func (h *Handler) GetLatestTrades(c *gin.Context) {
	limit := defaultTradesLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxTradesLimit {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid limit, expected 1 to 200", err))
			return
		}
		limit = parsed
	}

	filter := models.StatsFilter{
		BaseName:  strings.TrimSpace(c.Query("base")),
		QuoteName: strings.TrimSpace(c.Query("quote")),
	}

	trades, err := h.svc.LatestTrades(c.Request.Context(), filter, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("failed to fetch latest trades", err))
		return
	}

	c.JSON(http.StatusOK, dto.NewTradesResponse(trades))
}

// parseWindow validates the optional window query parameter. An empty value
// means the default one-minute window.
func parseWindow(raw string) (int, error) {
	if raw == "" {
		return minWindowMinutes, nil
	}
	window, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if window < minWindowMinutes || window > maxWindowMinutes {
		return 0, strconv.ErrRange
	}
	return window, nil
}
