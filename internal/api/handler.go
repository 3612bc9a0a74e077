package api

import (
	"bytes"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/dataset"
	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
	"github.com/bobby-s-dev/air-quality-dashboard/internal/pipeline"
	"github.com/bobby-s-dev/air-quality-dashboard/internal/render"
	"github.com/bobby-s-dev/air-quality-dashboard/internal/services"
)

type ChartConfig struct {
	Width  int
	Height int
	Locale string
}

type Handler struct {
	dashboard *services.Dashboard
	charts    ChartConfig
	logger    *zap.Logger
}

func NewHandler(dashboard *services.Dashboard, charts ChartConfig, logger *zap.Logger) *Handler {
	return &Handler{
		dashboard: dashboard,
		charts:    charts,
		logger:    logger,
	}
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidSpec):
		return fiber.StatusBadRequest
	case errors.Is(err, render.ErrNoData):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, dataset.ErrIO):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, message string, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("path", c.Path()),
			zap.Error(err))
	} else {
		h.logger.Debug(message,
			zap.String("path", c.Path()),
			zap.Error(err))
	}

	body := fiber.Map{
		"error":   message,
		"details": err.Error(),
	}
	if errors.Is(err, render.ErrNoData) {
		body["error"] = render.ErrNoData.Error()
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}

// run parses the filter from the query string and runs the pipeline.
func (h *Handler) run(c *fiber.Ctx) (pipeline.Output, error) {
	req, err := parseFilterQuery(c)
	if err != nil {
		return pipeline.Output{}, errors.Join(services.ErrInvalidSpec, err)
	}
	return h.runRequest(c, req)
}

func (h *Handler) runRequest(c *fiber.Ctx, req FilterRequest) (pipeline.Output, error) {
	spec, preview, err := req.Spec()
	if err != nil {
		return pipeline.Output{}, errors.Join(services.ErrInvalidSpec, err)
	}
	return h.dashboard.Run(c.UserContext(), spec, preview)
}

// GetDashboard handles GET /api/v1/dashboard
func (h *Handler) GetDashboard(c *fiber.Ctx) error {
	out, err := h.run(c)
	if err != nil {
		return h.fail(c, "Failed to build dashboard", err)
	}
	return c.JSON(out.Result)
}

// PostDashboard handles POST /api/v1/dashboard
func (h *Handler) PostDashboard(c *fiber.Ctx) error {
	var req FilterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	out, err := h.runRequest(c, req)
	if err != nil {
		return h.fail(c, "Failed to build dashboard", err)
	}
	return c.JSON(out.Result)
}

// GetMonthlyChart handles GET /api/v1/charts/monthly.png
func (h *Handler) GetMonthlyChart(c *fiber.Ctx) error {
	out, err := h.run(c)
	if err != nil {
		return h.fail(c, "Failed to build dashboard", err)
	}

	var buf bytes.Buffer
	err = render.MonthlyTrendPNG(&buf, out.Result.Monthly, render.ChartOptions{
		Width:  h.charts.Width,
		Height: h.charts.Height,
	})
	if err != nil {
		return h.fail(c, "Failed to render chart", err)
	}

	c.Type("png")
	return c.Send(buf.Bytes())
}

// GetCorrelationChart handles GET /api/v1/charts/correlation.png
func (h *Handler) GetCorrelationChart(c *fiber.Ctx) error {
	out, err := h.run(c)
	if err != nil {
		return h.fail(c, "Failed to build dashboard", err)
	}

	var buf bytes.Buffer
	err = render.CorrelationHeatmapPNG(&buf, out.Result.Correlation, render.HeatmapOptions{
		Width:  h.charts.Width,
		Height: h.charts.Height,
		Locale: h.charts.Locale,
	})
	if err != nil {
		return h.fail(c, "Failed to render chart", err)
	}

	c.Type("png")
	return c.Send(buf.Bytes())
}

// ExportCSV handles GET /api/v1/export.csv
func (h *Handler) ExportCSV(c *fiber.Ctx) error {
	out, err := h.run(c)
	if err != nil {
		return h.fail(c, "Failed to build dashboard", err)
	}

	var buf bytes.Buffer
	if err := render.WriteCSV(&buf, out.Cleaned); err != nil {
		return h.fail(c, "Failed to export csv", err)
	}

	c.Attachment("air_quality_cleaned.csv")
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}

// ExportXLSX handles GET /api/v1/export.xlsx
func (h *Handler) ExportXLSX(c *fiber.Ctx) error {
	out, err := h.run(c)
	if err != nil {
		return h.fail(c, "Failed to build dashboard", err)
	}

	var buf bytes.Buffer
	if err := render.WriteXLSX(&buf, out.Result, out.Cleaned); err != nil {
		return h.fail(c, "Failed to export workbook", err)
	}

	c.Attachment("air_quality.xlsx")
	return c.Send(buf.Bytes())
}

// GetDatasetSummary handles GET /api/v1/dataset/summary
func (h *Handler) GetDatasetSummary(c *fiber.Ctx) error {
	summary, err := h.dashboard.Summary(c.UserContext())
	if err != nil {
		return h.fail(c, "Failed to load dataset", err)
	}
	return c.JSON(summary)
}

// ReloadDataset handles POST /api/v1/dataset/reload
func (h *Handler) ReloadDataset(c *fiber.Ctx) error {
	h.logger.Info("Dataset reload requested")

	if err := h.dashboard.Reload(c.UserContext()); err != nil {
		return h.fail(c, "Failed to reload dataset", err)
	}

	summary, err := h.dashboard.Summary(c.UserContext())
	if err != nil {
		return h.fail(c, "Failed to load dataset", err)
	}
	return c.JSON(fiber.Map{
		"status":  "reloaded",
		"version": summary.Version,
		"rows":    summary.Rows,
	})
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	lastLoad := h.dashboard.LastLoadTime()
	stats := h.dashboard.GetStats()

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now(),
		"last_load": lastLoad,
		"uptime":    time.Since(startTime).String(),
		"stats":     stats,
	})
}

// GetMetrics handles GET /api/v1/metrics
func (h *Handler) GetMetrics(c *fiber.Ctx) error {
	stats := h.dashboard.GetStats()

	return c.JSON(fiber.Map{
		"metrics":   stats,
		"timestamp": time.Now(),
	})
}

type variableInfo struct {
	Name        models.Variable `json:"name"`
	Description string          `json:"description"`
	Pollutant   bool            `json:"pollutant"`
}

// GetVariables handles GET /api/v1/variables
func (h *Handler) GetVariables(c *fiber.Ctx) error {
	variables := make([]variableInfo, 0, len(models.AllVariables))
	for _, v := range models.AllVariables {
		variables = append(variables, variableInfo{
			Name:        v,
			Description: v.Description(),
			Pollutant:   v == models.PM25 || v == models.PM10,
		})
	}

	return c.JSON(fiber.Map{
		"variables":  variables,
		"pollutants": models.Pollutants,
		"defaults":   models.DefaultFilterSpec(),
	})
}

var startTime = time.Now()
