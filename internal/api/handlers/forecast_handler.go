package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const maxUploadBytes = 20 << 20

type ForecastHandler struct {
	forecasts *service.ForecastService
	uploads   *service.UploadService
}

func NewForecastHandler(forecasts *service.ForecastService, uploads *service.UploadService) *ForecastHandler {
	return &ForecastHandler{forecasts: forecasts, uploads: uploads}
}

type targetRequest struct {
	StartDate     string          `json:"start_date" binding:"required"`
	EndDate       string          `json:"end_date" binding:"required"`
	SalesForecast decimal.Decimal `json:"sales_forecast"`
	Channel       *string         `json:"channel"`
}

func (h *ForecastHandler) GetPastSales(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	past, err := h.forecasts.PastSales(c.Request.Context(), productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch past sales", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, past)
}

func (h *ForecastHandler) GetDepletionReport(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	filter, err := parseReportFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.forecasts.DepletionReportPage(c.Request.Context(), productID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build depletion report", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *ForecastHandler) GetTargets(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	targets, err := h.forecasts.ForecastRanges(c.Request.Context(), productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch targets", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, targets)
}

// PutTargets replaces every stored range of the product with the submitted list.
func (h *ForecastHandler) PutTargets(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	var req []targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	targets := make([]domain.SalesTarget, 0, len(req))
	for i, r := range req {
		start, err := time.Parse(domain.DateLayout, r.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("target %d: invalid start_date", i)})
			return
		}
		end, err := time.Parse(domain.DateLayout, r.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("target %d: invalid end_date", i)})
			return
		}
		if r.SalesForecast.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("target %d: sales_forecast must not be negative", i)})
			return
		}
		targets = append(targets, domain.SalesTarget{
			StartDate:     start,
			EndDate:       end,
			SalesForecast: r.SalesForecast,
			Channel:       r.Channel,
		})
	}

	result, err := h.forecasts.SaveForecastRanges(c.Request.Context(), productID, targets)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidProduct) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save targets", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// UploadTargets merges a CSV or XLSX forecast file into the stored ranges.
func (h *ForecastHandler) UploadTargets(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open file", "details": err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file", "details": err.Error()})
		return
	}

	result, err := h.uploads.ImportFile(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidUpload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload", "details": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to import upload", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ForecastHandler) ListUploads(c *gin.Context) {
	objects, err := h.uploads.ArchivedUploads(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list uploads", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, objects)
}

func productIDParam(c *gin.Context) (int64, bool) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidProduct.Error()})
		return 0, false
	}
	return productID, true
}

func parseReportFilter(c *gin.Context) (domain.ReportFilter, error) {
	filter := domain.ReportFilter{
		Page:     1,
		PageSize: 50,
	}

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && page > 0 {
		filter.Page = page
	}

	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil && size > 0 {
		filter.PageSize = size
	}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, ok := domain.ParseStatusFlag(raw)
		if !ok {
			return filter, fmt.Errorf("invalid status %q", raw)
		}
		filter.Status = &status
	}

	if sortField := strings.TrimSpace(c.Query("sort_field")); sortField != "" {
		filter.SortField = strings.ToLower(sortField)
	}

	sortDir := strings.ToLower(strings.TrimSpace(c.Query("sort_direction")))
	if sortDir != "desc" {
		sortDir = "asc"
	}
	filter.SortDir = sortDir

	return filter, nil
}
