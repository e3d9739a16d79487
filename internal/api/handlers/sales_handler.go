package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/service"
	"github.com/gin-gonic/gin"
)

type SalesHandler struct {
	sales *service.SalesService
}

func NewSalesHandler(sales *service.SalesService) *SalesHandler {
	return &SalesHandler{sales: sales}
}

type saleRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Channel   string `json:"channel" binding:"required"`
	Date      string `json:"date" binding:"required"`
	UnitsSold int    `json:"units_sold"`
}

type stockRequest struct {
	Warehouses    []domain.WarehouseStock `json:"warehouses"`
	ChannelStocks []domain.ChannelStock   `json:"channel_stocks"`
}

func (h *SalesHandler) PostSales(c *gin.Context) {
	var req []saleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	records := make([]domain.DailySaleRecord, 0, len(req))
	for i, r := range req {
		date, err := time.Parse(domain.DateLayout, r.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("record %d: invalid date", i)})
			return
		}
		records = append(records, domain.DailySaleRecord{
			ProductID: r.ProductID,
			Channel:   r.Channel,
			Date:      date,
			UnitsSold: r.UnitsSold,
		})
	}

	if err := h.sales.RecordDailySales(c.Request.Context(), records); err != nil {
		if errors.Is(err, domain.ErrInvalidProduct) || errors.Is(err, domain.ErrInvalidSale) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record sales", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recorded": len(records)})
}

func (h *SalesHandler) PutStock(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	snapshot := &domain.StockSnapshot{
		ProductID:     productID,
		Warehouses:    req.Warehouses,
		ChannelStocks: req.ChannelStocks,
		ObservedAt:    time.Now().UTC(),
	}
	if err := h.sales.SyncStock(c.Request.Context(), snapshot); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sync stock", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"product_id": productID, "total": snapshot.Total()})
}
