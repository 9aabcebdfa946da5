package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"stock-monitor/internal/models"
	"stock-monitor/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MonitorStore is the persistence surface the admin API needs.
type MonitorStore interface {
	CreateMonitor(ctx context.Context, monitor *models.MonitorConfig) error
	GetMonitorByID(ctx context.Context, id int64) (*models.MonitorConfig, error)
	GetMonitorByProductID(ctx context.Context, productID int64) (*models.MonitorConfig, error)
	GetMonitors(ctx context.Context) ([]models.MonitorConfig, error)
	GetActiveMonitors(ctx context.Context) ([]models.MonitorConfig, error)
	UpdateMonitor(ctx context.Context, id int64, upd models.MonitorConfigUpdate) (*models.MonitorConfig, error)
	DeleteMonitor(ctx context.Context, id int64) error
	GetStockRecords(ctx context.Context, monitorConfigID int64, limit int) ([]models.StockRecord, error)
	Ping(ctx context.Context) error
}

// CycleTrigger exposes the scheduler's manual controls.
type CycleTrigger interface {
	RunNow(ctx context.Context) (models.CycleResult, error)
	Pause()
	Resume()
	IsRunning() bool
}

// ConnectionTester verifies upstream connectivity and credentials.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// SnapshotReader serves the mirrored latest stock state per product and
// the capped recent-event list.
type SnapshotReader interface {
	GetStockSnapshot(ctx context.Context, productID int64) (map[string]string, error)
	RecentEvents(ctx context.Context, n int64) ([]string, error)
}

// Handler contains HTTP handlers
type Handler struct {
	store     MonitorStore
	scheduler CycleTrigger
	tester    ConnectionTester
	snapshots SnapshotReader
}

// NewHandler creates a new HTTP handler. snapshots may be nil when no
// Redis mirror is configured.
func NewHandler(store MonitorStore, scheduler CycleTrigger, tester ConnectionTester, snapshots SnapshotReader) *Handler {
	return &Handler{
		store:     store,
		scheduler: scheduler,
		tester:    tester,
		snapshots: snapshots,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/monitors", h.createMonitor)
		v1.GET("/monitors", h.listMonitors)
		v1.GET("/monitors/:id", h.getMonitor)
		v1.PATCH("/monitors/:id", h.updateMonitor)
		v1.DELETE("/monitors/:id", h.deleteMonitor)
		v1.GET("/monitors/:id/records", h.listStockRecords)

		v1.GET("/products/:id/stock", h.getStockSnapshot)
		v1.GET("/events/recent", h.listRecentEvents)

		v1.POST("/monitoring/run", h.runCycle)
		v1.POST("/scheduler/pause", h.pauseScheduler)
		v1.POST("/scheduler/resume", h.resumeScheduler)
		v1.GET("/whmcs/test", h.testConnection)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"scheduler_running": h.scheduler.IsRunning(),
		"time":              time.Now().Unix(),
	})
}

// readinessCheck verifies the database connection
func (h *Handler) readinessCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// CreateMonitorRequest represents a request to create a monitor
type CreateMonitorRequest struct {
	ProductID         int64   `json:"product_id" binding:"required"`
	ProductName       *string `json:"product_name,omitempty"`
	ThresholdLow      *int    `json:"threshold_low,omitempty"`
	ThresholdHigh     *int    `json:"threshold_high,omitempty"`
	NotifyOnRestock   *bool   `json:"notify_on_restock,omitempty"`
	NotifyOnPurchase  *bool   `json:"notify_on_purchase,omitempty"`
	NotifyOnThreshold *bool   `json:"notify_on_threshold,omitempty"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

// createMonitor handles monitor creation
func (h *Handler) createMonitor(c *gin.Context) {
	var req CreateMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	existing, err := h.store.GetMonitorByProductID(ctx, req.ProductID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to check existing monitors",
			"details": err.Error(),
		})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Monitor for this product already exists",
		})
		return
	}

	monitor := &models.MonitorConfig{
		ProductID:         req.ProductID,
		ProductName:       req.ProductName,
		IsActive:          boolOr(req.IsActive, true),
		ThresholdLow:      req.ThresholdLow,
		ThresholdHigh:     req.ThresholdHigh,
		NotifyOnRestock:   boolOr(req.NotifyOnRestock, true),
		NotifyOnPurchase:  boolOr(req.NotifyOnPurchase, true),
		NotifyOnThreshold: boolOr(req.NotifyOnThreshold, true),
	}

	if err := h.store.CreateMonitor(ctx, monitor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create monitor",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, monitor)
}

// listMonitors handles monitor listing, optionally active-only
func (h *Handler) listMonitors(c *gin.Context) {
	var (
		monitors []models.MonitorConfig
		err      error
	)

	if c.Query("active") == "true" {
		monitors, err = h.store.GetActiveMonitors(c.Request.Context())
	} else {
		monitors, err = h.store.GetMonitors(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list monitors",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"monitors": monitors})
}

// getMonitor handles get monitor by ID
func (h *Handler) getMonitor(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	monitor, err := h.store.GetMonitorByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Monitor not found",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, monitor)
}

// updateMonitor applies a partial update to a monitor
func (h *Handler) updateMonitor(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var upd models.MonitorConfigUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	monitor, err := h.store.UpdateMonitor(c.Request.Context(), id, upd)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Failed to update monitor",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, monitor)
}

// deleteMonitor deletes a monitor and its records
func (h *Handler) deleteMonitor(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteMonitor(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Failed to delete monitor",
			"details": err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// listStockRecords returns recent observations for a monitor, newest first
func (h *Handler) listStockRecords(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	records, err := h.store.GetStockRecords(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list stock records",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

// getStockSnapshot serves the mirrored latest stock state for a product
func (h *Handler) getStockSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Stock snapshot mirror is not configured",
		})
		return
	}

	id, ok := parseID(c)
	if !ok {
		return
	}

	snapshot, err := h.snapshots.GetStockSnapshot(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to read stock snapshot",
			"details": err.Error(),
		})
		return
	}
	if len(snapshot) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No stock snapshot for this product",
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// listRecentEvents serves the mirrored recent-event list, newest first
func (h *Handler) listRecentEvents(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Stock snapshot mirror is not configured",
		})
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	raw, err := h.snapshots.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to read recent events",
			"details": err.Error(),
		})
		return
	}

	// Entries are stored as JSON; re-emit them without double encoding.
	events := make([]json.RawMessage, 0, len(raw))
	for _, entry := range raw {
		events = append(events, json.RawMessage(entry))
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// runCycle triggers one monitoring cycle synchronously
func (h *Handler) runCycle(c *gin.Context) {
	result, err := h.scheduler.RunNow(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Monitoring cycle failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "completed",
		"result": result,
	})
}

// pauseScheduler pauses scheduled monitoring
func (h *Handler) pauseScheduler(c *gin.Context) {
	h.scheduler.Pause()
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

// resumeScheduler resumes scheduled monitoring
func (h *Handler) resumeScheduler(c *gin.Context) {
	h.scheduler.Resume()
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}

// testConnection verifies upstream connectivity and credentials
func (h *Handler) testConnection(c *gin.Context) {
	if err := h.tester.TestConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"status":  "failed",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
