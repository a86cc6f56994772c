package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mr1hm/go-disaster-warehouse/internal/bus"
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
	"github.com/mr1hm/go-disaster-warehouse/internal/repository"
)

// Datastore is the read surface the HTTP layer needs from the warehouse.
type Datastore interface {
	ListMasterEvents(ctx context.Context, filter repository.Filter) ([]models.MasterEvent, error)
	MonthlyStats(ctx context.Context, filter repository.Filter) ([]models.MonthlyStat, error)
	Totals(ctx context.Context) (*models.WarehouseTotals, error)
	CountPending(ctx context.Context) (int64, error)
	ListETLErrors(ctx context.Context, limit int) ([]models.ETLError, error)
	Ping(ctx context.Context) error
}

// Runner triggers pipeline passes on demand.
type Runner interface {
	RunETL(ctx context.Context) (*models.RunSummary, error)
	RunDedup(ctx context.Context) (*models.DedupSummary, error)
}

type Handler struct {
	db     Datastore
	runner Runner
	bus    *bus.Bus
}

func NewHandler(db Datastore, runner Runner, b *bus.Bus) *Handler {
	return &Handler{
		db:     db,
		runner: runner,
		bus:    b,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	v1 := r.Group("/api/v1")
	v1.GET("/events", h.listEvents)
	v1.GET("/events/geojson", h.listEventsGeoJSON)
	v1.GET("/events/stream", h.streamEvents)
	v1.GET("/stats/monthly", h.monthlyStats)
	v1.GET("/stats/totals", h.totals)
	v1.GET("/etl/errors", h.listETLErrors)
	v1.POST("/etl/run", h.runETL)
	v1.POST("/dedup/run", h.runDedup)
}

// parseFilter reads the shared report query parameters. Malformed values fall
// back to the defaults rather than failing the request.
func parseFilter(c *gin.Context) repository.Filter {
	filter := repository.Filter{
		Limit: 100, // Default to 100 events if limit param not supplied
	}

	if s := c.Query("start"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Start = &t
		}
	}
	if e := c.Query("end"); e != "" {
		if t, err := time.Parse("2006-01-02", e); err == nil {
			filter.End = &t
		}
	}
	if g := c.Query("group"); g != "" {
		filter.Group = &g
	}
	if co := c.Query("country"); co != "" {
		iso := strings.ToUpper(co)
		filter.Country = &iso
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}

	return filter
}

func (h *Handler) listEvents(c *gin.Context) {
	events, err := h.db.ListMasterEvents(c.Request.Context(), parseFilter(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch events",
		})
		return
	}
	if events == nil {
		events = []models.MasterEvent{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

func (h *Handler) listEventsGeoJSON(c *gin.Context) {
	events, err := h.db.ListMasterEvents(c.Request.Context(), parseFilter(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch events",
		})
		return
	}

	fc := toGeoJSON(events)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) monthlyStats(c *gin.Context) {
	stats, err := h.db.MonthlyStats(c.Request.Context(), parseFilter(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch monthly stats",
		})
		return
	}
	if stats == nil {
		stats = []models.MonthlyStat{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(stats),
		"months": stats,
	})
}

func (h *Handler) totals(c *gin.Context) {
	totals, err := h.db.Totals(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch totals",
		})
		return
	}
	pending, err := h.db.CountPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to count pending staging rows",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totals":          totals,
		"pending_staging": pending,
	})
}

func (h *Handler) listETLErrors(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			limit = lim
		}
	}

	etlErrors, err := h.db.ListETLErrors(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch etl errors",
		})
		return
	}
	if etlErrors == nil {
		etlErrors = []models.ETLError{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(etlErrors),
		"errors": etlErrors,
	})
}

func (h *Handler) runETL(c *gin.Context) {
	summary, err := h.runner.RunETL(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "etl run failed",
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) runDedup(c *gin.Context) {
	summary, err := h.runner.RunDedup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "dedup run failed",
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
