package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fusionn-seer/internal/client/overseerr"
	"github.com/fusionn-seer/internal/scheduler"
	"github.com/fusionn-seer/internal/service/availability"
	"github.com/fusionn-seer/internal/service/tracker"
	"github.com/fusionn-seer/internal/status"
	"github.com/fusionn-seer/internal/version"
	"github.com/fusionn-seer/pkg/logger"
)

const maxBatchIDs = 100

type Handler struct {
	availability *availability.Service
	tracker      *tracker.Service
	scheduler    *scheduler.Scheduler
}

func New(availabilityService *availability.Service, trackerService *tracker.Service, sched *scheduler.Scheduler) *Handler {
	return &Handler{
		availability: availabilityService,
		tracker:      trackerService,
		scheduler:    sched,
	}
}

// RegisterRoutes sets up the HTTP routes
func (h *Handler) RegisterRoutes(r *gin.Engine, limiter *IPRateLimiter) {
	api := r.Group("/api/v1")

	// Health stays outside the rate limit so probes never get 429
	api.GET("/health", h.Health)

	limited := api.Group("")
	if limiter != nil {
		limited.Use(limiter.Middleware())
	}
	{
		limited.POST("/aggregate", h.Aggregate)

		limited.GET("/tv/:tmdbId/status", h.ShowStatus)
		limited.POST("/tv/:tmdbId/request", h.RequestShow)
		limited.GET("/status/tv", h.BatchShowStatus)

		limited.GET("/search/tv", h.Search)

		limited.GET("/movie/:tmdbId/status", h.MovieStatus)
		limited.POST("/movie/:tmdbId/request", h.RequestMovie)

		limited.GET("/tracker/stats", h.TrackerStats)
		limited.POST("/tracker/run", h.TriggerTracker)
		limited.DELETE("/tracker/state", h.ResetTracker)
	}
}

// Health returns service health status
func (h *Handler) Health(c *gin.Context) {
	running := false
	if h.scheduler != nil {
		running = h.scheduler.IsRunning()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"scheduler":       running,
		"tracker_enabled": h.tracker != nil && h.tracker.Enabled(),
		"version":         version.Get(),
	})
}

type aggregateRequest struct {
	Seasons []status.SeasonRecord `json:"seasons"`
}

// Aggregate runs the season aggregator on a caller-supplied season list.
// The body is either {"seasons": [...]} or a bare array.
func (h *Handler) Aggregate(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var seasons []status.SeasonRecord
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		// absent list aggregates like an empty one
	case trimmed[0] == '[':
		err = json.Unmarshal(trimmed, &seasons)
	default:
		var req aggregateRequest
		err = json.Unmarshal(trimmed, &req)
		seasons = req.Seasons
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid season list: " + err.Error()})
		return
	}

	result := status.Aggregate(seasons)
	c.JSON(http.StatusOK, gin.H{
		"result":          result,
		"button":          status.Button(result),
		"missing_seasons": status.MissingSeasons(seasons),
	})
}

// ShowStatus returns the aggregated request status of a show
func (h *Handler) ShowStatus(c *gin.Context) {
	id, ok := tmdbParam(c)
	if !ok {
		return
	}

	st, err := h.availability.ShowStatus(c.Request.Context(), id, c.Query("fresh") == "true")
	if err != nil {
		upstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, st)
}

// BatchShowStatus returns statuses for ?ids=1,2,3
func (h *Handler) BatchShowStatus(c *gin.Context) {
	ids, err := parseIDs(c.Query("ids"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries := h.availability.BatchShowStatus(c.Request.Context(), ids, c.Query("fresh") == "true")
	c.JSON(http.StatusOK, gin.H{"shows": entries})
}

// RequestShow requests every season of a show that is not yet requested
func (h *Handler) RequestShow(c *gin.Context) {
	id, ok := tmdbParam(c)
	if !ok {
		return
	}

	out, err := h.availability.RequestMissing(c.Request.Context(), id)
	if err != nil {
		upstreamError(c, err)
		return
	}

	code := http.StatusOK
	if out.Action == "requested" {
		code = http.StatusCreated
	}
	c.JSON(code, out)
}

// MovieStatus returns the request status of a movie
func (h *Handler) MovieStatus(c *gin.Context) {
	id, ok := tmdbParam(c)
	if !ok {
		return
	}

	st, err := h.availability.MovieStatus(c.Request.Context(), id, c.Query("fresh") == "true")
	if err != nil {
		upstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, st)
}

// RequestMovie requests a movie that is not yet requested
func (h *Handler) RequestMovie(c *gin.Context) {
	id, ok := tmdbParam(c)
	if !ok {
		return
	}

	out, err := h.availability.RequestMovie(c.Request.Context(), id)
	if err != nil {
		upstreamError(c, err)
		return
	}

	code := http.StatusOK
	if out.Action == "requested" {
		code = http.StatusCreated
	}
	c.JSON(code, out)
}

// Search finds shows by name with their media-level status
func (h *Handler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	hits, err := h.availability.Search(c.Request.Context(), query)
	if err != nil {
		upstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": hits})
}

// TrackerStats returns tracker statistics
func (h *Handler) TrackerStats(c *gin.Context) {
	if h.tracker == nil || !h.tracker.Enabled() {
		c.JSON(http.StatusOK, gin.H{
			"enabled": false,
			"message": "tracker is disabled",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled": true,
		"stats":   h.tracker.GetStats(),
	})
}

// TriggerTracker manually runs the tracker
func (h *Handler) TriggerTracker(c *gin.Context) {
	if h.tracker == nil || !h.tracker.Enabled() {
		c.JSON(http.StatusOK, gin.H{
			"enabled": false,
			"message": "tracker is disabled",
		})
		return
	}

	results, err := h.tracker.Process(c.Request.Context())
	if errors.Is(err, tracker.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   err.Error(),
			"results": results,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "tracker processing complete",
		"results": results,
	})
}

func tmdbParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("tmdbId"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid TMDB id"})
		return 0, false
	}
	return id, true
}

func parseIDs(raw string) ([]int, error) {
	if raw == "" {
		return nil, errors.New("ids is required")
	}

	parts := strings.Split(raw, ",")
	if len(parts) > maxBatchIDs {
		return nil, errors.New("too many ids (max " + strconv.Itoa(maxBatchIDs) + ")")
	}

	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return nil, errors.New("invalid TMDB id: " + p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func upstreamError(c *gin.Context, err error) {
	if errors.Is(err, overseerr.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	logger.Warnf("⚠️  Overseerr lookup failed: %v", err)
	_ = c.Error(err)
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

// ResetTracker clears recorded tracker state
func (h *Handler) ResetTracker(c *gin.Context) {
	if h.tracker == nil {
		c.JSON(http.StatusOK, gin.H{
			"enabled": false,
			"message": "tracker is disabled",
		})
		return
	}

	err := h.tracker.Reset()
	switch {
	case errors.Is(err, tracker.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "tracker state cleared"})
	}
}
