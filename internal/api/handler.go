package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arthurwhennig/asterix/internal/models"
	"github.com/arthurwhennig/asterix/internal/repository"
	"github.com/arthurwhennig/asterix/internal/session"
)

// Extractor is the session surface the HTTP layer drives.
type Extractor interface {
	StartAsync(req *models.ExtractionRequest) (*models.Session, error)
	Resolve(ctx context.Context, req *models.ExtractionRequest) (*models.Session, error)
	Status(ctx context.Context, id string) (*models.Session, error)
	Result(ctx context.Context, id string) (*models.ConsequenceReport, error)
	Cancel(id string) error
	ResolveImpactor(ctx context.Context, designation string) (*models.ImpactorProfile, error)
	ResolveSite(ctx context.Context, lat, lon float64) (*models.SiteProfile, error)
	Subscribe() (uint64, chan session.ProgressEvent)
	Unsubscribe(id uint64)
}

type Handler struct {
	extractor Extractor
	sessions  repository.SessionRepository
}

func NewHandler(extractor Extractor, sessions repository.SessionRepository) *Handler {
	return &Handler{
		extractor: extractor,
		sessions:  sessions,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/extraction/extract", h.extract)
	r.POST("/api/extraction/extract-async", h.extractAsync)
	r.GET("/api/extraction/status/:id", h.status)
	r.GET("/api/extraction/results/:id", h.results)
	r.POST("/api/extraction/cancel/:id", h.cancel)
	r.GET("/api/extraction/sessions", h.listSessions)
	r.GET("/api/extraction/stream", h.stream)
	r.GET("/api/extraction/asteroids/:name", h.asteroid)
	r.GET("/api/extraction/site", h.site)
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *Handler) extract(c *gin.Context) {
	var req models.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	sess, err := h.extractor.Resolve(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) extractAsync(c *gin.Context) {
	var req models.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	sess, err := h.extractor.StartAsync(&req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"extraction_id": sess.ID,
		"status":        sess.Status,
		"status_url":    "/api/extraction/status/" + sess.ID,
	})
}

func (h *Handler) status(c *gin.Context) {
	sess, err := h.extractor.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) results(c *gin.Context) {
	rep, err := h.extractor.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.extractor.Cancel(id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"extraction_id": id, "status": string(models.StatusCancelled)})
}

func (h *Handler) listSessions(c *gin.Context) {
	filter := repository.Filter{
		Limit: 20, // Default to 20 sessions if limit param not supplied
	}

	if s := c.Query("status"); s != "" {
		status := models.SessionStatus(s)
		filter.Status = &status
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off >= 0 {
			filter.Offset = off
		}
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch sessions"})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

func (h *Handler) asteroid(c *gin.Context) {
	profile, err := h.extractor.ResolveImpactor(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) site(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon query parameters are required"})
		return
	}

	profile, err := h.extractor.ResolveSite(c.Request.Context(), lat, lon)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// stream pushes session progress events as server-sent events. An optional
// ?id= filters to one session; the stream ends when the client disconnects
// or the orchestrator shuts down.
func (h *Handler) stream(c *gin.Context) {
	subID, events := h.extractor.Subscribe()
	defer h.extractor.Unsubscribe(subID)

	filter := c.Query("id")
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if filter != "" && ev.SessionID != filter {
				return true
			}
			c.SSEvent("progress", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
