package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"terratrack_notifier/internal/app"
	"terratrack_notifier/internal/domain/planting"
	"terratrack_notifier/internal/domain/user"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PlantingManager is the planting use-case surface the API exposes.
type PlantingManager interface {
	AddPlanting(ctx context.Context, ownerID string, in app.NewPlanting) (*planting.Planting, error)
	ReplacePlanting(ctx context.Context, ownerID, plantingID string, in app.NewPlanting) (*planting.Planting, error)
	DeletePlanting(ctx context.Context, ownerID, plantingID string) error
	Overview(ctx context.Context, ownerID string, today time.Time) (*app.Overview, error)
	SetNotifications(ctx context.Context, userID string, enabled bool) error
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DefaultRunTimeout bounds a dispatch run triggered over HTTP when Options leaves it unset.
const DefaultRunTimeout = 10 * time.Minute

// Options configures the HTTP surface.
type Options struct {
	RunTimeout time.Duration
	// AdminToken, when set, is required as a bearer token on POST /dispatch.
	AdminToken string
	// Location is the zone "today" is read in; nil means UTC.
	Location *time.Location
}

type Handler struct {
	dispatcher app.Dispatcher
	plantings  PlantingManager
	pingers    map[string]Pinger
	logger     *logrus.Entry
	runTimeout time.Duration
	adminToken string
	now        func() time.Time
}

func NewHandler(dispatcher app.Dispatcher, plantings PlantingManager, pingers map[string]Pinger, opts Options, logger *logrus.Entry) *Handler {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	return &Handler{
		dispatcher: dispatcher,
		plantings:  plantings,
		pingers:    pingers,
		logger:     logger,
		runTimeout: opts.RunTimeout,
		adminToken: opts.AdminToken,
		now:        app.ClockIn(opts.Location),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type plantingRequest struct {
	CropName     string `json:"crop_name"`
	PlantingDate string `json:"planting_date"`
	BatchID      string `json:"batch_id"`
	Notes        string `json:"notes"`
}

type notificationsRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.pingers))
	healthy := true
	for name, p := range h.pingers {
		if err := p.PingContext(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

// RequireAdmin rejects requests without the configured bearer token.
// It lets everything through when no token is configured.
func (h *Handler) RequireAdmin(c *gin.Context) {
	if h.adminToken == "" {
		c.Next()
		return
	}
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		h.logger.WithFields(logrus.Fields{
			"path":      c.FullPath(),
			"client_ip": c.ClientIP(),
		}).Warn("Unauthorized admin request")
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	c.Next()
}

// Dispatch runs the digest dispatch synchronously and returns its summary.
// The run ignores request cancellation and is bounded by the run timeout.
func (h *Handler) Dispatch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.runTimeout)
	defer cancel()

	summary, err := h.dispatcher.Run(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Dispatch run triggered over HTTP failed")
		if summary != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ListPlantings(c *gin.Context) {
	today, ok := h.today(c)
	if !ok {
		return
	}
	overview, err := h.plantings.Overview(c.Request.Context(), c.Param("user_id"), today)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOverviewResponse(overview))
}

func (h *Handler) CreatePlanting(c *gin.Context) {
	in, ok := bindPlanting(c)
	if !ok {
		return
	}
	p, err := h.plantings.AddPlanting(c.Request.Context(), c.Param("user_id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPlantingResponse(p))
}

func (h *Handler) UpdatePlanting(c *gin.Context) {
	in, ok := bindPlanting(c)
	if !ok {
		return
	}
	p, err := h.plantings.ReplacePlanting(c.Request.Context(), c.Param("user_id"), c.Param("planting_id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPlantingResponse(p))
}

func (h *Handler) DeletePlanting(c *gin.Context) {
	if err := h.plantings.DeletePlanting(c.Request.Context(), c.Param("user_id"), c.Param("planting_id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetNotifications(c *gin.Context) {
	var req notificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "body must be {\"enabled\": true|false}"})
		return
	}
	if err := h.plantings.SetNotifications(c.Request.Context(), c.Param("user_id"), *req.Enabled); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("user_id"), "notifications_enabled": *req.Enabled})
}

// PreviewDigest returns the digest text a user would receive, without publishing it.
func (h *Handler) PreviewDigest(c *gin.Context) {
	today, ok := h.today(c)
	if !ok {
		return
	}
	body, err := h.dispatcher.Preview(c.Request.Context(), c.Param("user_id"), today)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": c.Param("user_id"),
		"date":    app.FormatDate(today),
		"empty":   body == "",
		"body":    body,
	})
}

func (h *Handler) today(c *gin.Context) (time.Time, bool) {
	raw := c.Query("today")
	if raw == "" {
		return app.CalendarDate(h.now()), true
	}
	d, err := app.ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid today, expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return d, true
}

func bindPlanting(c *gin.Context) (app.NewPlanting, bool) {
	var req plantingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return app.NewPlanting{}, false
	}
	date, err := app.ParseDate(req.PlantingDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid planting_date, expected YYYY-MM-DD"})
		return app.NewPlanting{}, false
	}
	return app.NewPlanting{
		CropName:     req.CropName,
		PlantingDate: date,
		BatchID:      req.BatchID,
		Notes:        req.Notes,
	}, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, planting.ErrNotFound), errors.Is(err, user.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, app.ErrNotPlantingOwner):
		code = http.StatusForbidden
	case errors.Is(err, app.ErrInvalidPlanting), errors.Is(err, app.ErrPlanNotFound):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrChannelTargetMissing):
		code = http.StatusServiceUnavailable
	case errors.Is(err, app.ErrRepositoryUnavailable):
		code = http.StatusBadGateway
	}
	if code >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	c.JSON(code, errorResponse{Error: err.Error()})
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }
