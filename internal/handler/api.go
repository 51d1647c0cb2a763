package handler

import (
	"context"
	"io"
	"net/http"

	"compliance-agent/internal/models"
	"compliance-agent/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// Auditor is the audit pipeline as seen by the HTTP layer
type Auditor interface {
	Audit(ctx context.Context, doc models.Document) (*models.AuditReport, error)
	Engine() string
	ClassifierLoaded() bool
}

// Handler handles HTTP requests
type Handler struct {
	auditor  Auditor
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewHandler creates a new API handler. Metrics are served from gatherer.
func NewHandler(auditor Auditor, gatherer prometheus.Gatherer, logger *zap.Logger) *Handler {
	return &Handler{
		auditor:  auditor,
		gatherer: gatherer,
		logger:   logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(RequestID())

	r.GET("/", h.Root)
	r.POST("/audit", h.Audit)

	api := r.Group("/api/v1")
	{
		api.POST("/audit", h.Audit)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
}

// Audit runs an uploaded policy document through the audit pipeline
func (h *Handler) Audit(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}

	h.logger.Info("Received policy",
		zap.String("request_id", c.GetString("request_id")),
		zap.String("filename", fileHeader.Filename),
		zap.Int("size", len(content)))

	report, err := h.auditor.Audit(c.Request.Context(), models.Document{
		Name:    fileHeader.Filename,
		Content: content,
	})
	if err != nil {
		h.logger.Error("Audit failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Root reports the engine in use
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "online",
		"engine": h.auditor.Engine(),
	})
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	classifier := "offline"
	if h.auditor.ClassifierLoaded() {
		classifier = "loaded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"service":    "compliance-agent",
		"classifier": classifier,
	})
}

// RequestID tags each request with an id, reusing the caller's X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(service.WithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

// CORS allows every origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
