package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-eye-inspector/internal/config"
	apperrors "go-eye-inspector/internal/errors"
	"go-eye-inspector/internal/logger"
	"go-eye-inspector/internal/service"
	"go-eye-inspector/internal/strategy"
	"go-eye-inspector/pkg/models"
)

// imageField is the multipart form field carrying the photo
const imageField = "image"

// MetricsSource exposes counters for the metrics endpoint
type MetricsSource interface {
	GetMetrics() map[string]interface{}
}

func NewHandler(svc service.AnalysisService, metrics MetricsSource, cfg *config.Config) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		cors.New(corsConfig(cfg.CORSAllowedOrigins)),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	api := r.Group("/api/v1")
	api.POST("/analyze", analyzeImage(svc, cfg))
	api.GET("/runtime", runtimeStatus(svc))
	api.GET("/metrics", metricsSnapshot(metrics))

	return r
}

func analyzeImage(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		data, err := readImage(c)
		if err != nil {
			_ = c.Error(err)
			return
		}

		resp, err := svc.Analyze(ctx, data, c.Query("profile"))
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
				err = apperrors.NewTimeoutError("analysis timed out", err)
			}
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// readImage takes the photo from the multipart "image" field, or the raw
// body for any other content type.
func readImage(c *gin.Context) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fh, ferr := c.FormFile(imageField)
		if ferr != nil {
			if isTooLarge(ferr) {
				return nil, tooLarge(ferr)
			}
			return nil, apperrors.NewValidationError(fmt.Sprintf("multipart field %q is required", imageField), ferr)
		}
		f, ferr := fh.Open()
		if ferr != nil {
			return nil, apperrors.NewValidationError("unreadable upload", ferr)
		}
		defer f.Close()
		data, err = io.ReadAll(f)
	} else {
		data, err = io.ReadAll(c.Request.Body)
	}

	if err != nil {
		if isTooLarge(err) {
			return nil, tooLarge(err)
		}
		return nil, apperrors.NewValidationError("failed to read request body", err)
	}
	if len(data) == 0 {
		return nil, apperrors.NewInvalidImageError("empty image payload", nil)
	}
	return data, nil
}

func runtimeStatus(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Runtime())
	}
}

func metricsSnapshot(metrics MetricsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "available",
		"version":  "1.0.0",
		"profiles": strategy.Names(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Debug("Request handled")
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func tooLarge(err error) *apperrors.AppError {
	appErr := apperrors.NewValidationError("request body too large", err)
	appErr.StatusCode = http.StatusRequestEntityTooLarge
	return appErr
}

func respondError(c *gin.Context, code int, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Details != "" {
			message += ": " + appErr.Details
		}
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Warn("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}
