package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/KamdynS/property-crew/crew"
	obs "github.com/KamdynS/property-crew/observability"
	"github.com/KamdynS/property-crew/observability/prom"
	"github.com/KamdynS/property-crew/property"
)

// notFoundBody is written verbatim; clients match on it.
const notFoundBody = `{"error": "Property not found for the provided address"}`

// PropertyService looks up one address.
type PropertyService interface {
	Lookup(ctx context.Context, address string) (*crew.Output, error)
}

// Server exposes the property lookup over HTTP
type Server struct {
	service PropertyService
	config  Config
	engine  *gin.Engine
	server  *http.Server
	logger  *slog.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration // 0 = no limit; lookups can run for minutes
	// Mode is the gin mode: debug, release or test.
	Mode string
	// Metrics, when set, is served on /metrics.
	Metrics *prom.Exporter
	Logger  *slog.Logger
}

// NewServer creates a new HTTP server for a property service
func NewServer(service PropertyService, config Config) *Server {
	if config.Addr == "" {
		config.Addr = ":5000"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	gin.SetMode(config.Mode)

	s := &Server{
		service: service,
		config:  config,
		engine:  gin.New(),
		logger:  config.Logger,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, obs.HeaderRequestID)
	corsConfig.ExposeHeaders = []string{obs.HeaderRequestID}

	s.engine.Use(
		gin.Recovery(),
		requestID(),
		s.accessLog(),
		cors.New(corsConfig),
		instrument(),
	)

	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/api/property", s.propertyHandler)
	if s.config.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(prom.Handler(s.config.Metrics)))
	}
}

type propertyQuery struct {
	Address string `form:"address" binding:"required"`
}

// propertyHandler runs a crew for the address query parameter.
func (s *Server) propertyHandler(c *gin.Context) {
	var q propertyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		notFound(c)
		return
	}

	out, err := s.service.Lookup(c.Request.Context(), q.Address)
	if err != nil {
		if errors.Is(err, property.ErrEmptyAddress) {
			notFound(c)
			return
		}
		s.logger.Error("property lookup failed", "address", q.Address, "error", err,
			"request_id", c.GetString(requestIDKey))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func notFound(c *gin.Context) {
	c.Data(http.StatusNotFound, "application/json", []byte(notFoundBody))
	c.Abort()
}

// healthHandler provides a health check endpoint
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

const requestIDKey = "request_id"

// requestID propagates or assigns X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := obs.ExtractHTTPContext(c.Request.Context(), c.Request)
		c.Request = c.Request.WithContext(ctx)
		obs.InjectHTTPHeaders(c.Writer, ctx)
		id, _ := obs.RequestIDFromContext(ctx)
		c.Set(requestIDKey, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// instrument records a span and request metrics per route.
func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := obs.TracerImpl.StartSpan(c.Request.Context(), "http.request")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		labels := map[string]string{
			"route":  route,
			"method": c.Request.Method,
			"status": strconv.Itoa(status),
		}
		obs.MetricsImpl.IncrementRequests(labels)
		obs.MetricsImpl.RecordLatency(time.Since(start), map[string]string{"route": route})
		span.SetAttribute(obs.AttrHTTPMethod, c.Request.Method)
		span.SetAttribute(obs.AttrHTTPRoute, route)
		span.SetAttribute(obs.AttrHTTPStatus, status)
		span.SetAttribute(obs.AttrRequestID, c.GetString(requestIDKey))
		if status >= http.StatusInternalServerError {
			obs.MetricsImpl.RecordError("http_5xx", map[string]string{"route": route})
			span.SetStatus(obs.StatusCodeError, http.StatusText(status))
			return
		}
		span.SetStatus(obs.StatusCodeOk, "")
	}
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "addr", s.config.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
