package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/audit_backend/config"
	"github.com/mmdatafocus/audit_backend/controls"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/models/reports"
	"github.com/mmdatafocus/audit_backend/risk"
	"github.com/mmdatafocus/audit_backend/rulebook"
	"github.com/mmdatafocus/audit_backend/sampling"
	"github.com/mmdatafocus/audit_backend/utils"
	"github.com/mmdatafocus/audit_backend/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("audit_backend")

// api holds the engine components shared by all handlers.
type api struct {
	analyzer *workflow.Analyzer
	service  *workflow.Service
	sampler  *sampling.Sampler
	loc      *time.Location
	logger   *logrus.Logger
	upload   func(ctx context.Context, report *models.GeneratedReport, data []byte) (string, error)
}

func newAPI(rb *rulebook.Rulebook, logger *logrus.Logger) *api {
	loc := config.EngineLocation()

	opts := []workflow.AnalyzerOption{workflow.WithLogger(logger)}
	if config.AIAnalysisEnabled() {
		ai, err := workflow.NewHTTPAnomalyAnalyzer()
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "ai"}).Warn("AI analysis enabled but not configured: " + err.Error())
		} else {
			opts = append(opts, workflow.WithAnomalyAnalyzer(ai, workflow.DefaultAnalysisType))
		}
	}
	analyzer := workflow.NewAnalyzer(
		controls.NewSuite(rb, controls.WithLocation(loc)),
		risk.NewEngine(rb, risk.WithLocation(loc)),
		opts...,
	)

	return &api{
		analyzer: analyzer,
		// nil db: the sources pick up the shared connection once it is ready
		service: workflow.NewService(analyzer,
			models.NewGormTransactionSource(nil),
			models.NewGormClassificationSource(nil),
			workflow.WithServiceLocation(loc),
		),
		sampler: sampling.NewSampler(rb),
		loc:     loc,
		logger:  logger,
		upload:  reports.UploadExport,
	}
}

// correlationMiddleware attaches x-correlation-id (or a fresh one) to the request context.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Header("x-correlation-id", cid)
		c.Next()
	}
}

// requireReady gates endpoints that need the database.
func requireReady(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ready() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service not ready"})
			return
		}
		c.Next()
	}
}

func databaseReady() bool {
	return config.GetDB() != nil
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	// production requires an explicit CORS_ALLOWED_ORIGINS allowlist
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			cfg.AllowOrigins = []string{}
		} else {
			cfg.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id", exportObjectHeader, rejectedRowsHeader)
	return cfg
}

func newRouter(a *api, ready func() bool) *gin.Engine {
	r := gin.New()
	r.Use(correlationMiddleware())
	r.Use(cors.New(corsConfig()))
	r.Use(customErrorLogger(a.logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	v1 := r.Group("/api")
	{
		v1.POST("/analysis", a.analyzeHandler())
		v1.POST("/sampling", a.samplingHandler())
		v1.POST("/reports", a.reportHandler())
		v1.POST("/reports/export", a.exportHandler())
		v1.GET("/reports/templates", a.templatesHandler())
		v1.POST("/clients/:clientId/analysis", requireReady(ready), a.clientAnalysisHandler())
		v1.DELETE("/clients/:clientId/analysis", a.invalidateAnalysisHandler())
	}
	r.POST("/pubsub", requireReady(ready), a.analysisPubSubHandler())

	r.NoRoute(customNotFoundHandler)
	return r
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.WithFields(logrus.Fields{
				"path":   c.FullPath(),
				"status": c.Writer.Status(),
			}).Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	rb, err := rulebook.LoadFile(config.RulebookPath())
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "rulebook", "path": config.RulebookPath()}).Fatal(err.Error())
	}

	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(newAPI(rb, logger), databaseReady)

	// listen before connecting dependencies; client endpoints answer 503 until ready
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	go func() {
		config.ConnectRedisWithRetry(sigCtx)
	}()
	config.ConnectDatabaseWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info":     "Connection Established",
		"rulebook": rb.Version,
	}).Info("audit engine listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
