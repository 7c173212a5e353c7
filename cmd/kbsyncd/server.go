package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/helpcove/kbsync/internal/config"
	"github.com/helpcove/kbsync/internal/http/handler"
	mw "github.com/helpcove/kbsync/internal/http/middleware"
	"github.com/helpcove/kbsync/internal/redis"
	"github.com/helpcove/kbsync/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// buildOpsServer assembles the Gin router and the HTTP server around it.
func buildOpsServer(cfg *config.Config, log *zap.Logger, rdb *redis.Client, ticker *service.Ticker, statussvc *service.StatusService) *http.Server {
	if !cfg.Ops.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := gin.New()

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)
		r.Use(mw.RequestID()) // Attach request ID for tracing; early in the chain so it's available everywhere

		if cfg.Ops.DevMode { // Enable CORS for a local dashboard dev server
			r.Use(cors.New(cors.Config{
				AllowOrigins:  []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:3000"},
				AllowMethods:  []string{"GET", "POST", "OPTIONS"},
				AllowHeaders:  []string{"X-Request-ID", "Content-Type"},
				ExposeHeaders: []string{"X-Request-ID", "X-Cache", "X-Status-Generated-At"},
				MaxAge:        12 * time.Hour,
			}))
		} else { // Behind a reverse proxy + TLS
			r.SetTrustedProxies([]string{"127.0.0.1"})
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https", // Fix scheme for secure cookies
				},
			}))
		}

		r.Use(mw.AccessLog(log.Named("http"))) // Observability (logger, tracing)

		// /status fans out to Redis and the artifact store; shed excess pollers.
		r.Use(mw.LimitConcurrentRequests(16))

		r.Use(func(c *gin.Context) {
			// The ops surface takes no request bodies; cap them hard.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
			c.Next()
		})
	}

	// Register route handlers
	{
		r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

		opshndlr := handler.NewOpsHandler(log, rdb, ticker, statussvc)
		r.GET("/healthz", opshndlr.Healthz)
		r.GET("/status", opshndlr.Status)
		r.POST("/sync", opshndlr.TriggerSync)

		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return &http.Server{
		Addr:              cfg.Ops.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,  // kills header-drip Slowloris
		ReadTimeout:       10 * time.Second, // full request read (incl. body)
		WriteTimeout:      15 * time.Second, // avoid forever-hangs on writes
		IdleTimeout:       60 * time.Second, // keep-alive cap
		MaxHeaderBytes:    1 << 20,          // 1MB cap
	}
}
