// Package dashboard serves the engine's operational HTTP surface: health,
// delivery metrics, the live roster, and a manual roster-sync trigger.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/trainorder/internal/delivery"
	"github.com/zulandar/trainorder/internal/heartbeat"
	"github.com/zulandar/trainorder/internal/retry"
	"github.com/zulandar/trainorder/internal/roster"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Loop      *delivery.Loop
	Registry  *roster.Registry
	Retries   *retry.Tracker
	Scheduler *heartbeat.Scheduler
	Syncer    *roster.Syncer
	Port      int
	Out       io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Loop == nil {
		return fmt.Errorf("dashboard: delivery loop is required")
	}
	if opts.Registry == nil {
		return fmt.Errorf("dashboard: registry is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8484
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", func(c *gin.Context) {
		payload := gin.H{
			"delivery": opts.Loop.Counters.Snapshot(),
			"agents":   opts.Registry.Len(),
		}
		if opts.Retries != nil {
			payload["retry_streaks"] = opts.Retries.Len()
		}
		if opts.Scheduler != nil {
			payload["heartbeat_timers"] = opts.Scheduler.TimerCount()
		}
		c.JSON(http.StatusOK, payload)
	})

	router.GET("/agents", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"agents": opts.Registry.List()})
	})

	router.POST("/admin/sync", func(c *gin.Context) {
		if opts.Syncer == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "roster sync not running"})
			return
		}
		if err := opts.Syncer.SyncOnce(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"agents": opts.Registry.Len()})
	})
}
