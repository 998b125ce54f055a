package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rcrx/internal/receiver"
)

// Deps are the collaborators the status API reads from. Any may be nil.
type Deps struct {
	Status     func() receiver.Snapshot
	Metrics    http.Handler
	Logs       *LogBuffer
	InstanceID string
}

type Server struct {
	srv *http.Server
}

func New(addr string, deps Deps) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           Handler(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}}
}

func Handler(deps Deps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if deps.Status == nil || !deps.Status().Healthy() {
			c.String(http.StatusServiceUnavailable, "not-ready")
			return
		}
		c.String(http.StatusOK, "ready")
	})
	r.GET("/api/status", func(c *gin.Context) {
		if deps.Status == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "receiver not configured"})
			return
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, deps.Status())
	})
	r.GET("/api/channels/:index", func(c *gin.Context) {
		if deps.Status == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "receiver not configured"})
			return
		}
		var p struct {
			Index int `uri:"index" binding:"min=0"`
		}
		if err := c.ShouldBindUri(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a non-negative integer"})
			return
		}
		snap := deps.Status()
		if p.Index >= len(snap.Channels) {
			c.JSON(http.StatusNotFound, gin.H{"error": "channel index out of range", "channels": len(snap.Channels)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"index": p.Index, "us": snap.Channels[p.Index], "seq": snap.Seq, "failsafe": snap.Failsafe})
	})
	r.GET("/api/about", aboutHandler(deps.InstanceID))
	if deps.Logs != nil {
		r.GET("/api/logs", deps.Logs.handle)
	}
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	return r
}

// Serve runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
