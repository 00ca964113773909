package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/tetherctl/internal/logging"
	"github.com/danmuck/tetherctl/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StatusFunc snapshots live relay state for the status route.
type StatusFunc func() any

// Debug serves the operational HTTP surface of one relay process:
// health, relay status, and Prometheus metrics.
type Debug struct {
	addr    string
	version string
	status  StatusFunc
	log     zerolog.Logger
	router  *gin.Engine
}

func NewDebug(addr string, version string, status StatusFunc) *Debug {
	log := logging.Component("debug-http")
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(observability.RequestLogger(log))
	router.Use(observability.RequestMetrics())

	d := &Debug{
		addr:    addr,
		version: version,
		status:  status,
		log:     log,
		router:  router,
	}
	d.registerRoutes()
	return d
}

// Router exposes the engine for route tests.
func (d *Debug) Router() *gin.Engine {
	return d.router
}

// Run serves until ctx cancels.
func (d *Debug) Run(ctx context.Context) error {
	srv := &http.Server{Addr: d.addr, Handler: d.router}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	d.log.Info().Msgf("server.Run debug http listening addr=%q", d.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
