// Package httpapi exposes a Reader over HTTP with gin.
//
// Responses share one envelope:
//
//	{"success": true, "message": "...", "data": ...}
//
// Routes that talk to the hardware are rate limited.
package httpapi

import (
	"context"
	"net/http"

	"github.com/arloliu/go-uhf/config"
	"github.com/arloliu/go-uhf/epc"
	"github.com/arloliu/go-uhf/logger"
	"github.com/arloliu/go-uhf/reader"
	"github.com/arloliu/go-uhf/uhf"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Device is the reader driven by the bridge. *reader.Reader implements it.
type Device interface {
	Layout() epc.Layout
	Metrics() *reader.Metrics
	Stats() reader.Stats
	LastError() error

	ReadOnce(ctx context.Context) (*reader.Discovery, error)
	WriteOnce(ctx context.Context, rec epc.Record) (*reader.WriteResult, error)

	Start() error
	StartWriting(tmpl epc.Record) error
	Stop(ctx context.Context) error
	Drain() []*reader.Discovery

	GetSelectParam(ctx context.Context) ([]byte, error)
	SetSelectParam(ctx context.Context, p uhf.SelectParam) error
	SetSelectMode(ctx context.Context, mode uhf.SelectMode) error
	WriteMemory(ctx context.Context, req uhf.WriteMemoryRequest) error
	LockMemory(ctx context.Context, req uhf.LockRequest) error
}

var _ Device = (*reader.Reader)(nil)

// Server is the HTTP bridge.
type Server struct {
	srv     *http.Server
	dev     Device
	logger  logger.Logger
	limiter *RateLimiter
	reg     *prometheus.Registry
}

// New creates the gin engine and HTTP server and registers every route.
func New(cfg config.HTTPConfig, mcfg config.MetricsConfig, dev Device, l logger.Logger) *Server {
	if l == nil {
		l = logger.GetLogger()
	}

	s := &Server{
		dev:    dev,
		logger: l,
		reg:    NewRegistry(dev),
	}
	if cfg.RateLimit.Enable {
		s.limiter = NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		s.reg.MustRegister(s.limiter.collectors()...)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(l), cors(cfg.AllowOrigin))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if mcfg.Enable {
		path := mcfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(Handler(s.reg)))
	}

	hw := r.Group("/")
	if s.limiter != nil {
		hw.Use(s.limiter.middleware())
	}
	hw.GET("/read", s.handleRead)
	hw.POST("/write", s.handleWrite)

	api := hw.Group("/api")
	api.POST("/inventory/start", s.handleInventoryStart)
	api.POST("/inventory/stop", s.handleInventoryStop)
	api.POST("/select/get", s.handleSelectGet)
	api.POST("/select/set", s.handleSelectSet)
	api.POST("/select/mode", s.handleSelectMode)
	api.POST("/memory/write", s.handleMemoryWrite)
	api.POST("/memory/lock", s.handleMemoryLock)

	// polled by the UI every second; it never touches the hardware
	r.GET("/api/inventory/data", s.handleInventoryData)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Registry returns the prometheus registry behind the metrics route.
func (s *Server) Registry() *prometheus.Registry { return s.reg }

// Start serves HTTP until Shutdown. It blocks.
func (s *Server) Start() error {
	s.logger.Info("http: listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
