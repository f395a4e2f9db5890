// Package primaryserver queues positions for analysis and collects the
// results workers send back.
package primaryserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/jacokyle01/analysis-session/config"
	"github.com/jacokyle01/analysis-session/models"
)

// Server manages the job queue and distributes work
type Server struct {
	cfg     config.Server
	jobs    chan models.Job
	store   Store
	metrics *metrics
	log     *slog.Logger
	router  *gin.Engine

	enqueueMu sync.Mutex // serializes producers

	mu       sync.RWMutex
	jobMap   map[string]models.Job
	batches  map[string]*models.Batch
	jobBatch map[string]string
}

// NewServer creates a new analysis server
func NewServer(cfg config.Server, store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Server{
		cfg:      cfg,
		jobs:     make(chan models.Job, cfg.QueueSize),
		store:    store,
		log:      logger.With("component", "server"),
		jobMap:   make(map[string]models.Job),
		batches:  make(map[string]*models.Batch),
		jobBatch: make(map[string]string),
	}
	s.metrics = newMetrics(func() float64 { return float64(len(s.jobs)) })
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/job", s.handleGetJob)
	r.POST("/result", s.handleSubmitResult)
	r.POST("/analyze", s.handleAnalyze)
	r.GET("/get_result", s.handleGetResult)
	r.GET("/queue", s.handleViewQueue)
	r.POST("/requestForAnalysis", s.requestForAnalysis)
	r.GET("/batch", s.handleGetBatch)
	r.GET("/metrics", gin.WrapH(s.metrics.handler()))
	return r
}

// StartServer serves HTTP on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) StartServer(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is StartServer on an existing listener, which it closes.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("starting server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the result store.
func (s *Server) Close() error {
	return s.store.Close()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
