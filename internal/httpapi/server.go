
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/snapshot"
)

// FailureMessage is the error text clients already show to users.
const FailureMessage = "Döviz kurları alınamadı"

// Board is the snapshot service as seen by the HTTP layer.
type Board interface {
	Get(ctx context.Context) (*snapshot.Snapshot, error)
	Refresh(ctx context.Context) (*snapshot.Snapshot, error)
	Latest() (*snapshot.Snapshot, bool)
}

type Options struct {
	Addr         string
	StaticDir    string
	AllowOrigins []string
	Debug        bool
}

type Server struct {
	board  Board
	opts   Options
	log    *logger.Logger
	engine *gin.Engine
	hub    *Hub
	srv    *http.Server
}

func NewServer(board Board, opts Options, log *logger.Logger) *Server {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		board:  board,
		opts:   opts,
		log:    log,
		engine: gin.New(),
		hub:    NewHub(log.Named("ws")),
	}
	s.engine.Use(gin.Recovery(), s.cors())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/api/currencies", s.getCurrencies)
	s.engine.POST("/api/refresh", s.postRefresh)
	s.engine.GET("/api/health", s.getHealth)

	// WebSocket endpoint
	s.engine.GET("/ws", s.hub.Handle)

	if s.opts.StaticDir != "" {
		if st, err := os.Stat(s.opts.StaticDir); err == nil && st.IsDir() {
			s.engine.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.opts.StaticDir))))
		} else {
			s.log.Warn("static dir %q not served: %v", s.opts.StaticDir, err)
		}
	}
}

func (s *Server) cors() gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, o := range s.opts.AllowOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case len(allowed) == 0:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Hub returns the websocket hub; publish snapshots to it.
func (s *Server) Hub() *Hub { return s.hub }

// Start runs the hub and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	s.srv = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("listening on %s", s.opts.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) getCurrencies(c *gin.Context) {
	snap, err := s.board.Get(c.Request.Context())
	if err != nil {
		s.log.Error("currencies: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": FailureMessage})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"lastUpdate": snap.LastUpdate,
		"currencies": snap,
	})
}

func (s *Server) postRefresh(c *gin.Context) {
	snap, err := s.board.Refresh(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "lastUpdate": snap.LastUpdate, "currencies": snap})
	case snap != nil:
		s.log.Warn("refresh: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success":    false,
			"error":      FailureMessage,
			"lastUpdate": snap.LastUpdate,
			"currencies": snap,
		})
	default:
		s.log.Error("refresh: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": FailureMessage})
	}
}

func (s *Server) getHealth(c *gin.Context) {
	resp := gin.H{
		"status":      "ok",
		"connections": s.hub.Connections(),
	}
	if snap, ok := s.board.Latest(); ok && snap != nil {
		resp["lastUpdate"] = snap.LastUpdate
		resp["cycleId"] = snap.CycleID
		resp["sources"] = snap.Available()
	} else {
		resp["status"] = "starting"
	}
	c.JSON(http.StatusOK, resp)
}
