// Package api exposes the screening service over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sentinelrisk/screening/internal/engine"
	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/watcher"
)

// Server wires the screening engine and watcher into a gin router.
type Server struct {
	router    *gin.Engine
	logger    *zap.Logger
	screener  *engine.Service
	watch     *watcher.Watcher
	validator *validator.Validate
}

// NewServer creates the API server with all routes registered.
func NewServer(logger *zap.Logger, screener *engine.Service, watch *watcher.Watcher, allowedOrigins []string) *Server {
	s := &Server{
		logger:    logger,
		screener:  screener,
		watch:     watch,
		validator: validator.New(),
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	s.router = router
	s.registerRoutes()
	return s
}

// Router returns the gin engine, used by tests and the HTTP server.
func (s *Server) Router() *gin.Engine { return s.router }

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	{
		v1.POST("/screen", s.screen)
		v1.POST("/screen/wallet", s.screenWallet)

		v1.GET("/alerts", s.listAlerts)
		v1.POST("/alerts/:id/ack", s.acknowledgeAlert)

		v1.POST("/watchlist/:key", s.addToWatchlist)
		v1.DELETE("/watchlist/:key", s.removeFromWatchlist)
		v1.GET("/watchlist/status", s.watchlistStatus)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"sources": s.screener.Sources(),
	})
}

type screenRequest struct {
	Subject string `json:"subject" validate:"required,min=2,max=200"`
	Kind    string `json:"kind" validate:"omitempty,oneof=individual organization vessel aircraft wallet unknown"`
	Country string `json:"country" validate:"omitempty,len=2"`
}

func (s *Server) screen(c *gin.Context) {
	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assessment, err := s.screener.Screen(c.Request.Context(), screening.Query{
		Subject: req.Subject,
		Kind:    screening.EntityKind(req.Kind),
		Country: req.Country,
	})
	if err != nil {
		s.respondScreenError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

type screenWalletRequest struct {
	Address string `json:"address" validate:"required,min=20,max=128"`
}

func (s *Server) screenWallet(c *gin.Context) {
	var req screenWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assessment, err := s.screener.ScreenWallet(c.Request.Context(), req.Address)
	if err != nil {
		s.respondScreenError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) respondScreenError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrEmptySubject) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("Screening failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "screening failed"})
}

func (s *Server) listAlerts(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	alerts := s.watch.Alerts().List(watcher.AlertFilter{
		Severity: screening.Severity(c.Query("severity")),
		Subject:  c.Query("subject"),
		Offset:   offset,
		Limit:    limit,
	})
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
		"offset": offset,
		"limit":  limit,
	})
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	id := c.Param("id")
	if !s.watch.Alerts().Acknowledge(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": id})
}

func (s *Server) addToWatchlist(c *gin.Context) {
	key := c.Param("key")
	if err := s.watch.Watchlist().Add(c.Request.Context(), key); err != nil {
		s.logger.Error("Watchlist add failed", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "watchlist update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": key})
}

func (s *Server) removeFromWatchlist(c *gin.Context) {
	key := c.Param("key")
	if err := s.watch.Watchlist().Remove(c.Request.Context(), key); err != nil {
		s.logger.Error("Watchlist remove failed", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "watchlist update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": key})
}

func (s *Server) watchlistStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	c.JSON(http.StatusOK, s.watch.Status(ctx))
}
