// Package server exposes the ledger over an HTTP API: dashboard reads,
// mutations, price proxies, CSV interchange and prometheus metrics.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"folio"
)

// Server serves one ledger. The ledger itself is not safe for
// concurrent use, so every handler takes the mutex; this is a
// single-user dashboard backend, not a multi-tenant service.
type Server struct {
	R      *gin.Engine
	Logger *zap.Logger

	mu     sync.Mutex
	ledger *folio.Ledger
	feed   folio.PriceFeed
}

// NewServer wires the router, middleware and routes around a ledger.
func NewServer(ledger *folio.Ledger, feed folio.PriceFeed, logger *zap.Logger, corsOrigin string) *Server {
	g := gin.New()

	// Request logging
	g.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	})

	g.Use(gin.Recovery())
	g.Use(metricsMiddleware())

	// CORS
	g.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		c.Writer.Header().Set("Vary", "Origin")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		if corsOrigin == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && origin == corsOrigin {
			c.Writer.Header().Set("Access-Control-Allow-Origin", corsOrigin)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s := &Server{R: g, Logger: logger, ledger: ledger, feed: feed}

	g.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := g.Group("/api")
	api.GET("/holdings", s.getHoldings)
	api.GET("/valuation", s.getValuation)
	api.GET("/series", s.getSeries)
	api.GET("/transactions", s.getTransactions)
	api.POST("/buy", s.postBuy)
	api.POST("/sell", s.postSell)
	api.POST("/deposit", s.postDeposit)
	api.POST("/transactions/:id/reverse", s.postReverse)
	api.GET("/price/:instrument", s.getPrice)
	api.GET("/history/:instrument", s.getHistory)
	api.GET("/export", s.getExport)
	api.POST("/import", s.postImport)

	return s
}
