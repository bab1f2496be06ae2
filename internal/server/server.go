// Package server wires the HTTP surface: routing, CORS, request metrics.
package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"swap-custodian/internal/observability"
)

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler, metricsPath string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware(), metricsMiddleware())

	r.POST("/buy", h.Buy)
	r.POST("/sell", h.Sell)
	r.POST("/approve", h.Approve)
	r.POST("/getAddress", h.GetAddress)
	r.POST("/getTransaction", h.GetTransaction)
	r.POST("/fetchAccessToken", h.FetchAccessToken)
	r.POST("/refreshAccessToken", h.RefreshAccessToken)
	r.POST("/testAccessToken", h.TestAccessToken)

	if metricsPath != "" {
		r.GET(metricsPath, gin.WrapH(observability.Handler()))
	}

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+operatorKeyHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(c.Writer.Status()), time.Since(started).Seconds())
	}
}
