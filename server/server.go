package server

import (
	"net/http"

	"domain-expiry/report"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New serves the finished report of a run.
func New(rep report.Report) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(rep.HTML))
	})
	r.GET("/api/domains", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"subject": rep.Subject,
			"warning": rep.Warning,
			"domains": rep.Rows,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
