package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck pings one backing dependency.
type HealthCheck func(ctx context.Context) error

type HealthController struct {
	service string
	checks  map[string]HealthCheck
}

func NewHealthController(service string, checks map[string]HealthCheck) *HealthController {
	return &HealthController{service: service, checks: checks}
}

// Health handles GET /health
func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failing := gin.H{}
	for _, name := range names {
		if err := hc.checks[name](ctx); err != nil {
			failing[name] = err.Error()
		}
	}

	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DEGRADED", "service": hc.service, "failing": failing})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK", "service": hc.service})
}
