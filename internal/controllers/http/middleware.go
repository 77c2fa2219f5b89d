package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/metrics"

	"github.com/gin-gonic/gin"
)

const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
	principalKey   = "principal"
)

// Identity resolves the caller from the headers set by the upstream auth
// gateway.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.GetHeader(headerUserID), 10, 64)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		role := domain.RoleUser
		if strings.EqualFold(c.GetHeader(headerUserRole), string(domain.RoleAdmin)) {
			role = domain.RoleAdmin
		}
		c.Set(principalKey, domain.Principal{UserID: id, Role: role})
		c.Next()
	}
}

func principal(c *gin.Context) domain.Principal {
	p, _ := c.Get(principalKey)
	out, _ := p.(domain.Principal)
	return out
}

func RequestMetrics(m *metrics.CheckoutMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}
