package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// IPWhitelist restricts a route group to the given client addresses.
// Entries may be single IPs ("10.0.0.5") or CIDR ranges ("10.0.0.0/24").
// An empty list allows everyone; the admin surface then relies on its key
// alone.
func IPWhitelist(entries []string) gin.HandlerFunc {
	exact := make(map[string]struct{}, len(entries))
	var nets []*net.IPNet
	for _, e := range entries {
		if _, n, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, n)
			continue
		}
		exact[e] = struct{}{}
	}

	return func(c *gin.Context) {
		if len(exact) == 0 && len(nets) == 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if _, ok := exact[ip]; ok {
			c.Next()
			return
		}
		if parsed := net.ParseIP(ip); parsed != nil {
			for _, n := range nets {
				if n.Contains(parsed) {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}
