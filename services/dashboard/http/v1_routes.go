package http

import "github.com/gin-gonic/gin"

// registerV1Routes sets up the JSON API under /api/v1.
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware())

	v1.GET("/summary", s.handleV1Summary)
	v1.GET("/stations", s.handleV1ListStations)
	v1.GET("/preview", s.handleV1Preview)

	v1.GET("/trend/monthly", s.handleV1MonthlyTrend)
	v1.GET("/heatmap", s.handleV1Heatmap)

	cache := v1.Group("/cache")
	if s.cfg.BearerToken != "" {
		cache.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}
	cache.POST("/clear", s.handleV1ClearCache)
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}
