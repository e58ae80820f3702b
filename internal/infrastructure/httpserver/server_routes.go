package httpserver

import "github.com/labstack/echo/v4"

func (s *Server) setupRoutes() {
	control := s.echo.Group("/_proxy")
	control.GET("/health", s.healthCheck)
	control.GET("/metrics", s.metricsEndpoint)

	if s.middleware.Admin.Enabled() {
		admin := control.Group("/admin", s.middleware.Admin.RequireAdmin())
		admin.GET("/status", s.getStatus)
		admin.GET("/caches", s.listCaches)
		admin.GET("/caches/:name/entries", s.listCacheEntries)
		admin.DELETE("/caches/:name", s.deleteCache)
		admin.POST("/update", s.updateWorker)
	}

	// the control namespace is never proxied
	control.Any("/*", func(c echo.Context) error { return echo.ErrNotFound })

	// everything else is intercepted
	s.echo.Any("/*", s.proxy)
}
