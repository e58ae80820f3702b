package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/httpserver/helpers"
)

func (s *Server) getStatus(c echo.Context) error {
	st, err := s.registration.Status(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

type cacheInfo struct {
	Name    string `json:"name"`
	Prefix  string `json:"prefix,omitempty"`
	Version string `json:"version,omitempty"`
	Current bool   `json:"current"`
}

func (s *Server) listCaches(c echo.Context) error {
	ctx := c.Request().Context()
	names, err := s.registration.Storage().Keys(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	current := ""
	if st, err := s.registration.Status(ctx); err == nil && st.Active != nil {
		current = st.Active.CacheName
	}

	caches := make([]cacheInfo, 0, len(names))
	for _, name := range names {
		info := cacheInfo{Name: name, Current: name == current}
		// foreign stores may not follow the prefix-version scheme
		if parsed, err := asset.ParseCacheName(name); err == nil {
			info.Prefix = parsed.Prefix
			info.Version = parsed.Version
		}
		caches = append(caches, info)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"caches": caches, "total": len(caches)})
}

func (s *Server) listCacheEntries(c echo.Context) error {
	ctx := c.Request().Context()
	name := c.Param("name")

	limit := 100
	offset := 0
	if l := c.QueryParam("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if o := c.QueryParam("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	storage := s.registration.Storage()
	ok, err := storage.Has(ctx, name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "cache not found")
	}
	store, err := storage.Open(ctx, name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	urls, err := store.Keys(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	total := len(urls)
	start := min(offset, total)
	end := min(start+limit, total)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cache":   name,
		"entries": urls[start:end],
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) deleteCache(c echo.Context) error {
	name := c.Param("name")
	deleted, err := s.registration.Storage().Delete(c.Request().Context(), name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "cache not found")
	}
	if s.logger != nil {
		sub, _ := helpers.GetAdminSubject(c)
		s.logger.WithFields(logrus.Fields{"cache": name, "admin": sub}).Info("cache deleted via admin API")
	}
	return c.NoContent(http.StatusNoContent)
}

// updateWorker installs and activates a fresh worker; the current one serves until it is replaced.
func (s *Server) updateWorker(c echo.Context) error {
	ctx := c.Request().Context()
	if s.logger != nil {
		sub, _ := helpers.GetAdminSubject(c)
		s.logger.WithField("admin", sub).Info("worker update requested")
	}
	if err := s.registration.Update(ctx); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	st, err := s.registration.Status(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}
