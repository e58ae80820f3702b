package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/taskflow-assetproxy/internal/application/services"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/httpserver/helpers"
)

// CacheSourceHeader tells the client which path answered the request.
const CacheSourceHeader = "X-Asset-Cache"

func (s *Server) proxy(c echo.Context) error {
	req, err := s.targets.BuildAssetRequest(c)
	if err != nil {
		if s.logger != nil {
			s.logger.WithField("host", c.Request().URL.Host).Warn("rejected forward-proxy request for foreign host")
		}
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}

	resp, err := s.registration.Fetch(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrNoResponse) {
			proxyUnavailable.Inc()
			if s.logger != nil {
				s.logger.WithError(err).WithField("url", req.Key()).Info("no response available")
			}
			return c.NoContent(http.StatusBadGateway)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	helpers.SetCacheSource(c, string(resp.Source))
	proxyResponses.WithLabelValues(string(resp.Source)).Inc()

	h := c.Response().Header()
	for k, vs := range resp.Header {
		h[k] = append([]string(nil), vs...)
	}
	h.Set(CacheSourceHeader, string(resp.Source))
	c.Response().WriteHeader(resp.Status)

	if resp.Body == nil || c.Request().Method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(c.Response(), resp.Body); err != nil && s.logger != nil {
		// headers are already out, nothing left to report to the client
		s.logger.WithError(err).WithFields(logrus.Fields{"url": req.Key(), "source": resp.Source}).Warn("response body copy interrupted")
	}
	return nil
}
