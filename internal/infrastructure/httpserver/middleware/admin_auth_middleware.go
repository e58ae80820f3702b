package middleware

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/httpserver/helpers"
)

// AdminAuthMiddleware guards the admin API with HS256 bearer tokens signed by a shared secret.
type AdminAuthMiddleware struct {
	secret []byte
	logger *logrus.Logger
}

func NewAdminAuthMiddleware(secret string, logger *logrus.Logger) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{secret: []byte(secret), logger: logger}
}

// Enabled reports whether a secret is configured; without one the admin API is not mounted.
func (m *AdminAuthMiddleware) Enabled() bool {
	return len(m.secret) > 0
}

// RequireAdmin validates the bearer token and stores its subject in the context.
func (m *AdminAuthMiddleware) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := helpers.GetJWTTokenFromContext(c)
			if err != nil {
				return err
			}

			claims := &jwt.RegisteredClaims{}
			_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				return m.secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
			if err != nil {
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"ip": c.RealIP(), "path": c.Request().URL.Path, "error": err.Error()}).Warn("admin token rejected")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid admin token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "admin token has no subject")
			}

			helpers.SetAdminSubject(c, claims.Subject)
			return next(c)
		}
	}
}
