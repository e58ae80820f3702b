package helpers

import (
	"github.com/labstack/echo/v4"
)

type ctxKey string

const (
	keyAdminSubject ctxKey = "admin_subject"
	keyCacheSource  ctxKey = "cache_source"
)

func SetAdminSubject(c echo.Context, sub string) { c.Set(string(keyAdminSubject), sub) }
func GetAdminSubject(c echo.Context) (string, bool) {
	v, ok := c.Get(string(keyAdminSubject)).(string)
	return v, ok
}

// SetCacheSource records where the proxied response came from, for metrics and logs.
func SetCacheSource(c echo.Context, source string) { c.Set(string(keyCacheSource), source) }
func GetCacheSource(c echo.Context) string {
	v, _ := c.Get(string(keyCacheSource)).(string)
	return v
}
