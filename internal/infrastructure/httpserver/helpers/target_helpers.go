package helpers

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
)

// ErrForeignTarget rejects absolute-URI requests for hosts the proxy does not front.
var ErrForeignTarget = errors.New("target host is not served by this proxy")

// TargetPolicy decides where an intercepted request goes. Relative requests resolve against
// the origin. Absolute URIs from forward-proxy clients keep their target only when the host is
// the origin's or one named by an absolute manifest entry.
type TargetPolicy struct {
	origin *url.URL
	hosts  map[string]struct{}
}

func NewTargetPolicy(origin *url.URL, manifest []string) (*TargetPolicy, error) {
	p := &TargetPolicy{origin: origin, hosts: map[string]struct{}{}}
	if origin != nil {
		p.hosts[strings.ToLower(origin.Host)] = struct{}{}
	}
	for _, raw := range manifest {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		if u.IsAbs() && u.Host != "" {
			p.hosts[strings.ToLower(u.Host)] = struct{}{}
		}
	}
	return p, nil
}

func (p *TargetPolicy) Allows(host string) bool {
	_, ok := p.hosts[strings.ToLower(host)]
	return ok
}

// TargetURL resolves the target of the intercepted request.
func (p *TargetPolicy) TargetURL(c echo.Context) (*url.URL, error) {
	r := c.Request()
	if r.URL.IsAbs() {
		if !p.Allows(r.URL.Host) {
			return nil, ErrForeignTarget
		}
		u := *r.URL
		return &u, nil
	}
	ref := &url.URL{Path: r.URL.Path, RawPath: r.URL.RawPath, RawQuery: r.URL.RawQuery}
	return p.origin.ResolveReference(ref), nil
}

// BuildAssetRequest turns the incoming request into the request sent on through the proxy.
func (p *TargetPolicy) BuildAssetRequest(c echo.Context) (*asset.Request, error) {
	target, err := p.TargetURL(c)
	if err != nil {
		return nil, err
	}
	r := c.Request()
	header := r.Header.Clone()
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if prior := header.Get("X-Forwarded-For"); prior != "" {
		header.Set("X-Forwarded-For", prior+", "+peer)
	} else {
		header.Set("X-Forwarded-For", peer)
	}
	header.Set("X-Forwarded-Host", r.Host)
	header.Set("X-Forwarded-Proto", c.Scheme())
	return asset.NewRequest(r.Method, target, header, r.Body), nil
}
