package network

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
)

// hop-by-hop headers, never forwarded in either direction
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// RemoveHopHeaders deletes hop-by-hop headers, including any named by Connection.
func RemoveHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

type Config struct {
	Origin  *url.URL
	Timeout time.Duration
}

// Fetcher implements ports.Network with an http.Client. Redirects are returned, not followed.
type Fetcher struct {
	client *http.Client
	origin *url.URL
	logger *logrus.Logger
}

func NewFetcher(cfg *Config, logger *logrus.Logger) *Fetcher {
	timeout := 15 * time.Second
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return NewFetcherWithClient(cfg.Origin, client, logger)
}

func NewFetcherWithClient(origin *url.URL, client *http.Client, logger *logrus.Logger) *Fetcher {
	return &Fetcher{client: client, origin: origin, logger: logger}
}

func (f *Fetcher) Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	out, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	out.Header = req.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	RemoveHopHeaders(out.Header)

	resp, err := f.client.Do(out)
	if err != nil {
		if f.logger != nil {
			f.logger.WithFields(logrus.Fields{"url": req.Key(), "method": req.Method}).WithError(err).Debug("network: fetch failed")
		}
		return nil, err
	}
	header := resp.Header.Clone()
	RemoveHopHeaders(header)

	return &asset.Response{
		URL:    req.Key(),
		Status: resp.StatusCode,
		Header: header,
		Body:   resp.Body,
		Type:   f.classify(req.URL),
		Source: asset.SourceNetwork,
	}, nil
}

func (f *Fetcher) classify(u *url.URL) asset.ResponseType {
	if f.origin != nil && sameOrigin(f.origin, u) {
		return asset.ResponseTypeBasic
	}
	return asset.ResponseTypeCORS
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(hostPort(a), hostPort(b))
}

func hostPort(u *url.URL) string {
	host, port := u.Hostname(), u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port)
}
