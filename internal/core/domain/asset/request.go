package asset

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request is one intercepted outgoing fetch. URL is always absolute.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   io.Reader
}

func NewRequest(method string, target *url.URL, header http.Header, body io.Reader) *Request {
	if method == "" {
		method = http.MethodGet
	}
	if header == nil {
		header = make(http.Header)
	}
	return &Request{Method: method, URL: target, Header: header, Body: body}
}

// Key is the store key of the request: the absolute URL without fragment.
func (r *Request) Key() string {
	return NormalizeURL(r.URL)
}

func (r *Request) AcceptsHTML() bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (r *Request) IsAPI(marker string) bool {
	return marker != "" && strings.Contains(r.URL.String(), marker)
}

func (r *Request) Cacheable() bool {
	return r.Method == http.MethodGet
}

// NormalizeURL drops the fragment, the only part of a URL the store ignores.
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// ResolveManifest resolves each manifest entry against origin and returns normalized keys in order.
func ResolveManifest(origin *url.URL, entries []string) ([]string, error) {
	out := make([]string, 0, len(entries))
	for _, raw := range entries {
		ref, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, NormalizeURL(origin.ResolveReference(ref)))
	}
	return out, nil
}
