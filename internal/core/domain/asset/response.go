package asset

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrVaryWildcard = errors.New("response carries Vary: *")

type ResponseType string

const (
	// ResponseTypeBasic is a response from the origin host.
	ResponseTypeBasic ResponseType = "basic"
	// ResponseTypeCORS is a response from any other host.
	ResponseTypeCORS ResponseType = "cors"
)

type Source string

const (
	SourceNetwork  Source = "network"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
	SourceBypass   Source = "bypass"
)

// Response is what the proxy hands back for an intercepted request.
type Response struct {
	URL    string
	Status int
	Header http.Header
	Body   io.ReadCloser
	Type   ResponseType
	Source Source
}

func (r *Response) VaryWildcard() bool {
	for _, v := range varyNames(r.Header) {
		if v == "*" {
			return true
		}
	}
	return false
}

// Entry is a stored response.
type Entry struct {
	URL      string            `json:"url" db:"url"`
	Status   int               `json:"status" db:"status"`
	Header   http.Header       `json:"header" db:"-"`
	Body     []byte            `json:"body" db:"body"`
	Type     ResponseType      `json:"type" db:"type"`
	Vary     map[string]string `json:"vary,omitempty" db:"-"`
	StoredAt time.Time         `json:"stored_at" db:"stored_at"`
}

// headers a stored entry never keeps
var unstoredHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade", "Set-Cookie", "Set-Cookie2",
}

// NewEntry snapshots a response for storage. body must be the full response body.
func NewEntry(req *Request, resp *Response, body []byte, now time.Time) (*Entry, error) {
	if resp.VaryWildcard() {
		return nil, ErrVaryWildcard
	}
	header := resp.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	for _, h := range unstoredHeaders {
		header.Del(h)
	}
	var vary map[string]string
	for _, name := range varyNames(resp.Header) {
		if vary == nil {
			vary = make(map[string]string)
		}
		canonical := http.CanonicalHeaderKey(name)
		vary[canonical] = req.Header.Get(canonical)
	}
	return &Entry{
		URL:      req.Key(),
		Status:   resp.Status,
		Header:   header,
		Body:     body,
		Type:     resp.Type,
		Vary:     vary,
		StoredAt: now.UTC(),
	}, nil
}

// Matches reports whether the request carries the same values for every varied header.
func (e *Entry) Matches(req *Request) bool {
	if req.Key() != e.URL {
		return false
	}
	for name, want := range e.Vary {
		if req.Header.Get(name) != want {
			return false
		}
	}
	return true
}

// Response returns a fresh response reading from a copy of the stored body.
func (e *Entry) Response(source Source) *Response {
	return &Response{
		URL:    e.URL,
		Status: e.Status,
		Header: e.Header.Clone(),
		Body:   io.NopCloser(bytes.NewReader(e.Body)),
		Type:   e.Type,
		Source: source,
	}
}

func varyNames(h http.Header) []string {
	var names []string
	for _, line := range h.Values("Vary") {
		for _, part := range strings.Split(line, ",") {
			if p := strings.TrimSpace(part); p != "" {
				names = append(names, p)
			}
		}
	}
	return names
}
