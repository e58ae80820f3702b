package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/taskflow-assetproxy/internal/application/services"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/memory"
	tmocks "github.com/avatarctic/taskflow-assetproxy/test/mocks"
)

const testOrigin = "https://app.example.com"

// fakeOrigin serves a fixed set of bodies and can be switched offline.
type fakeOrigin struct {
	mu      sync.Mutex
	offline bool
	pages   map[string]string
	headers map[string]http.Header
}

func newFakeOrigin(pages map[string]string) *fakeOrigin {
	return &fakeOrigin{pages: pages, headers: map[string]http.Header{}}
}

func (o *fakeOrigin) setOffline(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.offline = v
}

func (o *fakeOrigin) network() *tmocks.NetworkMock {
	return &tmocks.NetworkMock{FetchFn: func(ctx context.Context, req *asset.Request) (*asset.Response, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.offline {
			return nil, errors.New("dial tcp: network is unreachable")
		}
		key := req.Key()
		body, ok := o.pages[key]
		status := http.StatusOK
		if !ok {
			status = http.StatusNotFound
			body = "not found"
		}
		h := http.Header{"Content-Type": []string{"text/html; charset=utf-8"}}
		for k, v := range o.headers[key] {
			h[k] = v
		}
		typ := asset.ResponseTypeBasic
		if req.URL.Host != "app.example.com" {
			typ = asset.ResponseTypeCORS
		}
		return &asset.Response{URL: key, Status: status, Header: h, Body: io.NopCloser(strings.NewReader(body)), Type: typ}, nil
	}}
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func getRequest(t *testing.T, raw string, accept string) *asset.Request {
	t.Helper()
	h := http.Header{}
	if accept != "" {
		h.Set("Accept", accept)
	}
	return asset.NewRequest(http.MethodGet, mustURL(t, raw), h, nil)
}

func readBody(t *testing.T, resp *asset.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func proxyConfig(t *testing.T, strategy asset.Strategy) *impl.CacheProxyConfig {
	t.Helper()
	name, err := asset.NewCacheName("ritualos", "v1")
	require.NoError(t, err)
	return &impl.CacheProxyConfig{
		CacheName: name,
		Origin:    mustURL(t, testOrigin),
		Manifest:  []string{"/taskflowai/", "/taskflowai/login", "/taskflowai/dashboard", "/taskflowai/static/css/custom.css"},
		Fallbacks: []string{"/taskflowai/dashboard", "/taskflowai/login"},
		Strategy:  strategy,
	}
}

func shellPages() map[string]string {
	return map[string]string{
		testOrigin + "/taskflowai/":                      "<html>home</html>",
		testOrigin + "/taskflowai/login":                 "<html>login</html>",
		testOrigin + "/taskflowai/dashboard":             "<html>dashboard</html>",
		testOrigin + "/taskflowai/static/css/custom.css": "body{}",
		testOrigin + "/taskflowai/tasks":                 "<html>tasks</html>",
		testOrigin + "/taskflowai/api/tasks":             `{"tasks":[]}`,
		testOrigin + "/taskflowai/static/js/app.js":      "console.log(1)",
	}
}

// activeWorker installs and activates a worker against a fresh memory store.
func activeWorker(t *testing.T, strategy asset.Strategy, origin *fakeOrigin) (*impl.CacheProxyService, *memory.CacheStorage, *tmocks.NetworkMock) {
	t.Helper()
	storage := memory.NewCacheStorage()
	network := origin.network()
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, strategy), storage, network, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Install(context.Background()))
	require.NoError(t, svc.Activate(context.Background()))
	return svc, storage, network
}

func currentStore(t *testing.T, storage ports.CacheStorage) ports.CacheStore {
	t.Helper()
	store, err := storage.Open(context.Background(), "ritualos-v1")
	require.NoError(t, err)
	return store
}

func TestNewCacheProxyService_Validation(t *testing.T) {
	storage := memory.NewCacheStorage()
	network := &tmocks.NetworkMock{}

	_, err := impl.NewCacheProxyService("w", nil, storage, network, nil)
	require.Error(t, err)

	cfg := proxyConfig(t, asset.StrategyNetworkFirst)
	_, err = impl.NewCacheProxyService("w", cfg, nil, network, nil)
	require.Error(t, err)

	cfg.Strategy = "stale-while-revalidate"
	_, err = impl.NewCacheProxyService("w", cfg, storage, network, nil)
	require.Error(t, err)
}

func TestInstall_CachesEveryManifestURL(t *testing.T) {
	origin := newFakeOrigin(shellPages())
	storage := memory.NewCacheStorage()
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, ""), storage, origin.network(), nil)
	require.NoError(t, err)
	require.Equal(t, asset.StateNew, svc.State())

	require.NoError(t, svc.Install(context.Background()))
	require.Equal(t, asset.StateInstalled, svc.State())
	require.NotNil(t, svc.Lifecycle().InstalledAt)

	store := currentStore(t, storage)
	for _, path := range proxyConfig(t, "").Manifest {
		e, ok, err := store.Get(context.Background(), testOrigin+path)
		require.NoError(t, err)
		require.True(t, ok, path)
		require.Equal(t, http.StatusOK, e.Status)
	}
}

func TestInstall_AllOrNothing(t *testing.T) {
	pages := shellPages()
	delete(pages, testOrigin+"/taskflowai/static/css/custom.css")
	origin := newFakeOrigin(pages)
	storage := memory.NewCacheStorage()
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, ""), storage, origin.network(), nil)
	require.NoError(t, err)

	err = svc.Install(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, impl.ErrInstallFailed))
	require.Equal(t, asset.StateRedundant, svc.State())

	keys, err := currentStore(t, storage).Keys(context.Background())
	require.NoError(t, err)
	require.Empty(t, keys)

	// a redundant worker cannot be activated
	require.True(t, errors.Is(svc.Activate(context.Background()), impl.ErrInvalidState))
}

func TestFetch_SupersededWorkerFinishesRoutedFetches(t *testing.T) {
	origin := newFakeOrigin(shellPages())
	svc, _, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
	svc.MarkRedundant()

	resp, err := svc.Fetch(context.Background(), getRequest(t, testOrigin+"/taskflowai/tasks", ""))
	require.NoError(t, err)
	require.Equal(t, asset.SourceNetwork, resp.Source)
	require.Equal(t, "<html>tasks</html>", readBody(t, resp))

	origin.setOffline(true)
	resp, err = svc.Fetch(context.Background(), getRequest(t, testOrigin+"/taskflowai/login", "text/html"))
	require.NoError(t, err)
	require.Equal(t, asset.SourceCache, resp.Source)
	_ = readBody(t, resp)
}

func TestFetch_RejectedByWorkerThatNeverActivated(t *testing.T) {
	pages := shellPages()
	delete(pages, testOrigin+"/taskflowai/login")
	origin := newFakeOrigin(pages)
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, ""), memory.NewCacheStorage(), origin.network(), nil)
	require.NoError(t, err)
	require.Error(t, svc.Install(context.Background()))
	require.Equal(t, asset.StateRedundant, svc.State())

	_, err = svc.Fetch(context.Background(), getRequest(t, testOrigin+"/taskflowai/", ""))
	require.True(t, errors.Is(err, impl.ErrInvalidState))
}

func TestInstall_NetworkFailure(t *testing.T) {
	origin := newFakeOrigin(shellPages())
	origin.setOffline(true)
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, ""), memory.NewCacheStorage(), origin.network(), nil)
	require.NoError(t, err)
	require.True(t, errors.Is(svc.Install(context.Background()), impl.ErrInstallFailed))
}

func TestInstall_VaryWildcardFails(t *testing.T) {
	origin := newFakeOrigin(shellPages())
	origin.headers[testOrigin+"/taskflowai/login"] = http.Header{"Vary": []string{"*"}}
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, ""), memory.NewCacheStorage(), origin.network(), nil)
	require.NoError(t, err)

	err = svc.Install(context.Background())
	require.True(t, errors.Is(err, impl.ErrInstallFailed))
	require.True(t, errors.Is(err, asset.ErrVaryWildcard))
}

func TestInstall_PutAllFailureFailsInstall(t *testing.T) {
	origin := newFakeOrigin(shellPages())
	storage := &tmocks.CacheStorageMock{OpenFn: func(ctx context.Context, name string) (ports.CacheStore, error) {
		return &tmocks.CacheStoreMock{NameValue: name, PutAllFn: func(ctx context.Context, entries []*asset.Entry) error {
			return errors.New("quota exceeded")
		}}, nil
	}}
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, ""), storage, origin.network(), nil)
	require.NoError(t, err)
	require.True(t, errors.Is(svc.Install(context.Background()), impl.ErrInstallFailed))
}

func TestLifecycle_RejectsOutOfOrderEvents(t *testing.T) {
	origin := newFakeOrigin(shellPages())
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, ""), memory.NewCacheStorage(), origin.network(), nil)
	require.NoError(t, err)

	require.True(t, errors.Is(svc.Activate(context.Background()), impl.ErrInvalidState))
	_, err = svc.Fetch(context.Background(), getRequest(t, testOrigin+"/taskflowai/", ""))
	require.True(t, errors.Is(err, impl.ErrInvalidState))

	require.NoError(t, svc.Install(context.Background()))
	require.True(t, errors.Is(svc.Install(context.Background()), impl.ErrInvalidState))
	_, err = svc.Fetch(context.Background(), getRequest(t, testOrigin+"/taskflowai/", ""))
	require.True(t, errors.Is(err, impl.ErrInvalidState))

	require.NoError(t, svc.Activate(context.Background()))
	lc := svc.Lifecycle()
	require.Equal(t, asset.StateActivated, lc.State)
	require.Equal(t, "ritualos-v1", lc.CacheName)
	require.Equal(t, asset.StrategyNetworkFirst, lc.Strategy)
	require.NotNil(t, lc.ActivatedAt)

	svc.MarkRedundant()
	_, err = svc.Fetch(context.Background(), getRequest(t, testOrigin+"/taskflowai/", ""))
	require.True(t, errors.Is(err, impl.ErrInvalidState))
}

func TestActivate_PurgesStaleCaches(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewCacheStorage()
	for _, name := range []string{"ritualos-v0", "other-cache"} {
		_, err := storage.Open(ctx, name)
		require.NoError(t, err)
	}
	origin := newFakeOrigin(shellPages())
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, ""), storage, origin.network(), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Install(ctx))

	// old caches survive install
	names, err := storage.Keys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ritualos-v0", "other-cache", "ritualos-v1"}, names)

	require.NoError(t, svc.Activate(ctx))
	names, err = storage.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"ritualos-v1"}, names)
}

func TestActivate_PurgeFailureStillActivates(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewCacheStorage()
	storage := &tmocks.CacheStorageMock{
		OpenFn: mem.Open,
		HasFn:  mem.Has,
		KeysFn: func(ctx context.Context) ([]string, error) { return []string{"ritualos-v0", "ritualos-v1"}, nil },
		DeleteFn: func(ctx context.Context, name string) (bool, error) {
			return false, errors.New("permission denied")
		},
	}
	origin := newFakeOrigin(shellPages())
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, ""), storage, origin.network(), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Install(ctx))
	require.NoError(t, svc.Activate(ctx))
	require.Equal(t, asset.StateActivated, svc.State())
}

func TestFetch_APIRequestsBypassCache(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	for _, strategy := range []asset.Strategy{asset.StrategyNetworkFirst, asset.StrategyCacheFirst} {
		t.Run(string(strategy), func(t *testing.T) {
			origin.setOffline(false)
			svc, storage, _ := activeWorker(t, strategy, origin)
			apiURL := testOrigin + "/taskflowai/api/tasks"

			resp, err := svc.Fetch(ctx, getRequest(t, apiURL, "application/json"))
			require.NoError(t, err)
			require.Equal(t, asset.SourceBypass, resp.Source)
			require.Equal(t, `{"tasks":[]}`, readBody(t, resp))

			_, ok, err := currentStore(t, storage).Get(ctx, apiURL)
			require.NoError(t, err)
			require.False(t, ok)

			// offline the failure propagates, even for HTML requests
			origin.setOffline(true)
			_, err = svc.Fetch(ctx, getRequest(t, apiURL, "text/html"))
			require.True(t, errors.Is(err, impl.ErrNoResponse))
			_, ok, err = currentStore(t, storage).Get(ctx, apiURL)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestNetworkFirst_StoresQualifyingResponse(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, storage, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
	target := testOrigin + "/taskflowai/tasks"

	resp, err := svc.Fetch(ctx, getRequest(t, target, "text/html"))
	require.NoError(t, err)
	require.Equal(t, asset.SourceNetwork, resp.Source)
	require.Equal(t, "<html>tasks</html>", readBody(t, resp))

	e, ok, err := currentStore(t, storage).Get(ctx, target)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "<html>tasks</html>", string(e.Body))
}

func TestNetworkFirst_RefreshesStoredEntry(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, storage, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
	target := testOrigin + "/taskflowai/dashboard"

	origin.mu.Lock()
	origin.pages[target] = "<html>dashboard v2</html>"
	origin.mu.Unlock()

	resp, err := svc.Fetch(ctx, getRequest(t, target, "text/html"))
	require.NoError(t, err)
	require.Equal(t, "<html>dashboard v2</html>", readBody(t, resp))

	e, ok, err := currentStore(t, storage).Get(ctx, target)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "<html>dashboard v2</html>", string(e.Body))
}

func TestNetworkFirst_DoesNotStoreNonQualifying(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		req  func(t *testing.T) *asset.Request
	}{
		{"not found", func(t *testing.T) *asset.Request { return getRequest(t, testOrigin+"/taskflowai/missing", "") }},
		{"cross origin", func(t *testing.T) *asset.Request { return getRequest(t, "https://cdn.example.net/lib.js", "") }},
		{"post", func(t *testing.T) *asset.Request {
			return asset.NewRequest(http.MethodPost, mustURL(t, testOrigin+"/taskflowai/tasks"), nil, strings.NewReader("x"))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pages := shellPages()
			pages["https://cdn.example.net/lib.js"] = "lib"
			origin := newFakeOrigin(pages)
			svc, storage, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
			req := tc.req(t)

			resp, err := svc.Fetch(ctx, req)
			require.NoError(t, err)
			require.Equal(t, asset.SourceNetwork, resp.Source)
			_ = readBody(t, resp)

			_, ok, err := currentStore(t, storage).Get(ctx, req.Key())
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestNetworkFirst_VaryWildcardNotStored(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, storage, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
	target := testOrigin + "/taskflowai/tasks"
	origin.headers[target] = http.Header{"Vary": []string{"*"}}

	resp, err := svc.Fetch(ctx, getRequest(t, target, ""))
	require.NoError(t, err)
	require.Equal(t, "<html>tasks</html>", readBody(t, resp))

	_, ok, err := currentStore(t, storage).Get(ctx, target)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNetworkFirst_OversizeBodyStreamsUncached(t *testing.T) {
	ctx := context.Background()
	pages := shellPages()
	big := strings.Repeat("a", 64)
	pages[testOrigin+"/taskflowai/big.bin"] = big
	origin := newFakeOrigin(pages)
	cfg := proxyConfig(t, asset.StrategyNetworkFirst)
	cfg.MaxEntryBytes = 32
	cfg.Manifest = []string{"/taskflowai/"}
	storage := memory.NewCacheStorage()
	svc, err := impl.NewCacheProxyService("w1", cfg, storage, origin.network(), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Install(ctx))
	require.NoError(t, svc.Activate(ctx))

	resp, err := svc.Fetch(ctx, getRequest(t, testOrigin+"/taskflowai/big.bin", ""))
	require.NoError(t, err)
	require.Equal(t, big, readBody(t, resp))

	_, ok, err := currentStore(t, storage).Get(ctx, testOrigin+"/taskflowai/big.bin")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNetworkFirst_SetCookieNeverStored(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, storage, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
	target := testOrigin + "/taskflowai/tasks"
	origin.headers[target] = http.Header{"Set-Cookie": []string{"session=abc"}, "Cache-Control": []string{"no-cache"}}

	resp, err := svc.Fetch(ctx, getRequest(t, target, ""))
	require.NoError(t, err)
	// the live response keeps its cookie
	require.Equal(t, "session=abc", resp.Header.Get("Set-Cookie"))
	_ = readBody(t, resp)

	e, ok, err := currentStore(t, storage).Get(ctx, target)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, e.Header.Get("Set-Cookie"))
	require.Equal(t, "no-cache", e.Header.Get("Cache-Control"))
}

func TestNetworkFirst_CacheWriteFailureStillServes(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	mem := memory.NewCacheStorage()
	installed := false
	storage := &tmocks.CacheStorageMock{
		OpenFn: func(ctx context.Context, name string) (ports.CacheStore, error) {
			if installed {
				return nil, errors.New("storage offline")
			}
			return mem.Open(ctx, name)
		},
		KeysFn: mem.Keys,
	}
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, ""), storage, origin.network(), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Install(ctx))
	require.NoError(t, svc.Activate(ctx))
	installed = true

	resp, err := svc.Fetch(ctx, getRequest(t, testOrigin+"/taskflowai/tasks", ""))
	require.NoError(t, err)
	require.Equal(t, "<html>tasks</html>", readBody(t, resp))
}

func TestNetworkFirst_OfflineServesCachedResponse(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, _, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
	origin.setOffline(true)

	resp, err := svc.Fetch(ctx, getRequest(t, testOrigin+"/taskflowai/login", "text/html"))
	require.NoError(t, err)
	require.Equal(t, asset.SourceCache, resp.Source)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "<html>login</html>", readBody(t, resp))

	// the fragment is not part of the key
	resp, err = svc.Fetch(ctx, getRequest(t, testOrigin+"/taskflowai/login#form", ""))
	require.NoError(t, err)
	require.Equal(t, asset.SourceCache, resp.Source)
	_ = readBody(t, resp)
}

func TestNetworkFirst_OfflineHTMLFallsBackToDashboard(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, storage, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
	origin.setOffline(true)

	resp, err := svc.Fetch(ctx, getRequest(t, testOrigin+"/taskflowai/reports", "text/html,application/xhtml+xml"))
	require.NoError(t, err)
	require.Equal(t, asset.SourceFallback, resp.Source)
	require.Equal(t, "<html>dashboard</html>", readBody(t, resp))

	// without the dashboard the login page is next
	_, err = currentStore(t, storage).Delete(ctx, testOrigin+"/taskflowai/dashboard")
	require.NoError(t, err)
	resp, err = svc.Fetch(ctx, getRequest(t, testOrigin+"/taskflowai/reports", "text/html"))
	require.NoError(t, err)
	require.Equal(t, asset.SourceFallback, resp.Source)
	require.Equal(t, "<html>login</html>", readBody(t, resp))

	// and with neither there is nothing left
	_, err = currentStore(t, storage).Delete(ctx, testOrigin+"/taskflowai/login")
	require.NoError(t, err)
	_, err = svc.Fetch(ctx, getRequest(t, testOrigin+"/taskflowai/reports", "text/html"))
	require.True(t, errors.Is(err, impl.ErrNoResponse))
}

func TestNetworkFirst_OfflineNonHTMLMissHasNoResponse(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, _, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
	origin.setOffline(true)

	for _, accept := range []string{"", "image/png", "application/json"} {
		_, err := svc.Fetch(ctx, getRequest(t, testOrigin+"/taskflowai/static/img/logo.png", accept))
		require.True(t, errors.Is(err, impl.ErrNoResponse), accept)
	}
}

func TestNetworkFirst_OfflineNonGETIsNotMatched(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, _, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
	origin.setOffline(true)

	req := asset.NewRequest(http.MethodPost, mustURL(t, testOrigin+"/taskflowai/login"), http.Header{"Accept": []string{"text/html"}}, nil)
	_, err := svc.Fetch(ctx, req)
	require.True(t, errors.Is(err, impl.ErrNoResponse))
}

func TestNetworkFirst_VaryMatching(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, _, _ := activeWorker(t, asset.StrategyNetworkFirst, origin)
	target := testOrigin + "/taskflowai/tasks"
	origin.headers[target] = http.Header{"Vary": []string{"Accept-Language"}}

	req := getRequest(t, target, "")
	req.Header.Set("Accept-Language", "en")
	resp, err := svc.Fetch(ctx, req)
	require.NoError(t, err)
	_ = readBody(t, resp)

	origin.setOffline(true)
	same := getRequest(t, target, "")
	same.Header.Set("Accept-Language", "en")
	resp, err = svc.Fetch(ctx, same)
	require.NoError(t, err)
	require.Equal(t, asset.SourceCache, resp.Source)
	_ = readBody(t, resp)

	other := getRequest(t, target, "")
	other.Header.Set("Accept-Language", "de")
	_, err = svc.Fetch(ctx, other)
	require.True(t, errors.Is(err, impl.ErrNoResponse))
}

func TestCacheFirst_HitMakesNoNetworkCall(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, _, network := activeWorker(t, asset.StrategyCacheFirst, origin)
	target := testOrigin + "/taskflowai/dashboard"
	before := network.Calls(target)

	resp, err := svc.Fetch(ctx, getRequest(t, target, "text/html"))
	require.NoError(t, err)
	require.Equal(t, asset.SourceCache, resp.Source)
	require.Equal(t, "<html>dashboard</html>", readBody(t, resp))
	require.Equal(t, before, network.Calls(target))
}

func TestCacheFirst_MissGoesToNetworkWithoutStoring(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	svc, storage, network := activeWorker(t, asset.StrategyCacheFirst, origin)
	target := testOrigin + "/taskflowai/tasks"

	resp, err := svc.Fetch(ctx, getRequest(t, target, "text/html"))
	require.NoError(t, err)
	require.Equal(t, asset.SourceNetwork, resp.Source)
	require.Equal(t, "<html>tasks</html>", readBody(t, resp))
	require.Equal(t, 1, network.Calls(target))

	_, ok, err := currentStore(t, storage).Get(ctx, target)
	require.NoError(t, err)
	require.False(t, ok)

	origin.setOffline(true)
	_, err = svc.Fetch(ctx, getRequest(t, target, "text/html"))
	require.True(t, errors.Is(err, impl.ErrNoResponse))
}

func TestCacheFirst_StorageErrorFallsThroughToNetwork(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin(shellPages())
	mem := memory.NewCacheStorage()
	broken := false
	storage := &tmocks.CacheStorageMock{
		OpenFn: func(ctx context.Context, name string) (ports.CacheStore, error) {
			if broken {
				return nil, fmt.Errorf("connection refused")
			}
			return mem.Open(ctx, name)
		},
		KeysFn: mem.Keys,
	}
	svc, err := impl.NewCacheProxyService("w1", proxyConfig(t, asset.StrategyCacheFirst), storage, origin.network(), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Install(ctx))
	require.NoError(t, svc.Activate(ctx))
	broken = true

	resp, err := svc.Fetch(ctx, getRequest(t, testOrigin+"/taskflowai/dashboard", ""))
	require.NoError(t, err)
	require.Equal(t, asset.SourceNetwork, resp.Source)
	_ = readBody(t, resp)
}
