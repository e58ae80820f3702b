package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
)

const (
	defaultAPIMarker          = "/api/"
	defaultMaxEntryBytes      = 10 << 20
	defaultInstallConcurrency = 4
)

// CacheProxyConfig groups the deployment-time settings of one worker.
type CacheProxyConfig struct {
	CacheName          asset.CacheName
	Origin             *url.URL
	Manifest           []string
	Fallbacks          []string
	APIMarker          string
	Strategy           asset.Strategy
	MaxEntryBytes      int64
	InstallConcurrency int
}

// CacheProxyService is one asset cache proxy instance. It implements ports.ServiceWorker.
type CacheProxyService struct {
	id          string
	name        asset.CacheName
	cacheName   string
	manifest    []string
	fallbacks   []string
	apiMarker   string
	strategy    asset.Strategy
	maxEntry    int64
	concurrency int

	storage ports.CacheStorage
	network ports.Network
	logger  *logrus.Logger
	now     func() time.Time

	mu          sync.RWMutex
	state       asset.State
	installedAt time.Time
	activatedAt time.Time
}

func NewCacheProxyService(id string, cfg *CacheProxyConfig, storage ports.CacheStorage, network ports.Network, logger *logrus.Logger) (*CacheProxyService, error) {
	if cfg == nil || cfg.Origin == nil {
		return nil, fmt.Errorf("cache proxy: origin is required")
	}
	if storage == nil || network == nil {
		return nil, fmt.Errorf("cache proxy: storage and network are required")
	}
	manifest, err := asset.ResolveManifest(cfg.Origin, cfg.Manifest)
	if err != nil {
		return nil, fmt.Errorf("cache proxy: invalid manifest: %w", err)
	}
	fallbacks, err := asset.ResolveManifest(cfg.Origin, cfg.Fallbacks)
	if err != nil {
		return nil, fmt.Errorf("cache proxy: invalid fallbacks: %w", err)
	}

	// Apply defaults
	marker := defaultAPIMarker
	if cfg.APIMarker != "" {
		marker = cfg.APIMarker
	}
	strategy := asset.StrategyNetworkFirst
	if cfg.Strategy != "" {
		if !cfg.Strategy.Valid() {
			return nil, fmt.Errorf("cache proxy: unknown strategy %q", cfg.Strategy)
		}
		strategy = cfg.Strategy
	}
	maxEntry := int64(defaultMaxEntryBytes)
	if cfg.MaxEntryBytes > 0 {
		maxEntry = cfg.MaxEntryBytes
	}
	concurrency := defaultInstallConcurrency
	if cfg.InstallConcurrency > 0 {
		concurrency = cfg.InstallConcurrency
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &CacheProxyService{
		id:          id,
		name:        cfg.CacheName,
		cacheName:   cfg.CacheName.String(),
		manifest:    manifest,
		fallbacks:   fallbacks,
		apiMarker:   marker,
		strategy:    strategy,
		maxEntry:    maxEntry,
		concurrency: concurrency,
		storage:     storage,
		network:     network,
		logger:      logger,
		now:         time.Now,
		state:       asset.StateNew,
	}, nil
}

func (s *CacheProxyService) Lifecycle() asset.Lifecycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lc := asset.Lifecycle{ID: s.id, State: s.state, CacheName: s.cacheName, Strategy: s.strategy}
	if !s.installedAt.IsZero() {
		t := s.installedAt
		lc.InstalledAt = &t
	}
	if !s.activatedAt.IsZero() {
		t := s.activatedAt
		lc.ActivatedAt = &t
	}
	return lc
}

func (s *CacheProxyService) State() asset.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *CacheProxyService) MarkRedundant() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = asset.StateRedundant
}

// canFetch holds once activated. A superseded worker that was active keeps answering the
// fetches already routed to it.
func (s *CacheProxyService) canFetch() (asset.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case asset.StateActivated:
		return s.state, true
	case asset.StateRedundant:
		return s.state, !s.activatedAt.IsZero()
	}
	return s.state, false
}

func (s *CacheProxyService) transition(next asset.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, s.state, next)
	}
	s.state = next
	switch next {
	case asset.StateInstalled:
		s.installedAt = s.now().UTC()
	case asset.StateActivated:
		s.activatedAt = s.now().UTC()
	}
	return nil
}

func (s *CacheProxyService) entry() *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{"worker_id": s.id, "cache": s.cacheName})
}

// Install populates the current store with the whole manifest, or with nothing.
func (s *CacheProxyService) Install(ctx context.Context) error {
	if err := s.transition(asset.StateInstalling); err != nil {
		return err
	}
	s.entry().WithField("assets", len(s.manifest)).Info("caching app shell")
	if err := s.populate(ctx); err != nil {
		s.MarkRedundant()
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	return s.transition(asset.StateInstalled)
}

func (s *CacheProxyService) populate(ctx context.Context) error {
	store, err := s.storage.Open(ctx, s.cacheName)
	if err != nil {
		return fmt.Errorf("open cache %s: %w", s.cacheName, err)
	}

	entries := make([]*asset.Entry, len(s.manifest))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, raw := range s.manifest {
		g.Go(func() error {
			e, err := s.fetchManifestEntry(gctx, raw)
			if err != nil {
				return fmt.Errorf("%s: %w", raw, err)
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return store.PutAll(ctx, entries)
}

func (s *CacheProxyService) fetchManifestEntry(ctx context.Context, raw string) (*asset.Entry, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	req := asset.NewRequest(http.MethodGet, u, nil, nil)
	resp, err := s.network.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.Status < 200 || resp.Status > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return asset.NewEntry(req, resp, body, s.now())
}

// Activate purges every store except the current one. Purge failures are logged, not retried.
func (s *CacheProxyService) Activate(ctx context.Context) error {
	if err := s.transition(asset.StateActivating); err != nil {
		return err
	}
	s.purgeStale(ctx)
	return s.transition(asset.StateActivated)
}

func (s *CacheProxyService) purgeStale(ctx context.Context) {
	names, err := s.storage.Keys(ctx)
	if err != nil {
		s.entry().WithError(err).Warn("could not list caches; skipping cleanup")
		return
	}
	for _, name := range names {
		if s.name.IsCurrent(name) {
			continue
		}
		if _, err := s.storage.Delete(ctx, name); err != nil {
			s.entry().WithError(err).WithField("old_cache", name).Warn("failed to remove old cache")
			continue
		}
		s.entry().WithField("old_cache", name).Info("removed old cache")
	}
}

// Fetch answers one intercepted request with the configured strategy.
func (s *CacheProxyService) Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	if st, ok := s.canFetch(); !ok {
		return nil, fmt.Errorf("%w: fetch while %s", ErrInvalidState, st)
	}
	if req.IsAPI(s.apiMarker) {
		return s.bypass(ctx, req)
	}
	if s.strategy == asset.StrategyCacheFirst {
		return s.cacheFirst(ctx, req)
	}
	return s.networkFirst(ctx, req)
}

func (s *CacheProxyService) bypass(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	resp, err := s.network.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoResponse, req.Key(), err)
	}
	resp.Source = asset.SourceBypass
	return resp, nil
}

func (s *CacheProxyService) networkFirst(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	resp, err := s.network.Fetch(ctx, req)
	if err != nil {
		return s.offline(ctx, req, err)
	}
	resp.Source = asset.SourceNetwork
	if !s.qualifies(req, resp) {
		return resp, nil
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, s.maxEntry+1))
	if err != nil {
		closeBody(resp)
		return s.offline(ctx, req, err)
	}
	if int64(len(buf)) > s.maxEntry {
		s.entry().WithField("url", req.Key()).Debug("response exceeds max entry size; not caching")
		resp.Body = readCloser{Reader: io.MultiReader(bytesReader(buf), resp.Body), Closer: resp.Body}
		return resp, nil
	}
	closeBody(resp)
	resp.Body = io.NopCloser(bytesReader(buf))
	s.put(ctx, req, resp, buf)
	return resp, nil
}

// qualifies holds for a full same-origin 200 to a GET.
func (s *CacheProxyService) qualifies(req *asset.Request, resp *asset.Response) bool {
	return req.Cacheable() &&
		resp.Status == http.StatusOK &&
		resp.Type == asset.ResponseTypeBasic &&
		!resp.VaryWildcard()
}

func (s *CacheProxyService) put(ctx context.Context, req *asset.Request, resp *asset.Response, body []byte) {
	e, err := asset.NewEntry(req, resp, body, s.now())
	if err != nil {
		s.entry().WithError(err).WithField("url", req.Key()).Warn("cache entry not built")
		return
	}
	store, err := s.storage.Open(ctx, s.cacheName)
	if err == nil {
		err = store.Put(ctx, e)
	}
	if err != nil {
		s.entry().WithError(err).WithField("url", e.URL).Warn("cache write failed")
	}
}

// offline answers from the store after the network failed. A failing store counts as a miss.
func (s *CacheProxyService) offline(ctx context.Context, req *asset.Request, netErr error) (*asset.Response, error) {
	store, err := s.storage.Open(ctx, s.cacheName)
	if err != nil {
		s.entry().WithError(err).Warn("cache unavailable while offline")
		return nil, fmt.Errorf("%w: %s: %w", ErrNoResponse, req.Key(), netErr)
	}
	e, ok, err := s.match(ctx, store, req)
	if err != nil {
		s.entry().WithError(err).WithField("url", req.Key()).Warn("cache read failed")
	}
	if ok {
		return e.Response(asset.SourceCache), nil
	}
	if req.Cacheable() && req.AcceptsHTML() {
		for _, fb := range s.fallbacks {
			e, ok, err := store.Get(ctx, fb)
			if err != nil {
				s.entry().WithError(err).WithField("fallback", fb).Warn("cache read failed")
				continue
			}
			if ok {
				s.entry().WithFields(logrus.Fields{"url": req.Key(), "fallback": fb}).Debug("serving fallback page")
				return e.Response(asset.SourceFallback), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrNoResponse, req.Key(), netErr)
}

func (s *CacheProxyService) cacheFirst(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	store, err := s.storage.Open(ctx, s.cacheName)
	if err == nil {
		var (
			e  *asset.Entry
			ok bool
		)
		e, ok, err = s.match(ctx, store, req)
		if ok {
			return e.Response(asset.SourceCache), nil
		}
	}
	if err != nil {
		s.entry().WithError(err).WithField("url", req.Key()).Warn("cache read failed; going to network")
	}
	resp, err := s.network.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoResponse, req.Key(), err)
	}
	resp.Source = asset.SourceNetwork
	return resp, nil
}

func (s *CacheProxyService) match(ctx context.Context, store ports.CacheStore, req *asset.Request) (*asset.Entry, bool, error) {
	if !req.Cacheable() {
		return nil, false, nil
	}
	e, ok, err := store.Get(ctx, req.Key())
	if err != nil || !ok {
		return nil, false, err
	}
	if !e.Matches(req) {
		return nil, false, nil
	}
	return e, true, nil
}
