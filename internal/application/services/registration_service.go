package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
)

// WorkerFactory builds a fresh worker instance for each install attempt.
type WorkerFactory func(id string) (ports.ServiceWorker, error)

// NewWorkerFactory returns a factory producing CacheProxyService instances sharing cfg.
func NewWorkerFactory(cfg *CacheProxyConfig, storage ports.CacheStorage, network ports.Network, logger *logrus.Logger) WorkerFactory {
	return func(id string) (ports.ServiceWorker, error) {
		return NewCacheProxyService(id, cfg, storage, network, logger)
	}
}

// RegistrationConfig groups install retry settings.
type RegistrationConfig struct {
	RetryInterval time.Duration
	// MaxAttempts bounds install attempts per registration; 0 retries until ctx is done.
	MaxAttempts int
}

type workerRef struct{ w ports.ServiceWorker }

// RegistrationService plays the platform: it installs, activates and swaps worker instances,
// and routes intercepted requests to the active one.
type RegistrationService struct {
	newWorker     WorkerFactory
	storage       ports.CacheStorage
	network       ports.Network
	retryInterval time.Duration
	maxAttempts   int
	logger        *logrus.Logger

	updates    singleflight.Group
	mu         sync.Mutex
	active     atomic.Pointer[workerRef]
	installing atomic.Pointer[workerRef]
}

func NewRegistrationService(factory WorkerFactory, storage ports.CacheStorage, network ports.Network, cfg *RegistrationConfig, logger *logrus.Logger) *RegistrationService {
	// Apply defaults
	interval := 30 * time.Second
	attempts := 0
	if cfg != nil {
		if cfg.RetryInterval > 0 {
			interval = cfg.RetryInterval
		}
		if cfg.MaxAttempts > 0 {
			attempts = cfg.MaxAttempts
		}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &RegistrationService{
		newWorker:     factory,
		storage:       storage,
		network:       network,
		retryInterval: interval,
		maxAttempts:   attempts,
		logger:        logger,
	}
}

// Register installs a new worker, activates it and makes it the one serving requests.
func (s *RegistrationService) Register(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.install(ctx)
	if err != nil {
		return err
	}
	defer s.installing.Store(nil)

	if err := w.Activate(ctx); err != nil {
		w.MarkRedundant()
		return fmt.Errorf("activate worker: %w", err)
	}
	// claim: every request from here on goes through w
	prev := s.active.Swap(&workerRef{w: w})
	if prev != nil {
		prev.w.MarkRedundant()
	}
	lc := w.Lifecycle()
	s.logger.WithFields(logrus.Fields{"worker_id": lc.ID, "cache": lc.CacheName, "strategy": lc.Strategy}).Info("worker activated")
	return nil
}

// Update registers a new instance; the current worker keeps serving until it is replaced.
// Overlapping calls share one registration.
func (s *RegistrationService) Update(ctx context.Context) error {
	_, err, shared := s.updates.Do("update", func() (interface{}, error) {
		return nil, s.Register(ctx)
	})
	if shared {
		s.logger.Debug("update coalesced with one in flight")
	}
	return err
}

func (s *RegistrationService) install(ctx context.Context) (ports.ServiceWorker, error) {
	for attempt := 1; ; attempt++ {
		w, err := s.newWorker(uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("create worker: %w", err)
		}
		s.installing.Store(&workerRef{w: w})

		err = w.Install(ctx)
		if err == nil {
			return w, nil
		}
		s.logger.WithError(err).WithFields(logrus.Fields{"worker_id": w.Lifecycle().ID, "attempt": attempt}).Warn("worker install failed")
		if s.maxAttempts > 0 && attempt >= s.maxAttempts {
			s.installing.Store(nil)
			return nil, fmt.Errorf("install gave up after %d attempts: %w", attempt, err)
		}

		timer := time.NewTimer(s.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.installing.Store(nil)
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Fetch routes to the active worker. Without one the request goes to the network uncontrolled.
func (s *RegistrationService) Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	if ref := s.active.Load(); ref != nil {
		return ref.w.Fetch(ctx, req)
	}
	resp, err := s.network.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoResponse, req.Key(), err)
	}
	resp.Source = asset.SourceNetwork
	return resp, nil
}

func (s *RegistrationService) Status(ctx context.Context) (*ports.WorkerStatus, error) {
	st := &ports.WorkerStatus{}
	if ref := s.active.Load(); ref != nil {
		lc := ref.w.Lifecycle()
		st.Active = &lc
	}
	if ref := s.installing.Load(); ref != nil {
		lc := ref.w.Lifecycle()
		st.Installing = &lc
	}
	names, err := s.storage.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	st.Caches = append([]string{}, names...)
	return st, nil
}

func (s *RegistrationService) Storage() ports.CacheStorage {
	return s.storage
}
