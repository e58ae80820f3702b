package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
)

// NetworkMock is a lightweight mock for ports.Network. It counts calls per URL.
type NetworkMock struct {
	FetchFn func(ctx context.Context, req *asset.Request) (*asset.Response, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *NetworkMock) Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[req.Key()]++
	m.mu.Unlock()
	if m.FetchFn != nil {
		return m.FetchFn(ctx, req)
	}
	return nil, fmt.Errorf("network unavailable")
}

// Calls returns how often url was fetched.
func (m *NetworkMock) Calls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

// TotalCalls returns the number of fetches across all URLs.
func (m *NetworkMock) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// CacheStorageMock is a lightweight mock for ports.CacheStorage
type CacheStorageMock struct {
	OpenFn   func(ctx context.Context, name string) (ports.CacheStore, error)
	HasFn    func(ctx context.Context, name string) (bool, error)
	DeleteFn func(ctx context.Context, name string) (bool, error)
	KeysFn   func(ctx context.Context) ([]string, error)
}

func (m *CacheStorageMock) Open(ctx context.Context, name string) (ports.CacheStore, error) {
	if m.OpenFn != nil {
		return m.OpenFn(ctx, name)
	}
	return &CacheStoreMock{NameValue: name}, nil
}
func (m *CacheStorageMock) Has(ctx context.Context, name string) (bool, error) {
	if m.HasFn != nil {
		return m.HasFn(ctx, name)
	}
	return false, nil
}
func (m *CacheStorageMock) Delete(ctx context.Context, name string) (bool, error) {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, name)
	}
	return false, nil
}
func (m *CacheStorageMock) Keys(ctx context.Context) ([]string, error) {
	if m.KeysFn != nil {
		return m.KeysFn(ctx)
	}
	return nil, nil
}

// CacheStoreMock is a lightweight mock for ports.CacheStore
type CacheStoreMock struct {
	NameValue string
	GetFn     func(ctx context.Context, url string) (*asset.Entry, bool, error)
	PutFn     func(ctx context.Context, entry *asset.Entry) error
	PutAllFn  func(ctx context.Context, entries []*asset.Entry) error
	DeleteFn  func(ctx context.Context, url string) (bool, error)
	KeysFn    func(ctx context.Context) ([]string, error)
}

func (m *CacheStoreMock) Name() string { return m.NameValue }
func (m *CacheStoreMock) Get(ctx context.Context, url string) (*asset.Entry, bool, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, url)
	}
	return nil, false, nil
}
func (m *CacheStoreMock) Put(ctx context.Context, entry *asset.Entry) error {
	if m.PutFn != nil {
		return m.PutFn(ctx, entry)
	}
	return nil
}
func (m *CacheStoreMock) PutAll(ctx context.Context, entries []*asset.Entry) error {
	if m.PutAllFn != nil {
		return m.PutAllFn(ctx, entries)
	}
	return nil
}
func (m *CacheStoreMock) Delete(ctx context.Context, url string) (bool, error) {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, url)
	}
	return false, nil
}
func (m *CacheStoreMock) Keys(ctx context.Context) ([]string, error) {
	if m.KeysFn != nil {
		return m.KeysFn(ctx)
	}
	return nil, nil
}

// ServiceWorkerMock is a lightweight mock for ports.ServiceWorker
type ServiceWorkerMock struct {
	LifecycleValue  asset.Lifecycle
	InstallFn       func(ctx context.Context) error
	ActivateFn      func(ctx context.Context) error
	FetchFn         func(ctx context.Context, req *asset.Request) (*asset.Response, error)
	MarkRedundantFn func()
}

func (m *ServiceWorkerMock) Lifecycle() asset.Lifecycle { return m.LifecycleValue }
func (m *ServiceWorkerMock) Install(ctx context.Context) error {
	if m.InstallFn != nil {
		return m.InstallFn(ctx)
	}
	m.LifecycleValue.State = asset.StateInstalled
	return nil
}
func (m *ServiceWorkerMock) Activate(ctx context.Context) error {
	if m.ActivateFn != nil {
		return m.ActivateFn(ctx)
	}
	m.LifecycleValue.State = asset.StateActivated
	return nil
}
func (m *ServiceWorkerMock) Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	if m.FetchFn != nil {
		return m.FetchFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *ServiceWorkerMock) MarkRedundant() {
	if m.MarkRedundantFn != nil {
		m.MarkRedundantFn()
		return
	}
	m.LifecycleValue.State = asset.StateRedundant
}

// RegistrationServiceMock is a lightweight mock for ports.RegistrationService
type RegistrationServiceMock struct {
	RegisterFn func(ctx context.Context) error
	UpdateFn   func(ctx context.Context) error
	FetchFn    func(ctx context.Context, req *asset.Request) (*asset.Response, error)
	StatusFn   func(ctx context.Context) (*ports.WorkerStatus, error)
	StorageFn  func() ports.CacheStorage
}

func (m *RegistrationServiceMock) Register(ctx context.Context) error {
	if m.RegisterFn != nil {
		return m.RegisterFn(ctx)
	}
	return nil
}
func (m *RegistrationServiceMock) Update(ctx context.Context) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx)
	}
	return nil
}
func (m *RegistrationServiceMock) Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	if m.FetchFn != nil {
		return m.FetchFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *RegistrationServiceMock) Status(ctx context.Context) (*ports.WorkerStatus, error) {
	if m.StatusFn != nil {
		return m.StatusFn(ctx)
	}
	return &ports.WorkerStatus{Caches: []string{}}, nil
}
func (m *RegistrationServiceMock) Storage() ports.CacheStorage {
	if m.StorageFn != nil {
		return m.StorageFn()
	}
	return &CacheStorageMock{}
}

// HealthCheckerMock is a lightweight mock for ports.HealthChecker
type HealthCheckerMock struct {
	NameValue string
	CheckFn   func(ctx context.Context) error
}

func (m *HealthCheckerMock) Name() string { return m.NameValue }
func (m *HealthCheckerMock) Check(ctx context.Context) error {
	if m.CheckFn != nil {
		return m.CheckFn(ctx)
	}
	return nil
}
