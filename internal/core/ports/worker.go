package ports

import (
	"context"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
)

// ServiceWorker is one instance of the asset cache proxy, driven through the platform events.
type ServiceWorker interface {
	Lifecycle() asset.Lifecycle
	Install(ctx context.Context) error
	Activate(ctx context.Context) error
	Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error)
	MarkRedundant()
}

// WorkerStatus is a read-only view of the registration.
type WorkerStatus struct {
	Active     *asset.Lifecycle `json:"active,omitempty"`
	Installing *asset.Lifecycle `json:"installing,omitempty"`
	Caches     []string         `json:"caches"`
}

// RegistrationService owns the worker lifecycle and routes intercepted requests.
type RegistrationService interface {
	Register(ctx context.Context) error
	Update(ctx context.Context) error
	Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error)
	Status(ctx context.Context) (*WorkerStatus, error)
	Storage() CacheStorage
}
