package ports

import (
	"context"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
)

// Network performs real fetches. A transport failure (offline, DNS, refused) is an error;
// any HTTP status, including 4xx/5xx, is a response.
type Network interface {
	Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error)
}
