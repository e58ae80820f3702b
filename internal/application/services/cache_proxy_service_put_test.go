package services

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
	tmocks "github.com/avatarctic/taskflow-assetproxy/test/mocks"
)

func TestPut_LogsUnbuildableEntry(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	origin, err := url.Parse("https://app.example.com")
	require.NoError(t, err)
	name, err := asset.NewCacheName("ritualos", "v1")
	require.NoError(t, err)

	stored := false
	storage := &tmocks.CacheStorageMock{}
	storage.OpenFn = func(ctx context.Context, n string) (ports.CacheStore, error) {
		return &tmocks.CacheStoreMock{NameValue: n, PutFn: func(ctx context.Context, e *asset.Entry) error {
			stored = true
			return nil
		}}, nil
	}
	svc, err := NewCacheProxyService("w1", &CacheProxyConfig{CacheName: name, Origin: origin}, storage, &tmocks.NetworkMock{}, logger)
	require.NoError(t, err)

	target, err := url.Parse("https://app.example.com/taskflowai/tasks")
	require.NoError(t, err)
	req := asset.NewRequest(http.MethodGet, target, nil, nil)
	resp := &asset.Response{Status: http.StatusOK, Header: http.Header{"Vary": []string{"*"}}, Type: asset.ResponseTypeBasic}

	svc.put(context.Background(), req, resp, []byte("<html>tasks</html>"))

	require.False(t, stored)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.WarnLevel, entry.Level)
	require.Equal(t, "https://app.example.com/taskflowai/tasks", entry.Data["url"])
	require.ErrorIs(t, entry.Data[logrus.ErrorKey].(error), asset.ErrVaryWildcard)
}
