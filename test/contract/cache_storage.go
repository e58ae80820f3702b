// Package contract holds behaviour tests shared by every ports.CacheStorage backend.
package contract

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
)

// Entry builds a stored response for url with the given body.
func Entry(url, body string) *asset.Entry {
	return &asset.Entry{
		URL:      url,
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"text/html"}, "Cache-Control": []string{"max-age=60"}},
		Body:     []byte(body),
		Type:     asset.ResponseTypeBasic,
		Vary:     map[string]string{"Accept-Language": "en"},
		StoredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// RunCacheStorageTests exercises a backend. newStorage must return an empty storage.
func RunCacheStorageTests(t *testing.T, newStorage func(t *testing.T) ports.CacheStorage) {
	t.Run("OpenCreatesAndHas", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)

		ok, err := s.Has(ctx, "ritualos-v1")
		require.NoError(t, err)
		require.False(t, ok)

		store, err := s.Open(ctx, "ritualos-v1")
		require.NoError(t, err)
		require.Equal(t, "ritualos-v1", store.Name())

		ok, err = s.Has(ctx, "ritualos-v1")
		require.NoError(t, err)
		require.True(t, ok)

		// opening again is idempotent
		_, err = s.Open(ctx, "ritualos-v1")
		require.NoError(t, err)
		names, err := s.Keys(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"ritualos-v1"}, names)
	})

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		store, err := s.Open(ctx, "ritualos-v1")
		require.NoError(t, err)

		want := Entry("https://app.example.com/taskflowai/", "<html>home</html>")
		require.NoError(t, store.Put(ctx, want))

		got, ok, err := store.Get(ctx, want.URL)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want.URL, got.URL)
		require.Equal(t, want.Status, got.Status)
		require.Equal(t, want.Body, got.Body)
		require.Equal(t, want.Type, got.Type)
		require.Equal(t, want.Vary, got.Vary)
		require.Equal(t, "max-age=60", got.Header.Get("Cache-Control"))
		require.True(t, want.StoredAt.Equal(got.StoredAt))

		_, ok, err = store.Get(ctx, "https://app.example.com/missing")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		store, err := s.Open(ctx, "ritualos-v1")
		require.NoError(t, err)

		url := "https://app.example.com/taskflowai/dashboard"
		require.NoError(t, store.Put(ctx, Entry(url, "old")))
		require.NoError(t, store.Put(ctx, Entry(url, "new")))

		got, ok, err := store.Get(ctx, url)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "new", string(got.Body))
		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{url}, keys)
	})

	t.Run("PutAllAndKeys", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		store, err := s.Open(ctx, "ritualos-v1")
		require.NoError(t, err)

		urls := []string{
			"https://app.example.com/taskflowai/",
			"https://app.example.com/taskflowai/login",
			"https://cdn.tailwindcss.com",
		}
		entries := make([]*asset.Entry, len(urls))
		for i, u := range urls {
			entries[i] = Entry(u, fmt.Sprintf("body %d", i))
		}
		require.NoError(t, store.PutAll(ctx, entries))

		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, urls, keys)

		deleted, err := store.Delete(ctx, urls[1])
		require.NoError(t, err)
		require.True(t, deleted)
		deleted, err = store.Delete(ctx, urls[1])
		require.NoError(t, err)
		require.False(t, deleted)

		keys, err = store.Keys(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{urls[0], urls[2]}, keys)
	})

	t.Run("StoresAreIsolated", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		v1, err := s.Open(ctx, "ritualos-v1")
		require.NoError(t, err)
		v2, err := s.Open(ctx, "ritualos-v2")
		require.NoError(t, err)

		url := "https://app.example.com/taskflowai/"
		require.NoError(t, v1.Put(ctx, Entry(url, "one")))

		_, ok, err := v2.Get(ctx, url)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("DeleteRemovesStoreAndEntries", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		store, err := s.Open(ctx, "ritualos-v0")
		require.NoError(t, err)
		url := "https://app.example.com/taskflowai/"
		require.NoError(t, store.Put(ctx, Entry(url, "stale")))
		_, err = s.Open(ctx, "ritualos-v1")
		require.NoError(t, err)

		deleted, err := s.Delete(ctx, "ritualos-v0")
		require.NoError(t, err)
		require.True(t, deleted)
		deleted, err = s.Delete(ctx, "ritualos-v0")
		require.NoError(t, err)
		require.False(t, deleted)

		names, err := s.Keys(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"ritualos-v1"}, names)

		// a recreated store starts empty
		again, err := s.Open(ctx, "ritualos-v0")
		require.NoError(t, err)
		_, ok, err := again.Get(ctx, url)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("ConcurrentPuts", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		store, err := s.Open(ctx, "ritualos-v1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- store.Put(ctx, Entry(fmt.Sprintf("https://app.example.com/asset/%d", i), "x"))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 16)
	})
}
