package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/taskflow-assetproxy/configs"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
	"github.com/avatarctic/taskflow-assetproxy/internal/utils"
)

func NewClient(cfg *configs.S3Config) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// CacheStorage implements ports.CacheStorage on an S3-compatible bucket.
//
//	<prefix>/caches/<name>                 store marker
//	<prefix>/entries/<name>/<digest>.json  one JSON entry per URL
type CacheStorage struct {
	client *minio.Client
	bucket string
	prefix string
	logger *logrus.Logger
}

func NewCacheStorage(client *minio.Client, bucket, prefix string, logger *logrus.Logger) *CacheStorage {
	if prefix == "" {
		prefix = "assetcache"
	}
	return &CacheStorage{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *CacheStorage) EnsureBucket(ctx context.Context, region string) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *CacheStorage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

func (s *CacheStorage) markerKey(name string) string {
	return path.Join(s.prefix, "caches", name)
}

func (s *CacheStorage) entriesPrefix(name string) string {
	return path.Join(s.prefix, "entries", name) + "/"
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func (s *CacheStorage) Open(ctx context.Context, name string) (ports.CacheStore, error) {
	ok, err := s.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		_, err := s.client.PutObject(ctx, s.bucket, s.markerKey(name), bytes.NewReader(stamp), int64(len(stamp)),
			minio.PutObjectOptions{ContentType: "text/plain"})
		if err != nil {
			return nil, fmt.Errorf("create cache %s: %w", name, err)
		}
	}
	return &CacheStore{storage: s, name: name}, nil
}

func (s *CacheStorage) Has(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.markerKey(name), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat cache %s: %w", name, err)
}

func (s *CacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	ok, err := s.Has(ctx, name)
	if err != nil {
		return false, err
	}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.entriesPrefix(name), Recursive: true}) {
		if obj.Err != nil {
			return false, fmt.Errorf("list entries of %s: %w", name, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return false, fmt.Errorf("remove %s: %w", obj.Key, err)
		}
	}
	if ok {
		if err := s.client.RemoveObject(ctx, s.bucket, s.markerKey(name), minio.RemoveObjectOptions{}); err != nil {
			return false, fmt.Errorf("remove cache %s: %w", name, err)
		}
	}
	return ok, nil
}

func (s *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	base := path.Join(s.prefix, "caches") + "/"
	var markers []minio.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: base}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list caches: %w", obj.Err)
		}
		markers = append(markers, obj)
	}
	sort.SliceStable(markers, func(i, j int) bool {
		if markers[i].LastModified.Equal(markers[j].LastModified) {
			return markers[i].Key < markers[j].Key
		}
		return markers[i].LastModified.Before(markers[j].LastModified)
	})
	names := make([]string, 0, len(markers))
	for _, m := range markers {
		names = append(names, strings.TrimPrefix(m.Key, base))
	}
	return names, nil
}

// CacheStore is one named store under the entries prefix.
type CacheStore struct {
	storage *CacheStorage
	name    string
}

func (c *CacheStore) Name() string { return c.name }

func (c *CacheStore) objectKey(url string) string {
	return c.storage.entriesPrefix(c.name) + utils.KeyDigest(url) + ".json"
}

func (c *CacheStore) Get(ctx context.Context, url string) (*asset.Entry, bool, error) {
	e, err := c.read(ctx, c.objectKey(url))
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get entry %s: %w", url, err)
	}
	return e, true, nil
}

func (c *CacheStore) read(ctx context.Context, key string) (*asset.Entry, error) {
	obj, err := c.storage.client.GetObject(ctx, c.storage.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	b, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}
	var e asset.Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &e, nil
}

func (c *CacheStore) Put(ctx context.Context, entry *asset.Entry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = c.storage.client.PutObject(ctx, c.storage.bucket, c.objectKey(entry.URL), bytes.NewReader(b), int64(len(b)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

// PutAll writes entries one object at a time; on failure it removes what this call wrote.
func (c *CacheStore) PutAll(ctx context.Context, entries []*asset.Entry) error {
	written := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := c.Put(ctx, e); err != nil {
			for _, key := range written {
				if rmErr := c.storage.client.RemoveObject(ctx, c.storage.bucket, key, minio.RemoveObjectOptions{}); rmErr != nil && c.storage.logger != nil {
					c.storage.logger.WithError(rmErr).WithField("key", key).Warn("s3: rollback of partial write failed")
				}
			}
			return fmt.Errorf("put entry %s: %w", e.URL, err)
		}
		written = append(written, c.objectKey(e.URL))
	}
	return nil
}

func (c *CacheStore) Delete(ctx context.Context, url string) (bool, error) {
	key := c.objectKey(url)
	_, err := c.storage.client.StatObject(ctx, c.storage.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := c.storage.client.RemoveObject(ctx, c.storage.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, err
	}
	return true, nil
}

func (c *CacheStore) Keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	for obj := range c.storage.client.ListObjects(ctx, c.storage.bucket, minio.ListObjectsOptions{Prefix: c.storage.entriesPrefix(c.name), Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		e, err := c.read(ctx, obj.Key)
		if err != nil {
			continue
		}
		keys = append(keys, e.URL)
	}
	sort.Strings(keys)
	return keys, nil
}
