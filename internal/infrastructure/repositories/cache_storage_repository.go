package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/db"
)

// CacheStorageRepository implements ports.CacheStorage on the cache_stores/cache_entries tables.
// Queries are written with '?' and rebound for the driver, so postgres and sqlite share them.
type CacheStorageRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewCacheStorageRepository(database *db.Database, logger *logrus.Logger) *CacheStorageRepository {
	return &CacheStorageRepository{db: database, logger: logger}
}

func (r *CacheStorageRepository) q(query string) string {
	return r.db.DB.Rebind(query)
}

func (r *CacheStorageRepository) Open(ctx context.Context, name string) (ports.CacheStore, error) {
	query := r.q(`INSERT INTO cache_stores (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`)
	if _, err := r.db.DB.ExecContext(ctx, query, name, time.Now().UTC()); err != nil {
		if r.logger != nil {
			r.logger.WithField("cache", name).WithError(err).Error("db: failed to open cache store")
		}
		return nil, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	return &CacheStoreRepository{repo: r, name: name}, nil
}

func (r *CacheStorageRepository) Has(ctx context.Context, name string) (bool, error) {
	var n int
	if err := r.db.DB.GetContext(ctx, &n, r.q(`SELECT COUNT(*) FROM cache_stores WHERE name = ?`), name); err != nil {
		return false, fmt.Errorf("failed to look up cache %s: %w", name, err)
	}
	return n > 0, nil
}

// Delete removes the store row and its entries in one transaction.
func (r *CacheStorageRepository) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := r.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM cache_entries WHERE cache_name = ?`), name); err != nil {
		return false, fmt.Errorf("failed to delete entries of %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM cache_stores WHERE name = ?`), name)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n > 0 && r.logger != nil {
		r.logger.WithField("cache", name).Info("db: cache store deleted")
	}
	return n > 0, nil
}

func (r *CacheStorageRepository) Keys(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := r.db.DB.SelectContext(ctx, &names, `SELECT name FROM cache_stores ORDER BY created_at, name`); err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}
	return names, nil
}

type entryRow struct {
	CacheName string    `db:"cache_name"`
	URL       string    `db:"url"`
	Status    int       `db:"status"`
	Header    string    `db:"header"`
	Vary      string    `db:"vary"`
	Body      []byte    `db:"body"`
	Type      string    `db:"type"`
	StoredAt  time.Time `db:"stored_at"`
}

func toRow(cacheName string, e *asset.Entry) (*entryRow, error) {
	header, err := json.Marshal(e.Header)
	if err != nil {
		return nil, err
	}
	vary, err := json.Marshal(e.Vary)
	if err != nil {
		return nil, err
	}
	body := e.Body
	if body == nil {
		body = []byte{}
	}
	return &entryRow{
		CacheName: cacheName,
		URL:       e.URL,
		Status:    e.Status,
		Header:    string(header),
		Vary:      string(vary),
		Body:      body,
		Type:      string(e.Type),
		StoredAt:  e.StoredAt.UTC(),
	}, nil
}

func (row *entryRow) entry() (*asset.Entry, error) {
	e := &asset.Entry{
		URL:      row.URL,
		Status:   row.Status,
		Body:     row.Body,
		Type:     asset.ResponseType(row.Type),
		StoredAt: row.StoredAt,
	}
	var header http.Header
	if err := json.Unmarshal([]byte(row.Header), &header); err != nil {
		return nil, fmt.Errorf("decode header of %s: %w", row.URL, err)
	}
	e.Header = header
	if err := json.Unmarshal([]byte(row.Vary), &e.Vary); err != nil {
		return nil, fmt.Errorf("decode vary of %s: %w", row.URL, err)
	}
	return e, nil
}

const upsertEntry = `
	INSERT INTO cache_entries (cache_name, url, status, header, vary, body, type, stored_at)
	VALUES (:cache_name, :url, :status, :header, :vary, :body, :type, :stored_at)
	ON CONFLICT (cache_name, url) DO UPDATE SET
		status = excluded.status,
		header = excluded.header,
		vary = excluded.vary,
		body = excluded.body,
		type = excluded.type,
		stored_at = excluded.stored_at`

// CacheStoreRepository is one named store inside CacheStorageRepository.
type CacheStoreRepository struct {
	repo *CacheStorageRepository
	name string
}

func (c *CacheStoreRepository) Name() string { return c.name }

func (c *CacheStoreRepository) Get(ctx context.Context, url string) (*asset.Entry, bool, error) {
	var row entryRow
	query := c.repo.q(`
		SELECT cache_name, url, status, header, vary, body, type, stored_at
		FROM cache_entries
		WHERE cache_name = ? AND url = ?`)
	err := c.repo.db.DB.GetContext(ctx, &row, query, c.name, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get entry %s: %w", url, err)
	}
	e, err := row.entry()
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func (c *CacheStoreRepository) Put(ctx context.Context, entry *asset.Entry) error {
	row, err := toRow(c.name, entry)
	if err != nil {
		return err
	}
	if _, err := c.repo.db.DB.NamedExecContext(ctx, upsertEntry, row); err != nil {
		return fmt.Errorf("failed to put entry %s: %w", entry.URL, err)
	}
	return nil
}

func (c *CacheStoreRepository) PutAll(ctx context.Context, entries []*asset.Entry) error {
	tx, err := c.repo.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		row, err := toRow(c.name, e)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, upsertEntry, row); err != nil {
			return fmt.Errorf("failed to put entry %s: %w", e.URL, err)
		}
	}
	return tx.Commit()
}

func (c *CacheStoreRepository) Delete(ctx context.Context, url string) (bool, error) {
	res, err := c.repo.db.DB.ExecContext(ctx, c.repo.q(`DELETE FROM cache_entries WHERE cache_name = ? AND url = ?`), c.name, url)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry %s: %w", url, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *CacheStoreRepository) Keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	if err := c.repo.db.DB.SelectContext(ctx, &keys, c.repo.q(`SELECT url FROM cache_entries WHERE cache_name = ? ORDER BY url`), c.name); err != nil {
		return nil, fmt.Errorf("failed to list entries of %s: %w", c.name, err)
	}
	return keys, nil
}
