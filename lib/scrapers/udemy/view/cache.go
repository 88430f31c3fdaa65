package view

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrNotCached = errors.New("not cached")

// CourseList is the memoized result of a full listing crawl. It stays valid
// for exactly as long as the freshly computed page count matches PagesCount,
// there is no partial reconciliation.
type CourseList struct {
	PagesCount int      `json:"pages_count"`
	Urls       []string `json:"urls"`
}

type ListCache interface {
	Load() (CourseList, error)
	Save(list CourseList) error
}

type FileListCache struct {
	Path string
}

func (c FileListCache) Load() (CourseList, error) {
	contents, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return CourseList{}, ErrNotCached
	}
	if err != nil {
		return CourseList{}, err
	}
	var list CourseList
	err = json.Unmarshal(contents, &list)
	if err != nil {
		return CourseList{}, err
	}
	return list, nil
}

func (c FileListCache) Save(list CourseList) error {
	serialized, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.Path + ".tmp"
	err = os.WriteFile(tmp, serialized, 0644)
	if err != nil {
		return err
	}
	return os.Rename(tmp, c.Path)
}

// PageCache keeps the raw page text of course detail pages that were fetched
// successfully once, so a run interrupted between fetch and record write can
// resume without touching the network.
type PageCache interface {
	Get(ctx context.Context, ref string) ([]byte, error)
	Set(ctx context.Context, ref string, contents []byte) error
}

func cacheKey(ref string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(ref))
}

type SqlitePageCache struct {
	db *sql.DB
}

func NewPageCache(db *sql.DB) SqlitePageCache {
	return SqlitePageCache{db: db}
}

func (c SqlitePageCache) Get(ctx context.Context, ref string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "pagecache:Get")
	defer span.End()

	key := cacheKey(ref)
	span.SetAttributes(attribute.KeyValue{
		Key:   "cache_key",
		Value: attribute.StringValue(key),
	})

	var contents []byte
	err := c.db.QueryRowContext(
		ctx,
		"SELECT contents FROM webpage_cache WHERE key = ?",
		key,
	).Scan(&contents)
	if err == sql.ErrNoRows {
		return nil, ErrNotCached
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cached webpage")
		return nil, err
	}

	span.SetStatus(codes.Ok, "CACHE HIT")
	return contents, nil
}

func (c SqlitePageCache) Set(ctx context.Context, ref string, contents []byte) error {
	ctx, span := tracer.Start(ctx, "pagecache:Set")
	defer span.End()

	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO webpage_cache (key, url, contents, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET contents = excluded.contents, fetched_at = excluded.fetched_at`,
		cacheKey(ref), ref, contents, time.Now().Unix(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to cache webpage")
		return err
	}
	return nil
}
