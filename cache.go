package lookdev

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

// CacheKey identifies one baked channel. A hit requires every field to
// match; any graph edit, channel set change or resolution change misses.
type CacheKey struct {
	Material   MaterialID
	GraphHash  string
	ChannelSet string
	Channel    Channel
	Resolution int
}

// BakedTexture is the persisted form of one bake: encoded image bytes in
// a content-addressed blob plus the metadata to reuse it.
type BakedTexture struct {
	Material   MaterialID
	Channel    Channel
	Width      int
	Height     int
	ColorSpace ColorSpace
	Format     ImageFormat
	GraphHash  string
	BlobSHA    string
	BlobPath   string
	Size       int64
}

// MaterialCache is a persistent bake cache: a sqlite index over
// content-addressed blob files. Safe for concurrent use; the index
// serializes through sqlite, blob writes go through temp files and
// rename.
type MaterialCache struct {
	db     *sql.DB
	dir    string
	hits   atomic.Int64
	misses atomic.Int64
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS bakes (
	material_id TEXT    NOT NULL,
	graph_hash  TEXT    NOT NULL,
	channel_set TEXT    NOT NULL,
	channel     TEXT    NOT NULL,
	resolution  INTEGER NOT NULL,
	width       INTEGER NOT NULL,
	height      INTEGER NOT NULL,
	color_space TEXT    NOT NULL,
	format      TEXT    NOT NULL,
	blob_sha    TEXT    NOT NULL,
	size        INTEGER NOT NULL,
	PRIMARY KEY (material_id, graph_hash, channel_set, channel, resolution)
);`

// OpenCache opens or creates a cache directory. The directory holds
// cache.db and a blobs/ subdirectory.
func OpenCache(dir string) (*MaterialCache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0o755); err != nil {
		return nil, &CacheIOError{Op: "create cache dir", Err: err}
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, &CacheIOError{Op: "open index", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &CacheIOError{Op: "open index", Err: err}
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, &CacheIOError{Op: "configure index", Err: err}
		}
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, &CacheIOError{Op: "migrate index", Err: err}
	}
	return &MaterialCache{db: db, dir: dir}, nil
}

func (c *MaterialCache) Close() error {
	return c.db.Close()
}

// Lookup finds a cached bake under an exact key. A missing row is a plain
// miss. A readable row whose blob went missing counts as a miss and also
// returns a CacheIOError so the caller can log it; the caller bakes
// either way.
func (c *MaterialCache) Lookup(key CacheKey) (*BakedTexture, bool, error) {
	row := c.db.QueryRow(`
		SELECT width, height, color_space, format, blob_sha, size
		FROM bakes
		WHERE material_id = ? AND graph_hash = ? AND channel_set = ? AND channel = ? AND resolution = ?`,
		string(key.Material), key.GraphHash, key.ChannelSet, string(key.Channel), key.Resolution,
	)
	var (
		width, height int
		colorSpace    string
		format        string
		blobSHA       string
		size          int64
	)
	err := row.Scan(&width, &height, &colorSpace, &format, &blobSHA, &size)
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.misses.Add(1)
		return nil, false, &CacheIOError{Op: "lookup", Err: err}
	}
	blobPath := c.blobPath(blobSHA, ImageFormat(format))
	if _, err := os.Stat(blobPath); err != nil {
		c.misses.Add(1)
		return nil, false, &CacheIOError{Op: "stat blob", Err: err}
	}
	c.hits.Add(1)
	return &BakedTexture{
		Material:   key.Material,
		Channel:    key.Channel,
		Width:      width,
		Height:     height,
		ColorSpace: ColorSpace(colorSpace),
		Format:     ImageFormat(format),
		GraphHash:  key.GraphHash,
		BlobSHA:    blobSHA,
		BlobPath:   blobPath,
		Size:       size,
	}, true, nil
}

// Store persists one encoded bake. The blob is content-addressed by the
// sha256 of the encoded bytes, so identical bakes share storage.
func (c *MaterialCache) Store(key CacheKey, width, height int, colorSpace ColorSpace, format ImageFormat, data []byte) (*BakedTexture, error) {
	sum := sha256.Sum256(data)
	blobSHA := hex.EncodeToString(sum[:])
	blobPath := c.blobPath(blobSHA, format)

	if _, err := os.Stat(blobPath); err != nil {
		if err := writeFileAtomic(blobPath, data); err != nil {
			return nil, &CacheIOError{Op: "write blob", Err: err}
		}
	}

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO bakes
		(material_id, graph_hash, channel_set, channel, resolution, width, height, color_space, format, blob_sha, size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(key.Material), key.GraphHash, key.ChannelSet, string(key.Channel), key.Resolution,
		width, height, string(colorSpace), string(format), blobSHA, int64(len(data)),
	)
	if err != nil {
		return nil, &CacheIOError{Op: "index blob", Err: err}
	}
	return &BakedTexture{
		Material:   key.Material,
		Channel:    key.Channel,
		Width:      width,
		Height:     height,
		ColorSpace: colorSpace,
		Format:     format,
		GraphHash:  key.GraphHash,
		BlobSHA:    blobSHA,
		BlobPath:   blobPath,
		Size:       int64(len(data)),
	}, nil
}

// Stats returns hit and miss counters for run reporting.
func (c *MaterialCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *MaterialCache) blobPath(sha string, format ImageFormat) string {
	return filepath.Join(c.dir, "blobs", fmt.Sprintf("%s.%s", sha, format.Ext()))
}

// writeFileAtomic writes through a temp file in the destination directory
// and renames it into place. Concurrent writers of the same
// content-addressed path race harmlessly: both rename identical bytes.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
