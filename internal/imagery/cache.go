package imagery

import (
	"encoding/json"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// lockStripes bounds the number of per-key mutexes. Striping gives mutual
// exclusion per cache key without a global lock serializing unrelated
// fetches in a batch run.
const lockStripes = 64

// DiskCache is a content-addressed on-disk store for imagery artifacts.
// Entries are keyed by Request.CacheKey and stored as a raster file plus a
// JSON provenance sidecar. Safe for concurrent use across goroutines and
// across unrelated analysis runs sharing the same directory.
type DiskCache struct {
	dir    string
	maxAge time.Duration // 0 disables age-based expiry
	locks  [lockStripes]sync.Mutex
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// NewDiskCache creates the cache directory if needed. maxAge of 0 means
// entries never expire.
func NewDiskCache(dir string, maxAge time.Duration) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "imagery: create cache dir %s", dir)
	}
	return &DiskCache{dir: dir, maxAge: maxAge}, nil
}

// Lookup returns the cached artifact for the request, or ok=false on a
// miss. Expired entries are treated as misses and removed. Lookup never
// performs network I/O.
func (c *DiskCache) Lookup(req Request) (*Artifact, bool, error) {
	key := req.CacheKey()
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	art, err := c.readEntry(key)
	if err != nil {
		c.misses.Add(1)
		return nil, false, err
	}
	if art == nil {
		c.misses.Add(1)
		return nil, false, nil
	}

	if c.maxAge > 0 && time.Since(art.Provenance.FetchedAt) > c.maxAge {
		c.removeEntry(key)
		c.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	return art, true, nil
}

// Store writes the raster payload and its provenance under the request's
// key and returns a handle to the stored artifact. The payload file is
// written to a temp name and renamed so a cancelled run never leaves a
// partial artifact under a complete-looking key.
func (c *DiskCache) Store(req Request, prov Provenance, data []byte) (*Artifact, error) {
	key := req.CacheKey()
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	prov.ByteSize = int64(len(data))
	if prov.FetchedAt.IsZero() {
		prov.FetchedAt = time.Now().UTC()
	}

	rasterPath := c.rasterPath(key)
	tmp := rasterPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, eris.Wrapf(err, "imagery: write cache payload %s", key)
	}
	if err := os.Rename(tmp, rasterPath); err != nil {
		_ = os.Remove(tmp)
		return nil, eris.Wrapf(err, "imagery: finalize cache payload %s", key)
	}

	sidecar, err := json.Marshal(prov)
	if err != nil {
		return nil, eris.Wrap(err, "imagery: marshal provenance")
	}
	if err := os.WriteFile(c.sidecarPath(key), sidecar, 0o644); err != nil {
		return nil, eris.Wrapf(err, "imagery: write cache sidecar %s", key)
	}

	zap.L().Debug("imagery: cached artifact",
		zap.String("key", key),
		zap.String("layer", string(prov.Layer)),
		zap.Int64("bytes", prov.ByteSize),
	)

	return &Artifact{Provenance: prov, Path: rasterPath}, nil
}

// Stats returns hit/miss counters accumulated since construction.
func (c *DiskCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *DiskCache) readEntry(key string) (*Artifact, error) {
	sidecar, err := os.ReadFile(c.sidecarPath(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "imagery: read cache sidecar %s", key)
	}

	var prov Provenance
	if err := json.Unmarshal(sidecar, &prov); err != nil {
		// Corrupt sidecar: drop the entry and report a miss.
		zap.L().Warn("imagery: dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		c.removeEntry(key)
		return nil, nil
	}

	rasterPath := c.rasterPath(key)
	if _, err := os.Stat(rasterPath); err != nil {
		c.removeEntry(key)
		return nil, nil
	}

	return &Artifact{Provenance: prov, Path: rasterPath}, nil
}

func (c *DiskCache) removeEntry(key string) {
	_ = os.Remove(c.rasterPath(key))
	_ = os.Remove(c.sidecarPath(key))
}

func (c *DiskCache) rasterPath(key string) string {
	return filepath.Join(c.dir, key+".img")
}

func (c *DiskCache) sidecarPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *DiskCache) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &c.locks[h.Sum32()%lockStripes]
}
