package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"infrar/internal/adapter"
	"infrar/internal/diag"
	"infrar/internal/registry"
	"infrar/internal/source"
)

// Current schema version - increment when TransformPayload format changes
const diskCacheSchemaVersion uint16 = 1

// Digest identifies one transform input: file content, provider rules and
// the agnostic schema version, hashed together.
type Digest [32]byte

// DiskCache хранит результаты трансформации по Digest на диске.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// DiagPayload is the serializable form of one diagnostic. Spans are stored
// as raw offsets; the FileID is rebound on load.
type DiagPayload struct {
	Severity uint8
	Code     uint16
	Message  string
	Start    uint32
	End      uint32
}

// TransformPayload stores one cached per-file transform result.
type TransformPayload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Provider string
	Output   []byte
	Changed  bool
	Sites    int
	UsedOps  []string
	Diags    []DiagPayload
}

// OpenDiskCache initializes and returns a disk cache at the standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// openDiskCacheAt is the test hook: a cache rooted at an explicit directory.
func openDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// TransformKey derives the cache key for one file under one provider.
// Any change to the content, the provider rules, or the agnostic schema
// produces a different key.
func TransformKey(contentHash [32]byte, a *adapter.ProviderAdapter) Digest {
	h := sha256.New()
	h.Write(contentHash[:])
	adapterHash := a.Hash()
	h.Write(adapterHash[:])
	h.Write([]byte(a.ID))
	h.Write([]byte(registry.SchemaVersion))

	var key Digest
	copy(key[:], h.Sum(nil))
	return key
}

func (c *DiskCache) pathFor(key Digest) string {
	hexKey := hex.EncodeToString(key[:])
	// Подкаталог по провайдеру не нужен: провайдер уже в ключе.
	return filepath.Join(c.dir, "files", hexKey+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key Digest, payload *TransformPayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(payload); err != nil {
		// Дескриптор закрываем до удаления, иначе файл останется.
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	// Атомарная замена
	if err := os.Rename(f.Name(), p); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return nil
}

// Get reads and deserializes a payload from the disk cache. A payload with
// a stale schema counts as a miss.
func (c *DiskCache) Get(key Digest, out *TransformPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	p := c.pathFor(key)
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			panic(closeErr)
		}
	}()
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(out); err != nil {
		return false, err
	}
	if out.Schema != diskCacheSchemaVersion {
		return false, nil
	}
	return true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}

// resultToPayload converts a FileResult for caching.
func resultToPayload(res *FileResult, provider string) *TransformPayload {
	payload := &TransformPayload{
		Schema:   diskCacheSchemaVersion,
		Provider: provider,
		Output:   res.Output,
		Changed:  res.Changed,
		Sites:    res.Sites,
		UsedOps:  res.UsedOps,
	}
	for _, d := range res.Bag.Items() {
		payload.Diags = append(payload.Diags, DiagPayload{
			Severity: uint8(d.Severity),
			Code:     uint16(d.Code),
			Message:  d.Message,
			Start:    d.Primary.Start,
			End:      d.Primary.End,
		})
	}
	return payload
}

// payloadToResult restores a FileResult, rebinding spans to the current
// FileID.
func payloadToResult(payload *TransformPayload, path string, fileID source.FileID, maxDiagnostics int) *FileResult {
	res := &FileResult{
		Path:    path,
		FileID:  fileID,
		Bag:     diag.NewBag(maxDiagnostics),
		Output:  payload.Output,
		Changed: payload.Changed,
		Sites:   payload.Sites,
		UsedOps: payload.UsedOps,
		Cached:  true,
	}
	for _, d := range payload.Diags {
		res.Bag.Add(diag.New(
			diag.Severity(d.Severity),
			diag.Code(d.Code),
			source.Span{File: fileID, Start: d.Start, End: d.End},
			d.Message,
		))
	}
	return res
}
