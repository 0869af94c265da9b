package driver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"infrar/internal/adapter"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	cache, err := openDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := Digest{1, 2, 3}
	in := &TransformPayload{
		Schema:   diskCacheSchemaVersion,
		Provider: "aws",
		Output:   []byte("package main\n"),
		Changed:  true,
		Sites:    2,
		UsedOps:  []string{"delete", "upload"},
		Diags: []DiagPayload{
			{Severity: 1, Code: 1100, Message: "opaque request", Start: 10, End: 20},
		},
	}
	if err := cache.Put(key, in); err != nil {
		t.Fatal(err)
	}

	var out TransformPayload
	hit, err := cache.Get(key, &out)
	if err != nil || !hit {
		t.Fatalf("hit=%v err=%v", hit, err)
	}
	if out.Provider != "aws" || out.Sites != 2 || string(out.Output) != "package main\n" {
		t.Errorf("payload = %+v", out)
	}
	if len(out.Diags) != 1 || out.Diags[0].Message != "opaque request" {
		t.Errorf("diags = %+v", out.Diags)
	}
}

func TestDiskCacheMissOnUnknownKey(t *testing.T) {
	cache, err := openDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var out TransformPayload
	hit, err := cache.Get(Digest{9, 9, 9}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("unknown key must miss")
	}
}

func TestDiskCacheStaleSchemaMisses(t *testing.T) {
	cache, err := openDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Digest{4}
	if err := cache.Put(key, &TransformPayload{Schema: diskCacheSchemaVersion + 1}); err != nil {
		t.Fatal(err)
	}
	var out TransformPayload
	hit, err := cache.Get(key, &out)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("stale schema must count as a miss")
	}
}

func TestTransformKeyVariesByProvider(t *testing.T) {
	aws, err := adapter.For("aws")
	if err != nil {
		t.Fatal(err)
	}
	gcp, err := adapter.For("gcp")
	if err != nil {
		t.Fatal(err)
	}

	contentHash := [32]byte{42}
	if TransformKey(contentHash, aws) == TransformKey(contentHash, gcp) {
		t.Error("keys for different providers must differ")
	}
	if TransformKey(contentHash, aws) != TransformKey(contentHash, aws) {
		t.Error("key must be deterministic")
	}
	if TransformKey([32]byte{43}, aws) == TransformKey(contentHash, aws) {
		t.Error("keys for different content must differ")
	}
}

func TestTransformDirUsesCache(t *testing.T) {
	cache, err := openDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dir := writeTree(t, map[string]string{"main.go": uploadSrc})
	opts := Options{Provider: "aws", MaxDiagnostics: 100, Cache: cache}

	first, err := TransformDir(context.Background(), dir, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.Files[0].Cached {
		t.Fatal("first run must not hit the cache")
	}

	second, err := TransformDir(context.Background(), dir, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Files[0].Cached {
		t.Fatal("second run must hit the cache")
	}
	if string(second.Files[0].Output) != string(first.Files[0].Output) {
		t.Error("cached output differs from computed output")
	}
	if second.Files[0].Sites != first.Files[0].Sites {
		t.Error("cached site count differs")
	}
}

func TestNilCacheIsInert(t *testing.T) {
	var c *DiskCache
	if err := c.Put(Digest{1}, &TransformPayload{}); err != nil {
		t.Fatal(err)
	}
	var out TransformPayload
	hit, err := c.Get(Digest{1}, &out)
	if err != nil || hit {
		t.Fatalf("nil cache must be inert: hit=%v err=%v", hit, err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatal(err)
	}
}

func TestDiskCachePutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	cache, err := openDiskCacheAt(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(Digest{7}, &TransformPayload{Schema: diskCacheSchemaVersion}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want the single cache file", len(entries))
	}
}

func TestDiskCachePutErrorLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	cache, err := openDiskCacheAt(dir)
	if err != nil {
		t.Fatal(err)
	}
	filesDir := filepath.Join(dir, "files")
	if err := os.MkdirAll(filesDir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(filesDir, 0o755) })

	if err := cache.Put(Digest{8}, &TransformPayload{Schema: diskCacheSchemaVersion}); err == nil {
		t.Skip("running as root: read-only directory does not fail writes")
	}
	entries, err := os.ReadDir(filesDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("failed Put must leave nothing behind, got %d entries", len(entries))
	}
}
