package driver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"infrar/internal/diag"
)

const uploadSrc = `package main

import (
	"fmt"

	"infrar/storage"
)

func main() {
	err := storage.Upload(storage.UploadRequest{Bucket: "backups", Source: "dump.sql", Destination: "2026/dump.sql"})
	if err != nil {
		fmt.Println("upload failed:", err)
	}
}
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func transformDir(t *testing.T, dir, provider string) *RunResult {
	t.Helper()
	run, err := TransformDir(context.Background(), dir, Options{
		Provider:       provider,
		MaxDiagnostics: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	return run
}

func TestTransformUploadEndToEnd(t *testing.T) {
	dir := writeTree(t, map[string]string{"main.go": uploadSrc})
	run := transformDir(t, dir, "aws")

	if run.Failed() {
		t.Fatalf("run failed: %+v %+v", run.ConfigBag.Items(), run.Files)
	}
	if len(run.Files) != 1 {
		t.Fatalf("files = %d", len(run.Files))
	}
	res := run.Files[0]
	if !res.Changed || res.Sites != 1 {
		t.Fatalf("changed=%v sites=%d", res.Changed, res.Sites)
	}

	out := string(res.Output)
	for _, want := range []string{
		`infrarS3Upload(infrarS3, "dump.sql", "backups", "2026/dump.sql")`,
		"func infrarNewS3Client()",
		"func infrarS3Upload(client *s3.Client,",
		`"github.com/aws/aws-sdk-go-v2/service/s3"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "infrar/storage") {
		t.Errorf("agnostic import must be pruned once no references remain:\n%s", out)
	}
	if !strings.Contains(out, `fmt.Println("upload failed:", err)`) {
		t.Errorf("untouched code must survive byte-for-byte:\n%s", out)
	}
}

func TestTransformIdempotent(t *testing.T) {
	dir := writeTree(t, map[string]string{"main.go": uploadSrc})
	first := transformDir(t, dir, "aws")
	if first.Failed() {
		t.Fatalf("first run failed")
	}

	dir2 := writeTree(t, map[string]string{"main.go": string(first.Files[0].Output)})
	second := transformDir(t, dir2, "aws")
	if second.Failed() {
		t.Fatalf("second run failed: %+v", second.Files[0].Bag.Items())
	}
	if second.Files[0].Changed {
		t.Error("already transformed file must pass through unchanged")
	}
	if string(second.Files[0].Output) != string(first.Files[0].Output) {
		t.Error("transform must be a fixed point on its own output")
	}
}

func TestTransformUnknownProviderIsFatal(t *testing.T) {
	dir := writeTree(t, map[string]string{"main.go": uploadSrc})
	run := transformDir(t, dir, "digitalocean")

	if !run.ConfigBag.HasErrors() {
		t.Fatal("unknown provider must produce a config error")
	}
	if run.ConfigBag.Items()[0].Code != diag.ConfigUnknownProvider {
		t.Errorf("code = %v", run.ConfigBag.Items()[0].Code)
	}
	if len(run.Files) != 0 {
		t.Error("config errors must stop the run before any file is processed")
	}
}

func TestTransformFileWithoutCallsPassesThrough(t *testing.T) {
	src := "package util\n\nfunc Add(a, b int) int { return a + b }\n"
	dir := writeTree(t, map[string]string{"util.go": src})
	run := transformDir(t, dir, "gcp")

	if run.Failed() {
		t.Fatal("run failed")
	}
	res := run.Files[0]
	if res.Changed || string(res.Output) != src {
		t.Error("file without agnostic calls must pass through unchanged")
	}
}

func TestTransformFailedFileIsIsolated(t *testing.T) {
	bad := `package main

import "infrar/storage"

func main() {
	_ = storage.Upload(storage.UploadRequest{Bucket: "b", Region: "eu", Source: "s", Destination: "d"})
}
`
	dir := writeTree(t, map[string]string{
		"bad.go":  bad,
		"good.go": uploadSrc,
	})
	run := transformDir(t, dir, "azure")

	if len(run.Files) != 2 {
		t.Fatalf("files = %d", len(run.Files))
	}
	var badRes, goodRes *FileResult
	for i := range run.Files {
		switch filepath.Base(run.Files[i].Path) {
		case "bad.go":
			badRes = &run.Files[i]
		case "good.go":
			goodRes = &run.Files[i]
		}
	}
	if badRes == nil || goodRes == nil {
		t.Fatal("missing results")
	}

	if !badRes.Failed() || badRes.Output != nil {
		t.Error("failed file must produce no output")
	}
	if goodRes.Failed() || !goodRes.Changed {
		t.Errorf("one failed file must not block the rest: %+v", goodRes.Bag.Items())
	}
	if !strings.Contains(string(goodRes.Output), "infrarBlobUpload") {
		t.Error("good file not rewritten for azure")
	}
}

func TestTransformWarningsKeepAgnosticImport(t *testing.T) {
	src := `package main

import "infrar/storage"

func run(req storage.DeleteRequest) error {
	if err := storage.Delete(req); err != nil {
		return err
	}
	return storage.Delete(storage.DeleteRequest{Bucket: "b", Path: "p"})
}
`
	dir := writeTree(t, map[string]string{"main.go": src})
	run := transformDir(t, dir, "gcp")

	res := run.Files[0]
	if res.Failed() {
		t.Fatalf("warnings must not fail the file: %+v", res.Bag.Items())
	}
	if !res.Bag.HasWarnings() {
		t.Error("opaque request must produce a warning")
	}
	out := string(res.Output)
	if !strings.Contains(out, "infrarGCSDelete(infrarGCS,") {
		t.Errorf("literal call must still be rewritten:\n%s", out)
	}
	if !strings.Contains(out, `"infrar/storage"`) {
		t.Errorf("import must be kept while the passed-through call references it:\n%s", out)
	}
}

func TestTransformSkipsUnderscoreDirs(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.go":          uploadSrc,
		"_vendor/x.go":     "package x\n",
		".hidden/y.go":     "package y\n",
		"vendor/z/z.go":    "package z\n",
		"nested/helper.go": "package nested\n",
	})
	run := transformDir(t, dir, "aws")

	if len(run.Files) != 2 {
		paths := make([]string, 0, len(run.Files))
		for _, f := range run.Files {
			paths = append(paths, f.Path)
		}
		t.Errorf("files = %v", paths)
	}
}

func TestTransformPreservesCRLF(t *testing.T) {
	src := strings.ReplaceAll(uploadSrc, "\n", "\r\n")
	dir := writeTree(t, map[string]string{"main.go": src})
	run := transformDir(t, dir, "aws")

	if run.Failed() {
		t.Fatalf("run failed: %+v", run.Files[0].Bag.Items())
	}
	out := string(run.Files[0].Output)
	if !strings.Contains(out, "infrarS3Upload") {
		t.Fatalf("call not rewritten:\n%s", out)
	}
	for _, keep := range []string{
		"package main\r\n",
		"\tif err != nil {\r\n",
		"\t\tfmt.Println(\"upload failed:\", err)\r\n",
	} {
		if !strings.Contains(out, keep) {
			t.Errorf("untouched line lost its \\r\\n ending: %q\n%s", keep, out)
		}
	}
}

func TestTransformPreservesBOM(t *testing.T) {
	src := "\xEF\xBB\xBF" + uploadSrc
	dir := writeTree(t, map[string]string{"main.go": src})
	run := transformDir(t, dir, "aws")

	if run.Failed() {
		t.Fatalf("run failed: %+v", run.Files[0].Bag.Items())
	}
	out := run.Files[0].Output
	if len(out) < 3 || out[0] != 0xEF || out[1] != 0xBB || out[2] != 0xBF {
		t.Errorf("BOM must survive the rewrite, got prefix %q", out[:3])
	}
	if !strings.Contains(string(out), "infrarS3Upload") {
		t.Errorf("call not rewritten:\n%s", out)
	}
}

func TestTransformCRLFPassThroughIsByteExact(t *testing.T) {
	src := "package util\r\n\r\nfunc Add(a, b int) int { return a + b }\r\n"
	dir := writeTree(t, map[string]string{"util.go": src})
	run := transformDir(t, dir, "aws")

	if run.Failed() {
		t.Fatal("run failed")
	}
	res := run.Files[0]
	if res.Changed || string(res.Output) != src {
		t.Errorf("pass-through must return the on-disk bytes, got %q", res.Output)
	}
}
