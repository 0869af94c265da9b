package inject

import (
	"bytes"
	"strings"
	"testing"

	"infrar/internal/adapter"
)

const rewritten = `package main

import (
	"fmt"
)

func main() {
	err := infrarS3Upload(infrarS3, "local.txt", "b", "remote.txt")
	fmt.Println(err)
}
`

func TestInjectAddsPreamble(t *testing.T) {
	a, err := adapter.For("aws")
	if err != nil {
		t.Fatal(err)
	}
	out, err := Inject([]byte(rewritten), a, []string{"upload"})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`awsconfig "github.com/aws/aws-sdk-go-v2/config"`,
		`"github.com/aws/aws-sdk-go-v2/service/s3"`,
		"var infrarS3 = infrarNewS3Client()",
		"func infrarS3Upload(client *s3.Client,",
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(string(out), "infrarS3Download") {
		t.Error("support for unused operations must not be injected")
	}
}

func TestInjectIdempotent(t *testing.T) {
	a, err := adapter.For("aws")
	if err != nil {
		t.Fatal(err)
	}
	once, err := Inject([]byte(rewritten), a, []string{"upload"})
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Inject(once, a, []string{"upload"})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(once, twice) {
		t.Errorf("second injection changed the file:\n--- once ---\n%s\n--- twice ---\n%s", once, twice)
	}
}

func TestInjectSharedSupportEmittedOnce(t *testing.T) {
	a, err := adapter.For("gcp")
	if err != nil {
		t.Fatal(err)
	}
	out, err := Inject([]byte(rewritten), a, []string{"upload", "download"})
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(out), "func infrarNewGCSClient()"); n != 1 {
		t.Errorf("client ctor emitted %d times", n)
	}
	if n := strings.Count(string(out), `gcs "cloud.google.com/go/storage"`); n != 1 {
		t.Errorf("gcs import emitted %d times", n)
	}
}

func TestInjectNoOpsNoChange(t *testing.T) {
	a, err := adapter.For("azure")
	if err != nil {
		t.Fatal(err)
	}
	out, err := Inject([]byte(rewritten), a, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte(rewritten)) {
		t.Error("injection with no used operations must be a no-op")
	}
}

func TestInjectWithoutExistingImports(t *testing.T) {
	src := "package main\n\nfunc main() {\n\t_ = infrarS3Delete(infrarS3, \"b\", \"p\")\n}\n"
	a, err := adapter.For("aws")
	if err != nil {
		t.Fatal(err)
	}
	out, err := Inject([]byte(src), a, []string{"delete"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "package main\n\nimport (") {
		t.Errorf("import block not placed after package clause:\n%s", out)
	}
}

func TestPruneRemovesUnreferencedImport(t *testing.T) {
	src := `package main

import (
	"fmt"

	"infrar/storage"
)

func main() {
	fmt.Println("done")
}
`
	out, err := PruneAgnosticImport([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "infrar/storage") {
		t.Errorf("unreferenced import survived:\n%s", out)
	}
	if strings.Contains(string(out), "\n\n)") {
		t.Errorf("removal left a blank hole:\n%s", out)
	}
}

func TestPruneKeepsReferencedImport(t *testing.T) {
	src := `package main

import "infrar/storage"

func run(req storage.DeleteRequest) {
	_ = storage.Delete(req)
}
`
	out, err := PruneAgnosticImport([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "infrar/storage") {
		t.Error("referenced import must be kept")
	}
}

func TestPruneRemovesSoleImportDecl(t *testing.T) {
	src := `package main

import "infrar/storage"

func main() {}
`
	out, err := PruneAgnosticImport([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "import") {
		t.Errorf("sole import decl must be removed entirely:\n%s", out)
	}
}

func TestPruneKeepsDotImport(t *testing.T) {
	src := `package main

import . "infrar/storage"

func main() {}
`
	out, err := PruneAgnosticImport([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `. "infrar/storage"`) {
		t.Error("dot import must be kept")
	}
}
