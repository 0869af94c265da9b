package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"infrar/internal/adapter"
	"infrar/internal/registry"
)

var initProvider string

func init() {
	initCmd.Flags().StringVar(&initProvider, "provider", "aws", "default provider for the manifest")
}

var initCmd = &cobra.Command{
	Use:   "init [path|name]",
	Short: "Initialize a new infrar project",
	Long: `Initialize a new infrar project by creating a project manifest (infrar.toml)
and a starter entry point (main.go) that uses the agnostic storage surface.
If [path|name] is omitted, initializes the current directory. If a
non-existing name is provided, a directory will be created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := adapter.For(initProvider); err != nil {
		return err
	}

	// Resolve target directory
	var target string
	if len(args) == 0 || args[0] == "." {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		target = wd
	} else {
		arg := args[0]
		if !filepath.IsAbs(arg) {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			target = filepath.Join(wd, arg)
		} else {
			target = arg
		}
	}

	// Ensure directory exists
	if st, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", target, err)
			}
		} else {
			return err
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	// Determine project name from directory basename
	name := strings.TrimSpace(filepath.Base(target))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "infrar-project"
	}

	manifestPath := filepath.Join(target, "infrar.toml")
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("project already initialized: %s exists", manifestPath)
	}

	manifest := buildDefaultManifest(name, initProvider)
	if err := os.WriteFile(manifestPath, []byte(manifest), os.FileMode(0o600)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	createdMain := false
	mainPath := filepath.Join(target, "main.go")
	if _, err := os.Stat(mainPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(mainPath, []byte(starterMain), os.FileMode(0o600)); err != nil {
			return fmt.Errorf("failed to write main.go: %w", err)
		}
		createdMain = true
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", manifestPath)
		if createdMain {
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", mainPath)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run `infrar transform` before deploying to %s\n", initProvider)
	}
	return nil
}

func buildDefaultManifest(name, provider string) string {
	return fmt.Sprintf(`[project]
name = %q
provider = %q
source = "."

[transform]
schema = %q
cache = true
`, name, provider, registry.SchemaVersion)
}

const starterMain = `package main

import (
	"fmt"

	"infrar/storage"
)

func main() {
	err := storage.Upload(storage.UploadRequest{
		Bucket:      "my-bucket",
		Source:      "report.csv",
		Destination: "reports/report.csv",
	})
	if err != nil {
		fmt.Println("upload failed:", err)
	}
}
`
