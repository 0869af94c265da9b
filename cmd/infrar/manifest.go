package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"infrar/internal/diag"
	"infrar/internal/registry"
	"infrar/internal/source"
)

const noInfrarTomlMessage = "no infrar.toml found\nplease specify the provider explicitly, e.g.:\n  infrar transform --provider aws path/to/src"

type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
}

type projectConfig struct {
	Project   projectSection   `toml:"project"`
	Transform transformSection `toml:"transform"`
}

type projectSection struct {
	Name     string `toml:"name"`
	Provider string `toml:"provider"`
	Source   string `toml:"source"`
}

type transformSection struct {
	Schema string `toml:"schema"`
	Jobs   int    `toml:"jobs"`
	Cache  bool   `toml:"cache"`
}

func findInfrarToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "infrar.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadProjectManifest ищет и разбирает infrar.toml. Проблемы содержимого
// манифеста приходят как Configuration-диагностики, ошибки файловой
// системы — как обычный error.
func loadProjectManifest(startDir string) (*projectManifest, bool, []diag.Diagnostic, error) {
	manifestPath, ok, err := findInfrarToml(startDir)
	if err != nil || !ok {
		return nil, ok, nil, err
	}
	cfg, diags := loadProjectConfig(manifestPath)
	if len(diags) > 0 {
		return nil, true, diags, nil
	}
	return &projectManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil, nil
}

func loadProjectConfig(path string) (projectConfig, []diag.Diagnostic) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return projectConfig{}, []diag.Diagnostic{diag.NewError(diag.ConfigBadManifest, source.Span{},
			fmt.Sprintf("%s: failed to parse TOML: %v", path, err))}
	}

	var diags []diag.Diagnostic
	badManifest := func(format string, args ...any) {
		diags = append(diags, diag.NewError(diag.ConfigBadManifest, source.Span{},
			fmt.Sprintf(format, args...)))
	}
	if !meta.IsDefined("project") {
		badManifest("%s: missing [project]", path)
	} else {
		if !meta.IsDefined("project", "name") || strings.TrimSpace(cfg.Project.Name) == "" {
			badManifest("%s: missing [project].name", path)
		}
		if !meta.IsDefined("project", "provider") || strings.TrimSpace(cfg.Project.Provider) == "" {
			badManifest("%s: missing [project].provider", path)
		}
	}
	if meta.IsDefined("transform", "schema") {
		schema := strings.TrimSpace(cfg.Transform.Schema)
		if schema != registry.SchemaVersion {
			diags = append(diags, diag.NewError(diag.ConfigSchemaMismatch, source.Span{},
				fmt.Sprintf("%s: schema %q is not supported (tool speaks %q)",
					path, schema, registry.SchemaVersion)))
		}
	}
	if len(diags) > 0 {
		return projectConfig{}, diags
	}
	if !meta.IsDefined("transform", "cache") {
		// Кэш включён по умолчанию.
		cfg.Transform.Cache = true
	}
	return cfg, nil
}

// resolveSourceDir returns the directory the manifest points at, defaulting
// to the manifest root.
func (m *projectManifest) resolveSourceDir() string {
	src := strings.TrimSpace(m.Config.Project.Source)
	if src == "" {
		return m.Root
	}
	if filepath.IsAbs(src) {
		return src
	}
	return filepath.Join(m.Root, filepath.FromSlash(src))
}
