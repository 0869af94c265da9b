package adapter

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed providers/*.toml
var providerFS embed.FS

var (
	loadOnce sync.Once
	loaded   map[string]*ProviderAdapter
	loadErr  error
)

func loadAll() (map[string]*ProviderAdapter, error) {
	entries, err := providerFS.ReadDir("providers")
	if err != nil {
		return nil, fmt.Errorf("read embedded providers: %w", err)
	}

	adapters := make(map[string]*ProviderAdapter, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		raw, err := providerFS.ReadFile("providers/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		var a ProviderAdapter
		meta, err := toml.Decode(string(raw), &a)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", entry.Name(), err)
		}
		if !meta.IsDefined("id") || strings.TrimSpace(a.ID) == "" {
			return nil, fmt.Errorf("%s: missing id", entry.Name())
		}
		if !meta.IsDefined("ops") {
			return nil, fmt.Errorf("%s: missing [ops]", entry.Name())
		}
		if _, dup := adapters[a.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate provider id %q", entry.Name(), a.ID)
		}

		for name, tmpl := range a.Ops {
			tmpl.args = make([]ArgRef, 0, len(tmpl.RawArgs))
			for _, rawArg := range tmpl.RawArgs {
				tmpl.args = append(tmpl.args, parseArgRef(rawArg))
			}
			a.Ops[name] = tmpl
		}

		a.hash = sha256.Sum256(raw)
		adapters[a.ID] = &a
	}
	return adapters, nil
}

func all() (map[string]*ProviderAdapter, error) {
	loadOnce.Do(func() {
		loaded, loadErr = loadAll()
	})
	return loaded, loadErr
}

// For returns the adapter for the given provider id.
func For(providerID string) (*ProviderAdapter, error) {
	adapters, err := all()
	if err != nil {
		return nil, err
	}
	a, ok := adapters[providerID]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %s)", providerID, strings.Join(IDs(), ", "))
	}
	return a, nil
}

// IDs returns all known provider ids, sorted.
func IDs() []string {
	adapters, err := all()
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(adapters))
	for id := range adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
