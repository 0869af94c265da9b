// Package adapter maps agnostic operations onto native provider call
// shapes. Adapters are pure data, loaded once from embedded TOML
// definitions and validated against the registry before any input file is
// touched.
package adapter

import (
	"strings"
)

// ArgRef is one entry of a template's native argument list: either a
// reference to an agnostic parameter or a fixed Go expression the agnostic
// call never supplies.
type ArgRef struct {
	Param string // agnostic parameter name; empty for fixed values
	Fixed string // verbatim Go expression; empty for parameter refs
}

// IsFixed reports whether the entry is a provider-specific constant.
func (a ArgRef) IsFixed() bool {
	return a.Param == ""
}

// fixedPrefix marks fixed-value entries in the TOML args list,
// e.g. "fixed:int32(1000)".
const fixedPrefix = "fixed:"

func parseArgRef(raw string) ArgRef {
	if rest, ok := strings.CutPrefix(raw, fixedPrefix); ok {
		return ArgRef{Fixed: rest}
	}
	return ArgRef{Param: raw}
}

// NativeCallTemplate describes the native rendering of one operation:
// the symbol to call, the native argument order, and the one-time support
// code the call depends on.
type NativeCallTemplate struct {
	Target         string   `toml:"target"`
	RawArgs        []string `toml:"args"`
	RequiresClient bool     `toml:"requires_client"`
	Imports        []string `toml:"imports"`
	Support        string   `toml:"support"`

	args []ArgRef // parsed from RawArgs at load time
}

// Args returns the parsed native argument list.
func (t *NativeCallTemplate) Args() []ArgRef {
	return t.args
}

// ProviderAdapter carries the full per-provider rule set. Constructed once
// at orchestrator startup, read-only thereafter (safe for concurrent use).
type ProviderAdapter struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	SDK       string `toml:"sdk"`
	ClientVar string `toml:"client_var"`
	// Imports is the base preamble: exact import-spec lines the client
	// constructor needs, in the form they appear inside an import block.
	Imports    []string                       `toml:"imports"`
	ClientCtor string                         `toml:"client_ctor"`
	Ops        map[string]*NativeCallTemplate `toml:"ops"`

	hash [32]byte // sha256 of the raw TOML definition
}

// Template returns the native template for a canonical operation name.
func (a *ProviderAdapter) Template(opName string) (*NativeCallTemplate, bool) {
	t, ok := a.Ops[opName]
	return t, ok
}

// Hash returns the sha256 of the adapter's raw definition. Part of the
// transform cache key: editing a provider definition invalidates cached
// results.
func (a *ProviderAdapter) Hash() [32]byte {
	return a.hash
}
