// Package registry holds the canonical schema of the agnostic storage
// operations. The schema is fixed per release: input files must be authored
// against exactly this version of the infrar/storage call surface, and every
// provider adapter must cover every operation and parameter listed here.
package registry

// SchemaVersion identifies the call-surface revision this registry describes.
// It must match both storage.SchemaVersion and the [transform].schema value
// in infrar.toml.
const SchemaVersion = "0.1"

// SurfaceImportPath is the import path of the agnostic call surface.
const SurfaceImportPath = "infrar/storage"

// SurfaceDefaultName is the package name callers get without an alias.
const SurfaceDefaultName = "storage"

// ResultKind describes the type shape of an operation's Go call expression.
// A replacement native call must have the same shape so the surrounding
// statement stays valid.
type ResultKind uint8

const (
	// ResultError is `error`.
	ResultError ResultKind = iota
	// ResultStringsError is `([]string, error)`.
	ResultStringsError
)

// Param is one ordered parameter of an agnostic operation.
type Param struct {
	Name     string // canonical agnostic name ("bucket")
	Field    string // request struct field ("Bucket")
	Required bool
	Default  string // Go expression used when an optional param is omitted
}

// OperationSpec describes one agnostic operation. Immutable.
type OperationSpec struct {
	Name        string // canonical operation name ("list_objects")
	FuncName    string // surface function ("ListObjects")
	RequestType string // surface request struct ("ListObjectsRequest")
	Params      []Param
	Result      ResultKind
	Description string
}

// ParamByName returns the parameter with the given canonical name.
func (op *OperationSpec) ParamByName(name string) (Param, bool) {
	for _, p := range op.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// ParamByField returns the parameter with the given struct field name.
func (op *OperationSpec) ParamByField(field string) (Param, bool) {
	for _, p := range op.Params {
		if p.Field == field {
			return p, true
		}
	}
	return Param{}, false
}

// ops — фиксированный набор операций. Порядок параметров значим:
// он определяет позиционную форму запроса.
var ops = []OperationSpec{
	{
		Name:        "upload",
		FuncName:    "Upload",
		RequestType: "UploadRequest",
		Params: []Param{
			{Name: "bucket", Field: "Bucket", Required: true},
			{Name: "source", Field: "Source", Required: true},
			{Name: "destination", Field: "Destination", Required: true},
		},
		Result:      ResultError,
		Description: "upload a local file to object storage",
	},
	{
		Name:        "download",
		FuncName:    "Download",
		RequestType: "DownloadRequest",
		Params: []Param{
			{Name: "bucket", Field: "Bucket", Required: true},
			{Name: "source", Field: "Source", Required: true},
			{Name: "destination", Field: "Destination", Required: true},
		},
		Result:      ResultError,
		Description: "download an object to a local file",
	},
	{
		Name:        "delete",
		FuncName:    "Delete",
		RequestType: "DeleteRequest",
		Params: []Param{
			{Name: "bucket", Field: "Bucket", Required: true},
			{Name: "path", Field: "Path", Required: true},
		},
		Result:      ResultError,
		Description: "delete an object from storage",
	},
	{
		Name:        "list_objects",
		FuncName:    "ListObjects",
		RequestType: "ListObjectsRequest",
		Params: []Param{
			{Name: "bucket", Field: "Bucket", Required: true},
			{Name: "prefix", Field: "Prefix", Required: false, Default: `""`},
		},
		Result:      ResultStringsError,
		Description: "list object keys in a bucket, optionally filtered by prefix",
	},
}

var byName = func() map[string]*OperationSpec {
	m := make(map[string]*OperationSpec, len(ops))
	for i := range ops {
		m[ops[i].Name] = &ops[i]
	}
	return m
}()

var byFunc = func() map[string]*OperationSpec {
	m := make(map[string]*OperationSpec, len(ops))
	for i := range ops {
		m[ops[i].FuncName] = &ops[i]
	}
	return m
}()

// Get returns the spec for a canonical operation name.
func Get(name string) (*OperationSpec, bool) {
	op, ok := byName[name]
	return op, ok
}

// GetByFunc returns the spec for a surface function name.
func GetByFunc(funcName string) (*OperationSpec, bool) {
	op, ok := byFunc[funcName]
	return op, ok
}

// Operations returns all operation specs in declaration order.
func Operations() []OperationSpec {
	return ops
}
