package storage

import (
	"errors"
	"reflect"
	"testing"

	"infrar/internal/registry"
)

func TestStubsFailClosed(t *testing.T) {
	if err := Upload(UploadRequest{}); !errors.Is(err, ErrNotTransformed) {
		t.Errorf("Upload = %v", err)
	}
	if err := Download(DownloadRequest{}); !errors.Is(err, ErrNotTransformed) {
		t.Errorf("Download = %v", err)
	}
	if err := Delete(DeleteRequest{}); !errors.Is(err, ErrNotTransformed) {
		t.Errorf("Delete = %v", err)
	}
	keys, err := ListObjects(ListObjectsRequest{})
	if keys != nil || !errors.Is(err, ErrNotTransformed) {
		t.Errorf("ListObjects = %v, %v", keys, err)
	}
}

// The surface and the transformer's operation registry must describe the
// same schema, field for field.
func TestSurfaceMatchesRegistry(t *testing.T) {
	if SchemaVersion != registry.SchemaVersion {
		t.Fatalf("schema %q does not match registry %q", SchemaVersion, registry.SchemaVersion)
	}

	requests := map[string]reflect.Type{
		"UploadRequest":      reflect.TypeOf(UploadRequest{}),
		"DownloadRequest":    reflect.TypeOf(DownloadRequest{}),
		"DeleteRequest":      reflect.TypeOf(DeleteRequest{}),
		"ListObjectsRequest": reflect.TypeOf(ListObjectsRequest{}),
	}

	for _, op := range registry.Operations() {
		typ, ok := requests[op.RequestType]
		if !ok {
			t.Errorf("registry names unknown request type %q", op.RequestType)
			continue
		}
		if typ.NumField() != len(op.Params) {
			t.Errorf("%s has %d fields, registry lists %d params", op.RequestType, typ.NumField(), len(op.Params))
			continue
		}
		for i, param := range op.Params {
			if got := typ.Field(i).Name; got != param.Field {
				t.Errorf("%s field %d = %q, registry says %q", op.RequestType, i, got, param.Field)
			}
		}
	}
}
