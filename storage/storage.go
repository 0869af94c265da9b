// Package storage is the provider-agnostic surface application code writes
// against. It is a deploy-time contract, not a runtime client: `infrar
// transform` replaces every call below with native SDK code before the
// program ships. A call that survives to runtime returns ErrNotTransformed.
package storage

import "errors"

// SchemaVersion identifies the operation schema of this surface.
const SchemaVersion = "0.1"

// ErrNotTransformed reports an agnostic call that was never rewritten.
var ErrNotTransformed = errors.New("infrar: agnostic storage call reached runtime; run `infrar transform` before deploying")

// UploadRequest describes one object upload.
type UploadRequest struct {
	Bucket      string // target bucket or container
	Source      string // local file path
	Destination string // object key to create
}

// DownloadRequest describes one object download.
type DownloadRequest struct {
	Bucket      string
	Source      string // object key to read
	Destination string // local file path to create
}

// DeleteRequest describes one object deletion.
type DeleteRequest struct {
	Bucket string
	Path   string // object key to remove
}

// ListObjectsRequest describes one listing. An empty Prefix lists the
// whole bucket.
type ListObjectsRequest struct {
	Bucket string
	Prefix string
}

// Upload copies a local file into cloud storage.
func Upload(req UploadRequest) error {
	_ = req
	return ErrNotTransformed
}

// Download copies an object to a local file.
func Download(req DownloadRequest) error {
	_ = req
	return ErrNotTransformed
}

// Delete removes an object.
func Delete(req DeleteRequest) error {
	_ = req
	return ErrNotTransformed
}

// ListObjects returns the keys under a prefix.
func ListObjects(req ListObjectsRequest) ([]string, error) {
	_ = req
	return nil, ErrNotTransformed
}
