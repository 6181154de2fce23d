// Package storage abstracts where finished build artifacts are published.
// A build run puts the database and its checksum manifest into a store and
// reads the previously published manifest back for change detection.
package storage

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrPutFailed      = errors.New("put failed")
	ErrGetFailed      = errors.New("get failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// Store abstracts artifact publication.
// Implementations include S3 and the local filesystem.
type Store interface {
	// Put publishes a local file under objectPath.
	Put(ctx context.Context, localPath, objectPath string) error

	// Get retrieves objectPath into localPath.
	// Returns ErrObjectNotFound when the object does not exist.
	Get(ctx context.Context, objectPath, localPath string) error

	// Exists reports whether objectPath is present in the store.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// List returns all object paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes objectPath from the store. Deleting an absent object
	// is not an error, so retention sweeps stay idempotent.
	Delete(ctx context.Context, objectPath string) error
}
