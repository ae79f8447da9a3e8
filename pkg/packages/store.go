package packages

import (
	"context"
	"errors"
	"fmt"
)

// Artifact describes a materialized package
type Artifact struct {
	SHA256    string `json:"sha256"`
	Signature string `json:"signature"`
	Size      int    `json:"size"`
}

// Store materializes package bytes, signs their checksum and persists them
type Store struct {
	blobs  BlobStore
	signer *Signer
}

// NewStore creates a package store
func NewStore(blobs BlobStore, signer *Signer) *Store {
	return &Store{blobs: blobs, signer: signer}
}

// Signer returns the signer used for new artifacts
func (s *Store) Signer() *Signer {
	return s.signer
}

// Build materializes the package for (pluginID, version), stores it and signs its checksum.
func (s *Store) Build(ctx context.Context, pluginID, version string) (*Artifact, error) {
	data := Materialize(pluginID, version)
	checksum := Checksum(data)

	key := BlobKey(checksum)
	exists, err := s.blobs.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check package blob: %w", err)
	}
	if !exists {
		if err := s.blobs.Put(ctx, key, data); err != nil {
			return nil, fmt.Errorf("failed to store package blob: %w", err)
		}
	}

	return &Artifact{
		SHA256:    checksum,
		Signature: s.signer.Sign(checksum),
		Size:      len(data),
	}, nil
}

// Open returns the package bytes for (pluginID, version).
// A missing blob is re-materialized; the bytes must match checksum.
func (s *Store) Open(ctx context.Context, pluginID, version, checksum string) ([]byte, error) {
	data, err := s.blobs.Get(ctx, BlobKey(checksum))
	switch {
	case err == nil:
	case errors.Is(err, ErrBlobNotFound):
		data = Materialize(pluginID, version)
	default:
		return nil, fmt.Errorf("failed to read package blob: %w", err)
	}

	if got := Checksum(data); got != checksum {
		return nil, fmt.Errorf("package checksum mismatch for %s@%s: have %s, want %s", pluginID, version, got, checksum)
	}
	return data, nil
}
