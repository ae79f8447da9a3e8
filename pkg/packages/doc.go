// Package packages materializes, signs and stores plugin package bytes.
//
// Package bytes are a deterministic function of (plugin id, version). The SHA256
// checksum of those bytes is signed with ed25519 and the signature is published
// next to the checksum so clients can verify a download against the portal's
// public signing key.
//
//	store := packages.NewStore(packages.NewMemoryBlobStore(), signer)
//	artifact, err := store.Build(ctx, "acme.widget", "1.0.0")
//	data, err := store.Open(ctx, "acme.widget", "1.0.0", artifact.SHA256)
//
// Blobs are content addressed under packages/sha256/<aa>/<rest>. Backends:
// MemoryBlobStore, FileSystemBlobStore and S3BlobStore.
package packages
