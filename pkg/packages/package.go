package packages

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Materialize returns the package bytes for a plugin version.
// The output depends only on the inputs.
func Materialize(pluginID, version string) []byte {
	return []byte(fmt.Sprintf("PLUGIN:%s:%s", pluginID, version))
}

// Checksum returns the lowercase hex SHA256 digest of data
func Checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// BlobKey returns the content-addressed key for a checksum
func BlobKey(checksum string) string {
	if len(checksum) < 3 {
		return "packages/sha256/" + checksum
	}
	return fmt.Sprintf("packages/sha256/%s/%s", checksum[:2], checksum[2:])
}
