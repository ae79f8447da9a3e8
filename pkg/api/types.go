package api

import "github.com/platinummonkey/plugin-portal/pkg/registry"

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SigningKeyResponse publishes the key that verifies package signatures
type SigningKeyResponse struct {
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"`
}

// metadataFromRecord flattens a management record into the public view
// returned by admin endpoints
func metadataFromRecord(rec *registry.ManagementRecord) registry.PublicMetadata {
	md := registry.PublicMetadata{
		ID:            rec.ID,
		Name:          rec.Name,
		Compatibility: rec.Compatibility,
	}
	if rec.Version != nil {
		md.Version = *rec.Version
	}
	if rec.PackageURL != nil {
		md.PackageURL = *rec.PackageURL
	}
	if rec.SHA256 != nil {
		md.SHA256 = *rec.SHA256
	}
	if rec.Signature != nil {
		md.Signature = *rec.Signature
	}
	return md
}
