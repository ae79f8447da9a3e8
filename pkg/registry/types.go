package registry

import (
	"time"
)

// Status is the publication state of a plugin
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusPublished   Status = "published"
	StatusUnpublished Status = "unpublished"
)

// Statuses lists every publication state
var Statuses = []Status{StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusPublished, StatusUnpublished}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Version is one appended package of a plugin
type Version struct {
	Version    string    `json:"version"`
	PackageURL string    `json:"package_url"`
	SHA256     string    `json:"sha256"`
	Signature  string    `json:"signature"`
	CreatedAt  time.Time `json:"created_at"`
}

// Plugin is a plugin record with its ordered version history
type Plugin struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Compatibility string    `json:"compatibility"`
	Owner         string    `json:"owner"`
	Status        Status    `json:"status"`
	Orphaned      bool      `json:"orphaned"`
	Versions      []Version `json:"versions"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy
func (p *Plugin) Clone() *Plugin {
	cp := *p
	cp.Versions = make([]Version, len(p.Versions))
	copy(cp.Versions, p.Versions)
	return &cp
}

// Latest returns the last appended version
func (p *Plugin) Latest() (Version, bool) {
	if len(p.Versions) == 0 {
		return Version{}, false
	}
	return p.Versions[len(p.Versions)-1], true
}

// FindVersion returns the first appended entry with the given version string
func (p *Plugin) FindVersion(version string) (Version, bool) {
	for _, v := range p.Versions {
		if v.Version == version {
			return v, true
		}
	}
	return Version{}, false
}

// PubliclyVisible reports whether anonymous readers may see the plugin
func (p *Plugin) PubliclyVisible() bool {
	return p.Status == StatusPublished && !p.Orphaned && len(p.Versions) > 0
}

// PublicMetadata is the discovery view of a plugin at one version
type PublicMetadata struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	Compatibility string `json:"compatibility"`
	PackageURL    string `json:"package_url"`
	SHA256        string `json:"sha256"`
	Signature     string `json:"signature"`
}

// ManagementRecord is the owner/admin view of a plugin.
// Version fields are null when the plugin has no versions.
type ManagementRecord struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Compatibility string  `json:"compatibility"`
	Owner         string  `json:"owner"`
	Status        Status  `json:"status"`
	Orphaned      bool    `json:"orphaned"`
	Version       *string `json:"version"`
	PackageURL    *string `json:"package_url"`
	SHA256        *string `json:"sha256"`
	Signature     *string `json:"signature"`
}

// MetadataFor builds the public view of p at version v
func MetadataFor(p *Plugin, v Version) PublicMetadata {
	return PublicMetadata{
		ID:            p.ID,
		Name:          p.Name,
		Version:       v.Version,
		Compatibility: p.Compatibility,
		PackageURL:    v.PackageURL,
		SHA256:        v.SHA256,
		Signature:     v.Signature,
	}
}

// LatestMetadata builds the public view of p at its latest version
func LatestMetadata(p *Plugin) (PublicMetadata, bool) {
	latest, ok := p.Latest()
	if !ok {
		return PublicMetadata{}, false
	}
	return MetadataFor(p, latest), true
}

// RecordFor builds the management view of p
func RecordFor(p *Plugin) ManagementRecord {
	rec := ManagementRecord{
		ID:            p.ID,
		Name:          p.Name,
		Compatibility: p.Compatibility,
		Owner:         p.Owner,
		Status:        p.Status,
		Orphaned:      p.Orphaned,
	}
	if latest, ok := p.Latest(); ok {
		rec.Version = &latest.Version
		rec.PackageURL = &latest.PackageURL
		rec.SHA256 = &latest.SHA256
		rec.Signature = &latest.Signature
	}
	return rec
}

// CreateRequest carries the caller-supplied fields of a new plugin
type CreateRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Compatibility string `json:"compatibility"`
}

// UpdateRequest carries editable plugin fields
type UpdateRequest struct {
	Name          string `json:"name"`
	Compatibility string `json:"compatibility"`
}

// VersionRequest carries the fields of a version to append
type VersionRequest struct {
	Version    string `json:"version"`
	PackageURL string `json:"package_url,omitempty"`
}
