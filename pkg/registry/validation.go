package registry

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
)

var pluginIDPattern = regexp.MustCompile(`^[a-z0-9]+([.-][a-z0-9]+)*$`)

// reservedPluginIDs collide with fixed routes under /plugins
var reservedPluginIDs = map[string]bool{
	"mine": true,
}

// ValidatePluginID checks the slug format of a plugin id
func ValidatePluginID(id string) error {
	if id == "" {
		return apperrors.Validation("plugin ID is required")
	}
	if n := len(id); n < 3 || n > 64 {
		return apperrors.Validation("plugin ID must be between 3 and 64 characters")
	}
	if !pluginIDPattern.MatchString(id) {
		return apperrors.Validation("plugin ID must match %s", pluginIDPattern.String())
	}
	if reservedPluginIDs[id] {
		return apperrors.Validation("plugin ID %q is reserved", id)
	}
	return nil
}

func validateText(field, value string, min, max int) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.Validation("plugin %s is required", field)
	}
	if n := utf8.RuneCountInString(value); n < min || n > max {
		return apperrors.Validation("plugin %s must be between %d and %d characters", field, min, max)
	}
	return nil
}

// Validate checks a create request
func (r CreateRequest) Validate() error {
	if err := ValidatePluginID(r.ID); err != nil {
		return err
	}
	return UpdateRequest{Name: r.Name, Compatibility: r.Compatibility}.Validate()
}

// Validate checks an update request
func (r UpdateRequest) Validate() error {
	if err := validateText("name", r.Name, 3, 120); err != nil {
		return err
	}
	return validateText("compatibility", r.Compatibility, 3, 120)
}

// Validate checks a version request
func (r VersionRequest) Validate() error {
	if r.Version == "" {
		return apperrors.Validation("version is required")
	}
	if len(r.Version) > 64 {
		return apperrors.Validation("version must be at most 64 characters")
	}
	if strings.IndexFunc(r.Version, unicode.IsSpace) >= 0 {
		return apperrors.Validation("version must not contain whitespace")
	}
	return nil
}
