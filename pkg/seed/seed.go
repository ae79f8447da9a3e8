// Package seed loads initial accounts and plugins into an empty portal.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/registry"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

// User is a seeded account
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Active   *bool  `yaml:"active,omitempty"`
}

// Plugin is a seeded plugin with its version history in append order
type Plugin struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Compatibility string   `yaml:"compatibility"`
	Owner         string   `yaml:"owner"`
	Status        string   `yaml:"status"`
	Versions      []string `yaml:"versions"`
}

// Document is the seed file format
type Document struct {
	Users   []User   `yaml:"users"`
	Plugins []Plugin `yaml:"plugins"`
}

// Default returns the built-in seed: three accounts, one per role, and two
// published plugins owned by admin.
func Default() *Document {
	return &Document{
		Users: []User{
			{Username: "admin", Password: "admin123", Role: "admin"},
			{Username: "developer", Password: "dev123", Role: "developer"},
			{Username: "user", Password: "user123", Role: "user"},
		},
		Plugins: []Plugin{
			{
				ID:            "com.example.stream-overlay",
				Name:          "Stream Overlay",
				Compatibility: "obs>=30.0.0",
				Owner:         "admin",
				Status:        string(registry.StatusPublished),
				Versions:      []string{"1.0.0", "1.1.0", "2.0.0"},
			},
			{
				ID:            "com.example.chat-enhancer",
				Name:          "Chat Enhancer",
				Compatibility: "obs>=29.0.0",
				Owner:         "admin",
				Status:        string(registry.StatusPublished),
				Versions:      []string{"1.0.0"},
			},
		},
	}
}

// Parse decodes a YAML seed document
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to parse seed document: %w", err)
	}
	return &doc, nil
}

// LoadFile reads a seed document from path, or returns Default when path is empty
func LoadFile(path string) (*Document, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Result counts what Apply created and skipped
type Result struct {
	UsersCreated   int
	UsersSkipped   int
	PluginsCreated int
	PluginsSkipped int
}

// Seeder applies seed documents through the domain services
type Seeder struct {
	users    *users.Service
	registry *registry.Service
	logger   *logrus.Logger
}

// NewSeeder creates a seeder
func NewSeeder(us *users.Service, reg *registry.Service, logger *logrus.Logger) *Seeder {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Seeder{users: us, registry: reg, logger: logger}
}

// Apply creates every account and plugin of doc that does not exist yet
func (s *Seeder) Apply(ctx context.Context, doc *Document) (Result, error) {
	var res Result
	for _, u := range doc.Users {
		created, err := s.users.Import(ctx, users.CreateRequest{
			Username: u.Username,
			Password: u.Password,
			Role:     u.Role,
			Active:   u.Active,
		})
		if err != nil {
			return res, fmt.Errorf("failed to seed user %s: %w", u.Username, err)
		}
		if created {
			res.UsersCreated++
		} else {
			res.UsersSkipped++
		}
	}

	for _, p := range doc.Plugins {
		status := registry.Status(p.Status)
		if status == "" {
			status = registry.StatusPublished
		}
		err := s.registry.Import(ctx, &registry.Plugin{
			ID:            p.ID,
			Name:          p.Name,
			Compatibility: p.Compatibility,
			Owner:         p.Owner,
			Status:        status,
		}, p.Versions)
		switch {
		case err == nil:
			res.PluginsCreated++
		case apperrors.IsConflict(err):
			res.PluginsSkipped++
		default:
			return res, fmt.Errorf("failed to seed plugin %s: %w", p.ID, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"users_created":   res.UsersCreated,
		"users_skipped":   res.UsersSkipped,
		"plugins_created": res.PluginsCreated,
		"plugins_skipped": res.PluginsSkipped,
	}).Info("seed applied")
	return res, nil
}
