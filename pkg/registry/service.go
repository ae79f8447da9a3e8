package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/audit"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
	"github.com/platinummonkey/plugin-portal/pkg/packages"
)

var tracer = otel.Tracer("github.com/platinummonkey/plugin-portal/pkg/registry")

// Initial versions assigned on creation
const (
	AdminInitialVersion     = "1.0.0"
	DeveloperInitialVersion = "0.1.0"
)

var errVersionNotFound = apperrors.NotFound("Version")

// ServiceConfig wires the registry service
type ServiceConfig struct {
	Repository Repository
	Packages   *packages.Store
	Audit      audit.Logger
	Cache      *PublicCache
	Observer   Observer
	Logger     *logrus.Logger
	// PackageBaseURL prefixes generated download URLs, e.g. http://localhost:8080/portal/api
	PackageBaseURL string
	Now            func() time.Time
}

// Service implements plugin discovery, management and the publication workflow
type Service struct {
	repo     Repository
	packages *packages.Store
	audit    audit.Logger
	cache    *PublicCache
	observer Observer
	logger   *logrus.Logger
	baseURL  string
	now      func() time.Time
}

// NewService creates a registry service
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, fmt.Errorf("plugin repository is required")
	}
	if cfg.Packages == nil {
		return nil, fmt.Errorf("package store is required")
	}
	s := &Service{
		repo:     cfg.Repository,
		packages: cfg.Packages,
		audit:    cfg.Audit,
		cache:    cfg.Cache,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		baseURL:  strings.TrimRight(cfg.PackageBaseURL, "/"),
		now:      cfg.Now,
	}
	if s.audit == nil {
		s.audit = audit.NoOpLogger{}
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetOutput(io.Discard)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// PackageURL returns the default download URL of a plugin version
func (s *Service) PackageURL(pluginID, version string) string {
	return fmt.Sprintf("%s/plugins/%s/package?version=%s", s.baseURL, url.PathEscape(pluginID), url.QueryEscape(version))
}

// ---- public discovery ----

// ListPublic returns the latest metadata of every visible plugin. A non-empty
// query keeps plugins whose id or name contains it, case-insensitively.
func (s *Service) ListPublic(ctx context.Context, query string) ([]PublicMetadata, error) {
	plugins, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list plugins", err)
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]PublicMetadata, 0, len(plugins))
	for _, p := range plugins {
		if !p.PubliclyVisible() {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.ID), needle) && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		md, _ := LatestMetadata(p)
		out = append(out, md)
	}
	return out, nil
}

// GetPublic returns the latest metadata of a visible plugin
func (s *Service) GetPublic(ctx context.Context, id string) (*PublicMetadata, error) {
	p, err := s.loadPublic(ctx, id)
	if err != nil {
		return nil, err
	}
	md, _ := LatestMetadata(p)
	return &md, nil
}

// ListVersions returns metadata for every version of a visible plugin in append order
func (s *Service) ListVersions(ctx context.Context, id string) ([]PublicMetadata, error) {
	p, err := s.loadPublic(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]PublicMetadata, 0, len(p.Versions))
	for _, v := range p.Versions {
		out = append(out, MetadataFor(p, v))
	}
	return out, nil
}

// Download returns the package bytes of one version of a visible plugin
func (s *Service) Download(ctx context.Context, id, version string) ([]byte, error) {
	p, err := s.loadPublic(ctx, id)
	if err != nil {
		return nil, err
	}
	v, ok := p.FindVersion(version)
	if !ok {
		return nil, errVersionNotFound
	}
	data, err := s.packages.Open(ctx, p.ID, v.Version, v.SHA256)
	if err != nil {
		return nil, apperrors.Internal("failed to open package", err)
	}
	s.observer.PackageDownloaded(p.ID)
	return data, nil
}

func (s *Service) loadPublic(ctx context.Context, id string) (*Plugin, error) {
	cached, gen, ok := s.cache.Get(id)
	if ok {
		return cached, nil
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrPluginNotFound
		}
		return nil, apperrors.Internal("failed to load plugin", err)
	}
	if !p.PubliclyVisible() {
		return nil, ErrPluginNotFound
	}
	s.cache.Put(id, gen, p)
	return p, nil
}

// ---- management ----

// CreatePublished creates a plugin that is immediately published with version 1.0.0
func (s *Service) CreatePublished(ctx context.Context, principal *auth.Principal, req CreateRequest) (*ManagementRecord, error) {
	if err := auth.RequirePermission(principal, auth.PermPluginsWrite); err != nil {
		return nil, err
	}
	if err := auth.RequireRole(principal, auth.RoleAdmin); err != nil {
		return nil, err
	}
	return s.create(ctx, principal, req, StatusPublished, AdminInitialVersion)
}

// CreateDraft creates a draft plugin with version 0.1.0 owned by the caller
func (s *Service) CreateDraft(ctx context.Context, principal *auth.Principal, req CreateRequest) (*ManagementRecord, error) {
	if err := auth.RequirePermission(principal, auth.PermPluginsWrite); err != nil {
		return nil, err
	}
	return s.create(ctx, principal, req, StatusDraft, DeveloperInitialVersion)
}

func (s *Service) create(ctx context.Context, principal *auth.Principal, req CreateRequest, status Status, version string) (*ManagementRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	v, err := s.buildVersion(ctx, req.ID, VersionRequest{Version: version})
	if err != nil {
		return nil, err
	}
	now := s.now()
	p := &Plugin{
		ID:            req.ID,
		Name:          req.Name,
		Compatibility: req.Compatibility,
		Owner:         principal.Username,
		Status:        status,
		Versions:      []Version{v},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if apperrors.IsConflict(err) {
			return nil, ErrPluginExists
		}
		return nil, apperrors.Internal("failed to create plugin", err)
	}
	s.cache.Invalidate(p.ID)
	s.logger.WithFields(logrus.Fields{
		"plugin": p.ID,
		"owner":  p.Owner,
		"status": p.Status,
	}).Info("plugin created")
	rec := RecordFor(p)
	return &rec, nil
}

// Import stores a fully specified plugin, building packages for each version.
// It bypasses authorization and is used for seeding.
func (s *Service) Import(ctx context.Context, p *Plugin, versions []string) error {
	if err := (CreateRequest{ID: p.ID, Name: p.Name, Compatibility: p.Compatibility}).Validate(); err != nil {
		return err
	}
	if !p.Status.Valid() {
		return apperrors.Validation("invalid plugin status %q", p.Status)
	}
	if p.Status == StatusPublished && len(versions) == 0 {
		return apperrors.Validation("published plugin %s needs a version", p.ID)
	}
	cp := p.Clone()
	cp.Versions = cp.Versions[:0]
	for _, ver := range versions {
		v, err := s.buildVersion(ctx, cp.ID, VersionRequest{Version: ver})
		if err != nil {
			return err
		}
		cp.Versions = append(cp.Versions, v)
	}
	now := s.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if err := s.repo.Create(ctx, cp); err != nil {
		return err
	}
	s.cache.Invalidate(cp.ID)
	return nil
}

// AddVersion appends a version to a plugin the caller owns
func (s *Service) AddVersion(ctx context.Context, principal *auth.Principal, id string, req VersionRequest) (*PublicMetadata, error) {
	ctx, span := tracer.Start(ctx, "registry.AddVersion")
	defer span.End()
	span.SetAttributes(attribute.String("plugin.id", id), attribute.String("plugin.version", req.Version))

	if err := auth.RequirePermission(principal, auth.PermPluginsWrite); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	// Authorize against the committed owner before paying for the package build.
	if _, err := s.loadManaged(ctx, principal, id); err != nil {
		return nil, err
	}
	v, err := s.buildVersion(ctx, id, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "package build failed")
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, func(p *Plugin) error {
		if err := authorizeManage(principal, p); err != nil {
			return err
		}
		p.Versions = append(p.Versions, v)
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, s.mapRepoError(err, "failed to append version")
	}
	s.cache.Invalidate(id)

	s.logger.WithFields(logrus.Fields{
		"plugin":  id,
		"version": v.Version,
		"actor":   principal.Username,
		"sha256":  v.SHA256,
	}).Info("plugin version added")

	md := MetadataFor(updated, v)
	return &md, nil
}

func (s *Service) buildVersion(ctx context.Context, id string, req VersionRequest) (Version, error) {
	if err := req.Validate(); err != nil {
		return Version{}, err
	}
	artifact, err := s.packages.Build(ctx, id, req.Version)
	if err != nil {
		return Version{}, apperrors.Internal("failed to build package", err)
	}
	packageURL := req.PackageURL
	if packageURL == "" {
		packageURL = s.PackageURL(id, req.Version)
	}
	return Version{
		Version:    req.Version,
		PackageURL: packageURL,
		SHA256:     artifact.SHA256,
		Signature:  artifact.Signature,
		CreatedAt:  s.now(),
	}, nil
}

// UpdatePlugin edits name and compatibility of a plugin the caller owns
func (s *Service) UpdatePlugin(ctx context.Context, principal *auth.Principal, id string, req UpdateRequest) (*ManagementRecord, error) {
	if err := auth.RequirePermission(principal, auth.PermPluginsWrite); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, id, func(p *Plugin) error {
		if err := authorizeManage(principal, p); err != nil {
			return err
		}
		p.Name = req.Name
		p.Compatibility = req.Compatibility
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, s.mapRepoError(err, "failed to update plugin")
	}
	s.cache.Invalidate(id)
	s.record(ctx, principal, audit.ActionPluginEdited, id, "")
	rec := RecordFor(updated)
	return &rec, nil
}

// DeletePlugin removes a plugin the caller owns together with its versions
func (s *Service) DeletePlugin(ctx context.Context, principal *auth.Principal, id, reason string) error {
	if err := auth.RequirePermission(principal, auth.PermPluginsWrite); err != nil {
		return err
	}
	err := s.repo.DeleteIf(ctx, id, func(p *Plugin) error {
		return authorizeManage(principal, p)
	})
	if err != nil {
		return s.mapRepoError(err, "failed to delete plugin")
	}
	s.cache.Invalidate(id)
	s.record(ctx, principal, audit.ActionPluginDeleted, id, reason)
	return nil
}

// GetManaged returns the management record of a plugin the caller owns
func (s *Service) GetManaged(ctx context.Context, principal *auth.Principal, id string) (*ManagementRecord, error) {
	if err := auth.RequirePermission(principal, auth.PermPluginsWrite); err != nil {
		return nil, err
	}
	p, err := s.loadManaged(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	rec := RecordFor(p)
	return &rec, nil
}

// ListOwned returns the caller's plugins. Admins see every plugin including orphans.
func (s *Service) ListOwned(ctx context.Context, principal *auth.Principal) ([]ManagementRecord, error) {
	if err := auth.RequirePermission(principal, auth.PermPluginsWrite); err != nil {
		return nil, err
	}
	plugins, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list plugins", err)
	}
	out := make([]ManagementRecord, 0)
	for _, p := range plugins {
		if !principal.IsAdmin() && (p.Orphaned || p.Owner != principal.Username) {
			continue
		}
		out = append(out, RecordFor(p))
	}
	return out, nil
}

// ListAll returns the latest metadata of every plugin that has a version, regardless
// of status. Admin only.
func (s *Service) ListAll(ctx context.Context, principal *auth.Principal) ([]PublicMetadata, error) {
	if err := auth.RequirePermission(principal, auth.PermPluginsRead); err != nil {
		return nil, err
	}
	if err := auth.RequireRole(principal, auth.RoleAdmin); err != nil {
		return nil, err
	}
	plugins, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list plugins", err)
	}
	out := make([]PublicMetadata, 0, len(plugins))
	for _, p := range plugins {
		if md, ok := LatestMetadata(p); ok {
			out = append(out, md)
		}
	}
	return out, nil
}

// ---- workflow ----

// Transition applies a lifecycle action. Submit is open to developer owners;
// every other action is admin only.
func (s *Service) Transition(ctx context.Context, principal *auth.Principal, id string, t Transition, reason string) (*ManagementRecord, error) {
	ctx, span := tracer.Start(ctx, "registry.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("plugin.id", id), attribute.String("plugin.transition", string(t)))

	rec, err := s.transition(ctx, principal, id, t, reason)
	s.observer.TransitionObserved(string(t), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.MessageOf(err))
	}
	return rec, err
}

func (s *Service) transition(ctx context.Context, principal *auth.Principal, id string, t Transition, reason string) (*ManagementRecord, error) {
	if _, ok := transitionRules[t]; !ok {
		return nil, apperrors.Validation("unknown transition %q", string(t))
	}
	if err := authorizeTransition(principal, t); err != nil {
		return nil, err
	}

	var from Status
	updated, err := s.repo.Update(ctx, id, func(p *Plugin) error {
		if t == TransitionSubmit {
			if err := authorizeManage(principal, p); err != nil {
				return err
			}
		}
		from = p.Status
		if err := t.Apply(p); err != nil {
			return err
		}
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, s.mapRepoError(err, "failed to update plugin status")
	}
	s.cache.Invalidate(id)

	s.logger.WithFields(logrus.Fields{
		"plugin": id,
		"action": t,
		"from":   from,
		"to":     updated.Status,
		"actor":  principal.Username,
	}).Info("plugin status changed")

	switch t {
	case TransitionReject:
		s.record(ctx, principal, audit.ActionPluginRejected, id, reason)
	case TransitionPublish:
		s.record(ctx, principal, audit.ActionPluginPublished, id, reason)
	}
	rec := RecordFor(updated)
	return &rec, nil
}

func authorizeTransition(principal *auth.Principal, t Transition) error {
	if t == TransitionSubmit {
		if err := auth.RequirePermission(principal, auth.PermPluginsWrite); err != nil {
			return err
		}
		return auth.RequireRole(principal, auth.RoleDeveloper, auth.RoleAdmin)
	}
	return auth.RequireRole(principal, auth.RoleAdmin)
}

// OrphanPlugins flags every plugin owned by owner as orphaned and returns how many
// changed. Called when the owning account is deleted.
func (s *Service) OrphanPlugins(ctx context.Context, owner string) (int, error) {
	ids, err := s.repo.OrphanByOwner(ctx, owner, s.now())
	if err != nil {
		return 0, apperrors.Internal("failed to orphan plugins", err)
	}
	for _, id := range ids {
		s.cache.Invalidate(id)
	}
	if len(ids) > 0 {
		s.logger.WithFields(logrus.Fields{"owner": owner, "plugins": len(ids)}).Warn("plugins orphaned by account deletion")
	}
	return len(ids), nil
}

// ---- helpers ----

func (s *Service) loadManaged(ctx context.Context, principal *auth.Principal, id string) (*Plugin, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load plugin")
	}
	if err := authorizeManage(principal, p); err != nil {
		return nil, err
	}
	return p, nil
}

// authorizeManage applies the ownership rule. Orphaned plugins have no owner.
func authorizeManage(principal *auth.Principal, p *Plugin) error {
	if p.Orphaned {
		return auth.RequireRole(principal, auth.RoleAdmin)
	}
	return auth.RequireOwnerOrAdmin(principal, p.Owner)
}

func (s *Service) mapRepoError(err error, msg string) error {
	var appErr *apperrors.Error
	switch {
	case apperrors.IsNotFound(err):
		return ErrPluginNotFound
	case errors.Is(err, ErrHistoryRewritten):
		return apperrors.Internal(msg, err)
	case errors.As(err, &appErr) && appErr.Kind != apperrors.KindInternal:
		return err
	default:
		return apperrors.Internal(msg, err)
	}
}

// record appends an audit entry. The mutation is already committed, so a
// failing audit backend is logged rather than surfaced.
func (s *Service) record(ctx context.Context, principal *auth.Principal, action audit.Action, target, reason string) {
	entry := audit.NewEntry(principal.Username, action, target, reason)
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action": action,
			"target": target,
			"actor":  principal.Username,
		}).Error("failed to record audit entry")
	}
}
