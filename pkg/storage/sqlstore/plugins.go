package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/registry"
)

var tracer = otel.Tracer("github.com/platinummonkey/plugin-portal/pkg/storage/sqlstore")

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PluginRepository is a registry.Repository backed by SQL
type PluginRepository struct {
	cm *ConnectionManager
	d  Dialect
}

var _ registry.Repository = (*PluginRepository)(nil)

// NewPluginRepository creates a repository on an initialized connection manager
func NewPluginRepository(cm *ConnectionManager) *PluginRepository {
	return &PluginRepository{cm: cm, d: cm.Dialect()}
}

func startSpan(ctx context.Context, op, id string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "sqlstore."+op)
	span.SetAttributes(attribute.String("db.system", "sql"), attribute.String("portal.key", id))
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil && !apperrors.IsNotFound(err) && !apperrors.IsConflict(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Create implements registry.Repository
func (r *PluginRepository) Create(ctx context.Context, p *registry.Plugin) (err error) {
	ctx, span := startSpan(ctx, "CreatePlugin", p.ID)
	defer func() { endSpan(span, err) }()

	tx, err := r.cm.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx, r.d.Rebind(`
		INSERT INTO plugins (id, name, compatibility, owner, status, orphaned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Name, p.Compatibility, p.Owner, string(p.Status), p.Orphaned, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return registry.ErrPluginExists
		}
		return fmt.Errorf("failed to insert plugin: %w", err)
	}
	for i, v := range p.Versions {
		if err := r.insertVersion(ctx, tx, p.ID, i, v); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plugin: %w", err)
	}
	return nil
}

func (r *PluginRepository) insertVersion(ctx context.Context, q queryer, id string, position int, v registry.Version) error {
	_, err := q.ExecContext(ctx, r.d.Rebind(`
		INSERT INTO plugin_versions (plugin_id, position, version, package_url, sha256, signature, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		id, position, v.Version, v.PackageURL, v.SHA256, v.Signature, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert plugin version: %w", err)
	}
	return nil
}

const pluginColumns = "id, name, compatibility, owner, status, orphaned, created_at, updated_at"

func scanPlugin(row interface{ Scan(...interface{}) error }) (*registry.Plugin, error) {
	var p registry.Plugin
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.Compatibility, &p.Owner, &status, &p.Orphaned, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = registry.Status(status)
	p.Versions = []registry.Version{}
	return &p, nil
}

func (r *PluginRepository) loadVersions(ctx context.Context, q queryer, id string) ([]registry.Version, error) {
	rows, err := q.QueryContext(ctx, r.d.Rebind(`
		SELECT version, package_url, sha256, signature, created_at
		FROM plugin_versions WHERE plugin_id = ? ORDER BY position ASC`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query plugin versions: %w", err)
	}
	defer rows.Close()

	versions := []registry.Version{}
	for rows.Next() {
		var v registry.Version
		if err := rows.Scan(&v.Version, &v.PackageURL, &v.SHA256, &v.Signature, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plugin version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *PluginRepository) get(ctx context.Context, q queryer, id string, lock bool) (*registry.Plugin, error) {
	query := "SELECT " + pluginColumns + " FROM plugins WHERE id = ?"
	if lock {
		query += r.d.ForUpdate
	}
	p, err := scanPlugin(q.QueryRowContext(ctx, r.d.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registry.ErrPluginNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query plugin: %w", err)
	}
	if p.Versions, err = r.loadVersions(ctx, q, id); err != nil {
		return nil, err
	}
	return p, nil
}

// Get implements registry.Repository
func (r *PluginRepository) Get(ctx context.Context, id string) (p *registry.Plugin, err error) {
	ctx, span := startSpan(ctx, "GetPlugin", id)
	defer func() { endSpan(span, err) }()
	return r.get(ctx, r.cm.Primary(), id, false)
}

// List implements registry.Repository
func (r *PluginRepository) List(ctx context.Context) (out []*registry.Plugin, err error) {
	ctx, span := startSpan(ctx, "ListPlugins", "")
	defer func() { endSpan(span, err) }()

	db := r.cm.Replica()
	rows, err := db.QueryContext(ctx, "SELECT "+pluginColumns+" FROM plugins ORDER BY "+r.d.OrderColumn+" ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query plugins: %w", err)
	}
	byID := make(map[string]*registry.Plugin)
	for rows.Next() {
		p, err := scanPlugin(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan plugin: %w", err)
		}
		out = append(out, p)
		byID[p.ID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plugins: %w", err)
	}

	vrows, err := db.QueryContext(ctx, `
		SELECT plugin_id, version, package_url, sha256, signature, created_at
		FROM plugin_versions ORDER BY plugin_id ASC, position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plugin versions: %w", err)
	}
	defer vrows.Close()
	for vrows.Next() {
		var id string
		var v registry.Version
		if err := vrows.Scan(&id, &v.Version, &v.PackageURL, &v.SHA256, &v.Signature, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plugin version: %w", err)
		}
		// versions of a plugin created after the first query are skipped
		if p, ok := byID[id]; ok {
			p.Versions = append(p.Versions, v)
		}
	}
	if out == nil {
		out = []*registry.Plugin{}
	}
	return out, vrows.Err()
}

// Update implements registry.Repository
func (r *PluginRepository) Update(ctx context.Context, id string, fn registry.MutateFunc) (updated *registry.Plugin, err error) {
	ctx, span := startSpan(ctx, "UpdatePlugin", id)
	defer func() { endSpan(span, err) }()

	tx, err := r.cm.Primary().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	current, err := r.get(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.ID != current.ID {
		return nil, apperrors.New(apperrors.KindInternal, "plugin id is immutable")
	}
	if err := registry.CheckAppendOnly(current, next); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, r.d.Rebind(`
		UPDATE plugins SET name = ?, compatibility = ?, owner = ?, status = ?, orphaned = ?, updated_at = ?
		WHERE id = ?`),
		next.Name, next.Compatibility, next.Owner, string(next.Status), next.Orphaned, next.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update plugin: %w", err)
	}

	if added := next.Versions[len(current.Versions):]; len(added) > 0 {
		var maxPos int
		err := tx.QueryRowContext(ctx, r.d.Rebind(
			`SELECT COALESCE(MAX(position), -1) FROM plugin_versions WHERE plugin_id = ?`), id).Scan(&maxPos)
		if err != nil {
			return nil, fmt.Errorf("failed to read version position: %w", err)
		}
		for i, v := range added {
			if err := r.insertVersion(ctx, tx, id, maxPos+1+i, v); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit plugin update: %w", err)
	}
	return next, nil
}

// Delete implements registry.Repository
func (r *PluginRepository) Delete(ctx context.Context, id string) error {
	return r.DeleteIf(ctx, id, nil)
}

// DeleteIf implements registry.Repository. The row stays locked from the check
// until the delete commits.
func (r *PluginRepository) DeleteIf(ctx context.Context, id string, check registry.CheckFunc) (err error) {
	ctx, span := startSpan(ctx, "DeletePlugin", id)
	defer func() { endSpan(span, err) }()

	tx, err := r.cm.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if check != nil {
		current, err := r.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := check(current); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM plugin_versions WHERE plugin_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete plugin versions: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM plugins WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete plugin: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return registry.ErrPluginNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plugin delete: %w", err)
	}
	return nil
}

// OrphanByOwner implements registry.Repository with a single UPDATE on the primary
func (r *PluginRepository) OrphanByOwner(ctx context.Context, owner string, now time.Time) (ids []string, err error) {
	ctx, span := startSpan(ctx, "OrphanPlugins", owner)
	defer func() { endSpan(span, err) }()

	rows, err := r.cm.Primary().QueryContext(ctx, r.d.Rebind(`
		UPDATE plugins SET orphaned = ?, updated_at = ?
		WHERE owner = ? AND orphaned = ?
		RETURNING id`),
		true, now, owner, false)
	if err != nil {
		return nil, fmt.Errorf("failed to orphan plugins: %w", err)
	}
	defer rows.Close()

	ids = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan orphaned plugin: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orphaned plugins: %w", err)
	}
	return ids, nil
}
