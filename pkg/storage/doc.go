// Package storage assembles the persistence backends of the plugin portal.
//
// Open turns a Config into a Backends value holding the plugin repository,
// the account store, the session store, the package blob store and the audit
// logger. Each concern picks its backend independently:
//
//	Concern   Backends
//	-------   --------
//	records   memory | sqlite | postgres   (pkg/storage/memory, pkg/storage/sqlstore)
//	sessions  memory | redis               (auth.MemorySessionStore, pkg/storage/redisstore)
//	packages  memory | filesystem | s3     (pkg/packages)
//	audit     memory | file | database     (pkg/audit)
//
// The database audit backend shares the SQL connection of the record store and
// therefore requires a sqlite or postgres record store. A comma separated audit
// backend such as "database,file" records to each and lists from the first.
//
// Backends.HealthCheck pings every remote dependency and is used by the
// readiness endpoint. Backends.Close releases them in reverse order.
package storage
