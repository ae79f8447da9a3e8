// Package sqlstore implements the plugin and user repositories on SQL databases.
//
// Two drivers are supported: PostgreSQL through lib/pq and SQLite through
// mattn/go-sqlite3. Every mutation runs in one transaction. PostgreSQL locks
// the plugin row with SELECT ... FOR UPDATE; SQLite connections open
// transactions with BEGIN IMMEDIATE, which serializes writers.
//
// Versions live in plugin_versions keyed by (plugin_id, position). A new
// version takes MAX(position)+1 inside the locking transaction, so concurrent
// appends never collide or get lost.
package sqlstore
