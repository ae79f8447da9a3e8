// Package audit provides the append-only moderation audit log for the plugin portal.
//
// # Overview
//
// Every moderation or administrative action that changes a plugin or an account
// appends one Entry. Entries are never mutated or deleted.
//
// # Actions
//
// Plugins: plugin.edited, plugin.deleted, plugin.rejected, plugin.published
// Accounts: user.role_changed, user.deleted
//
// # Usage Example
//
//	entry := audit.NewEntry("admin", audit.ActionPluginRejected, "acme.widget", "incomplete")
//	if err := logger.Record(ctx, entry); err != nil {
//		return err
//	}
//
//	entries, err := logger.List(ctx, audit.Filter{Action: audit.ActionPluginRejected})
//	data, err := audit.Export(entries, audit.FormatCSV)
//
// # Backends
//
// MemoryLogger keeps entries in process. FileLogger appends JSON lines with
// optional rotation. DBLogger writes to the audit_logs table. MultiLogger fans
// out to several backends and reads from the first.
package audit
