// Package users manages portal accounts and their sessions.
//
// Accounts hold a bcrypt password hash, a role and an active flag. Login checks
// credentials and issues a session through auth.SessionManager; refresh re-reads
// the account so role changes and deactivation apply to the next token pair.
//
// Deleting an account orphans every plugin it owned and records user.deleted in
// the audit log.
package users
