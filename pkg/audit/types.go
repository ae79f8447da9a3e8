package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action is the tag identifying an audited action
type Action string

const (
	ActionPluginEdited    Action = "plugin.edited"
	ActionPluginDeleted   Action = "plugin.deleted"
	ActionPluginRejected  Action = "plugin.rejected"
	ActionPluginPublished Action = "plugin.published"
	ActionUserRoleChanged Action = "user.role_changed"
	ActionUserDeleted     Action = "user.deleted"
)

// Entry is a single immutable audit log record
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	Target    string    `json:"target"`
	Reason    string    `json:"reason,omitempty"`
}

// NewEntry builds an entry stamped with a fresh id and the current UTC time.
func NewEntry(actor string, action Action, target, reason string) *Entry {
	return &Entry{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Action:    action,
		Target:    target,
		Reason:    reason,
	}
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	Actor  string
	Action Action
	Target string
	Since  *time.Time
	Until  *time.Time
	Limit  int
}

// Matches reports whether e satisfies every set field of f.
func (f Filter) Matches(e *Entry) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Target != "" && e.Target != f.Target {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

// apply filters entries in order and honours the limit
func (f Filter) apply(entries []*Entry) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if !f.Matches(e) {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}
