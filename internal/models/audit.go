package models

import (
	"strings"
	"time"
)

// Audit actions.
const (
	AuditUserCreate = "user.create"
	AuditUserUpdate = "user.update"
	AuditUserDelete = "user.delete"
)

// Redacted replaces secrets in audit changes.
const Redacted = "[redacted]"

// AuditRecord describes a mutating action performed by an administrator.
type AuditRecord struct {
	PerformedBy     string                 `json:"performedBy"`
	Action          string                 `json:"action"`
	TargetAccountID string                 `json:"targetAccountId"`
	Changes         map[string]interface{} `json:"changes,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

// AuditChanges lists the fields set by the patch. A password is never included.
func (p UserPatch) AuditChanges() map[string]interface{} {
	changes := map[string]interface{}{}
	if p.Name != nil {
		changes["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		changes["email"] = NormalizeEmail(*p.Email)
	}
	if p.Role != nil {
		changes["role"] = *p.Role
	}
	if p.Password != nil {
		changes["password"] = Redacted
	}
	return changes
}

// AuditChanges describes the created account without its password.
func (d UserDraft) AuditChanges() map[string]interface{} {
	role := d.Role
	if role == "" {
		role = RoleUser
	}
	return map[string]interface{}{
		"name":     strings.TrimSpace(d.Name),
		"email":    NormalizeEmail(d.Email),
		"role":     role,
		"password": Redacted,
	}
}
