package auth

import (
	"fmt"

	"github.com/isdelr/accounts-be/internal/common"
	"github.com/isdelr/accounts-be/internal/models"
)

// Action is an operation on user accounts subject to the access policy.
type Action string

const (
	ActionList         Action = "list"
	ActionListInactive Action = "listInactive"
	ActionCreate       Action = "create"
	ActionDelete       Action = "delete"
	ActionRead         Action = "read"
	ActionUpdate       Action = "update"
)

// Requester is the authenticated caller, as carried by the session token.
type Requester struct {
	ID    string
	Email string
	Role  models.Role
}

// IsAdmin reports whether the requester holds the admin role.
func (r Requester) IsAdmin() bool {
	return r.Role == models.RoleAdmin
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err returns nil for allowed decisions and a wrapped common.ErrForbidden otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", common.ErrForbidden, d.Reason)
}

const (
	ReasonAdminOnly     = "administrator role required"
	ReasonNotOwner      = "you can only access your own account"
	ReasonSelfDemotion  = "administrators cannot remove their own admin role"
	ReasonRoleChange    = "only administrators can change roles"
	ReasonUnknownAction = "unknown action"
)

func allow() Decision              { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Policy decides whether a requester may perform an action on a target account.
// It has no side effects and no knowledge of the transport.
type Policy struct{}

// Decide evaluates the rules in order. targetID and patch are only consulted
// for read and update.
func (Policy) Decide(requester Requester, action Action, targetID string, patch *models.UserPatch) Decision {
	switch action {
	case ActionList, ActionListInactive, ActionCreate, ActionDelete:
		if !requester.IsAdmin() {
			return deny(ReasonAdminOnly)
		}
		return allow()
	case ActionRead, ActionUpdate:
	default:
		return deny(ReasonUnknownAction)
	}

	self := requester.ID != "" && requester.ID == targetID
	if !requester.IsAdmin() && !self {
		return deny(ReasonNotOwner)
	}
	if action == ActionRead || patch == nil || patch.Role == nil || !self {
		return allow()
	}

	if requester.IsAdmin() && *patch.Role != models.RoleAdmin {
		return deny(ReasonSelfDemotion)
	}
	if !requester.IsAdmin() && *patch.Role != requester.Role {
		return deny(ReasonRoleChange)
	}
	return allow()
}
