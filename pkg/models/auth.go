package models

import (
	"github.com/nexusportal/backend/pkg/constants"
)

// PrincipalKind distinguishes the record type backing an authenticated
// portal visitor. Portal sign-ins are contacts; staff sign-ins are users.
type PrincipalKind string

const (
	PrincipalContact   PrincipalKind = "contact"
	PrincipalUser      PrincipalKind = "user"
	PrincipalAnonymous PrincipalKind = "anonymous"
)

// PortalUser is the authenticated (or anonymous) principal for a request
type PortalUser struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Email       *string       `json:"email,omitempty"`
	Kind        PrincipalKind `json:"kind"`
	AnonymousID string        `json:"anonymous_id,omitempty"`
}

// EntityName returns the record type that stores this principal
func (u *PortalUser) EntityName() string {
	if u.Kind == PrincipalUser {
		return "user"
	}
	return "contact"
}

// IsAnonymous reports whether the visitor has no authenticated record
func (u *PortalUser) IsAnonymous() bool {
	return u == nil || u.Kind == PrincipalAnonymous || u.ID == ""
}

// ToMap converts PortalUser to a map for expression context
func (u *PortalUser) ToMap() map[string]interface{} {
	return map[string]interface{}{
		constants.FieldID:    u.ID,
		constants.FieldName:  u.Name,
		constants.FieldEmail: u.Email,
		"kind":               string(u.Kind),
	}
}
