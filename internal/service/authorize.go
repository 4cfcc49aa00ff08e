package service

import (
	"github.com/google/uuid"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

// Actions the HTTP layer asks about before touching a resource.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Resource is the target of an authorization check, identified by the
// tenant it belongs to and optionally the user that owns it.
type Resource struct {
	TenantID uuid.UUID
	OwnerID  uuid.UUID
}

// Authorize decides whether the token subject may perform action on
// resource. The model is deliberately small: a subject is confined to its
// own tenant, and owner-scoped resources additionally require the subject
// to be the owner.
func Authorize(subject *models.Claims, action string, resource Resource) error {
	if subject == nil {
		return domainErrors.ErrTokenInvalid
	}
	if resource.TenantID != uuid.Nil && subject.TenantID != resource.TenantID {
		return domainErrors.ErrTenantMismatch
	}
	if resource.OwnerID == uuid.Nil || subject.UserID == resource.OwnerID {
		return nil
	}
	// Non-owners may read within their tenant but never mutate.
	if action == ActionRead {
		return nil
	}
	return domainErrors.ErrTenantMismatch
}
