package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

func TestAuthorize(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	subject := &models.Claims{UserID: userID, TenantID: tenantID}

	tests := []struct {
		name     string
		subject  *models.Claims
		action   string
		resource Resource
		wantErr  error
	}{
		{
			name:     "owner may mutate own resource",
			subject:  subject,
			action:   ActionWrite,
			resource: Resource{TenantID: tenantID, OwnerID: userID},
		},
		{
			name:     "owner may delete own resource",
			subject:  subject,
			action:   ActionDelete,
			resource: Resource{TenantID: tenantID, OwnerID: userID},
		},
		{
			name:     "tenant member may read unowned resource",
			subject:  subject,
			action:   ActionRead,
			resource: Resource{TenantID: tenantID},
		},
		{
			name:     "tenant member may read another member's resource",
			subject:  subject,
			action:   ActionRead,
			resource: Resource{TenantID: tenantID, OwnerID: uuid.New()},
		},
		{
			name:     "non-owner may not mutate",
			subject:  subject,
			action:   ActionWrite,
			resource: Resource{TenantID: tenantID, OwnerID: uuid.New()},
			wantErr:  domainErrors.ErrTenantMismatch,
		},
		{
			name:     "cross-tenant access rejected",
			subject:  subject,
			action:   ActionRead,
			resource: Resource{TenantID: uuid.New()},
			wantErr:  domainErrors.ErrTenantMismatch,
		},
		{
			name:     "nil subject rejected",
			subject:  nil,
			action:   ActionRead,
			resource: Resource{TenantID: tenantID},
			wantErr:  domainErrors.ErrTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.subject, tt.action, tt.resource)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
