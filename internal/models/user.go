package models

import "time"

// Roles recognised across the netpanel portals.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleReseller   = "reseller"
	RoleTechnician = "technician"
	RoleCustomer   = "customer"
)

// User represents a platform user as returned by the auth API.
type User struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Email       string    `bson:"email" json:"email"`
	Name        string    `bson:"name" json:"name"`
	Role        string    `bson:"role" json:"role"`
	Permissions []string  `bson:"permissions" json:"permissions"`
	TenantID    string    `bson:"tenantId,omitempty" json:"tenantId,omitempty"`
	MFAEnabled  bool      `bson:"mfaEnabled" json:"mfaEnabled"`
	CreatedAt   time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt   time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// HasPermission reports whether the user carries the named permission.
// Super admins implicitly hold every permission.
func (u *User) HasPermission(perm string) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleSuperAdmin {
		return true
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Merge copies non-zero fields of other into u. Slices are replaced, not
// appended, so a partial update can shrink a permission set.
func (u *User) Merge(other User) {
	if other.ID != "" {
		u.ID = other.ID
	}
	if other.Email != "" {
		u.Email = other.Email
	}
	if other.Name != "" {
		u.Name = other.Name
	}
	if other.Role != "" {
		u.Role = other.Role
	}
	if other.Permissions != nil {
		u.Permissions = other.Permissions
	}
	if other.TenantID != "" {
		u.TenantID = other.TenantID
	}
	if other.MFAEnabled {
		u.MFAEnabled = true
	}
}
