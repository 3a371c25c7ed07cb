// internal/domain/models/role.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Preset role names. Presets are created once at startup and shared by
// every club; they have no ClubID.
const (
	OwnerRoleName  = "President"
	MemberRoleName = "Member"
)

// Role is a named permission set assignable to club members. Custom roles
// belong to one club; preset roles are deployment-wide and immutable.
type Role struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name        string              `bson:"name" json:"name"`
	Permissions []string            `bson:"permissions" json:"permissions"`
	Preset      bool                `bson:"preset" json:"preset"`
	ClubID      *primitive.ObjectID `bson:"club_id,omitempty" json:"club_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Has reports whether the role carries the given permission.
func (r *Role) Has(perm string) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// IsOwnerEquivalent reports whether the role is the highest-privilege
// tier: it carries the entire permission vocabulary. Members holding an
// owner-equivalent role cannot be kicked.
func (r *Role) IsOwnerEquivalent() bool {
	return HasAllPermissions(r.Permissions)
}
