// internal/domain/models/permissions.go
package models

import "strings"

// Club permission vocabulary. Role documents carry a subset of these;
// the owner preset carries all of them, the member preset none.
const (
	PermApproveMembers      = "APPROVE_MEMBERS"
	PermKickMembers         = "KICK_MEMBERS"
	PermManageRoles         = "MANAGE_ROLES"
	PermManageEvents        = "MANAGE_EVENTS"
	PermManageAnnouncements = "MANAGE_ANNOUNCEMENTS"
	PermManageClub          = "MANAGE_CLUB"
)

// AllPermissions is the full vocabulary in a stable order.
var AllPermissions = []string{
	PermApproveMembers,
	PermKickMembers,
	PermManageRoles,
	PermManageEvents,
	PermManageAnnouncements,
	PermManageClub,
}

// IsValidPermission reports whether p (already uppercased) is known.
func IsValidPermission(p string) bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// NormalizePermissions uppercases each requested permission and splits the
// list into recognized and unrecognized values. Callers must treat a
// non-empty invalid slice as a rejection of the whole batch; no role may
// be created or updated with a partially valid set.
func NormalizePermissions(requested []string) (valid, invalid []string) {
	for _, p := range requested {
		up := strings.ToUpper(strings.TrimSpace(p))
		if IsValidPermission(up) {
			valid = append(valid, up)
		} else {
			invalid = append(invalid, p)
		}
	}
	return valid, invalid
}

// HasAllPermissions reports whether perms covers the entire vocabulary.
// A role satisfying this is owner-equivalent: it is the highest-privilege
// role for kick/ownership checks.
func HasAllPermissions(perms []string) bool {
	if len(perms) < len(AllPermissions) {
		return false
	}
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	for _, want := range AllPermissions {
		if _, ok := set[want]; !ok {
			return false
		}
	}
	return true
}
