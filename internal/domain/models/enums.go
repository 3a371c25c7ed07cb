// internal/domain/models/enums.go
package models

// Join request lifecycle. PENDING is the only state that blocks a new
// request; DENIED is terminal for that request but the user may request
// again.
const (
	JoinStatusPending  = "PENDING"
	JoinStatusAccepted = "ACCEPTED"
	JoinStatusDenied   = "DENIED"
)

// Platform-level roles, distinct from per-club roles. Admin actions
// (ban/unban/hard delete, enabling clubs) require AppRoleAdmin.
const (
	AppRoleAdmin  = "ADMIN"
	AppRoleMod    = "MOD"
	AppRoleMember = "MEMBER"
)

// ClubTags is the fixed tag vocabulary clubs and user interests draw from.
var ClubTags = []string{
	"SPORTS", "MUSIC", "THEATER", "TECHNOLOGY", "LEADERSHIP",
	"FRATERNITY", "SORORITY", "ART", "FILM", "COOKING",
	"VOLUNTEERING", "GAMING", "CULTURE", "LANGUAGE", "SCIENCE",
	"POLITICS", "SPIRITUAL", "BAKING", "MATH", "ANIMALS",
}

// IsValidClubTag reports whether tag is part of the fixed vocabulary.
func IsValidClubTag(tag string) bool {
	for _, t := range ClubTags {
		if t == tag {
			return true
		}
	}
	return false
}
