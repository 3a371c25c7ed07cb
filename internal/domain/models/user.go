// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClubMembership is the user-side half of the membership mirror: one entry
// per club the user belongs to, referencing the per-club role.
type ClubMembership struct {
	ClubID     primitive.ObjectID `bson:"club_id" json:"club_id"`
	RoleID     primitive.ObjectID `bson:"role_id" json:"role_id"`
	ApprovedAt time.Time          `bson:"approved_at" json:"approved_at"`
}

// UserJoinRequest is the user-side half of a join request.
type UserJoinRequest struct {
	ClubID      primitive.ObjectID `bson:"club_id" json:"club_id"`
	Status      string             `bson:"status" json:"status"`
	RequestedAt time.Time          `bson:"requested_at" json:"requested_at"`
}

// NotificationSettings controls whether the user receives push
// notifications (chat messages, announcements, membership decisions).
type NotificationSettings struct {
	Enabled bool `bson:"enabled" json:"enabled"`
}

// UserSettings holds per-user preferences.
type UserSettings struct {
	Notifications NotificationSettings `bson:"notifications" json:"notifications"`
}

// User represents an account.
//
// NOTE:
//   - Clubs and JoinRequests mirror the member/join-request arrays on the
//     Club documents. For any active (non-banned) user the two sides must
//     agree; membershipstore is the only writer of either side.
//   - While a user is banned, the club-side entries are purged but the
//     user-side arrays are kept as the restoration snapshot for unban.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	NameCI         string             `bson:"name_ci" json:"name_ci"` // lowercase, diacritics-stripped
	Email          string             `bson:"email" json:"email"`
	ProfilePicture string             `bson:"profile_picture,omitempty" json:"profile_picture,omitempty"`
	Bio            string             `bson:"bio,omitempty" json:"bio,omitempty"`
	Tags           []string           `bson:"tags,omitempty" json:"tags,omitempty"`

	AppRole     string     `bson:"app_role" json:"app_role"` // ADMIN | MOD | MEMBER
	IsConfirmed bool       `bson:"is_confirmed" json:"is_confirmed"`
	IsDisabled  bool       `bson:"is_disabled" json:"is_disabled"`
	IsBanned    bool       `bson:"is_banned" json:"is_banned"`
	BannedAt    *time.Time `bson:"banned_at,omitempty" json:"banned_at,omitempty"`

	PushToken string       `bson:"push_token,omitempty" json:"-"`
	Settings  UserSettings `bson:"settings" json:"settings"`

	Clubs        []ClubMembership  `bson:"clubs" json:"clubs"`
	JoinRequests []UserJoinRequest `bson:"join_requests" json:"join_requests"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// MembershipFor returns the user-side membership entry for clubID, if any.
func (u *User) MembershipFor(clubID primitive.ObjectID) *ClubMembership {
	for i := range u.Clubs {
		if u.Clubs[i].ClubID == clubID {
			return &u.Clubs[i]
		}
	}
	return nil
}

// PendingRequestFor returns the user's PENDING request for clubID, if any.
func (u *User) PendingRequestFor(clubID primitive.ObjectID) *UserJoinRequest {
	for i := range u.JoinRequests {
		if u.JoinRequests[i].ClubID == clubID && u.JoinRequests[i].Status == JoinStatusPending {
			return &u.JoinRequests[i]
		}
	}
	return nil
}
