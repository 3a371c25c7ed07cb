// internal/domain/models/club.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClubMember is the club-side half of the membership mirror.
type ClubMember struct {
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	RoleID     primitive.ObjectID `bson:"role_id" json:"role_id"`
	ApprovedAt time.Time          `bson:"approved_at" json:"approved_at"`
}

// ClubJoinRequest is the club-side half of a join request.
type ClubJoinRequest struct {
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Status      string             `bson:"status" json:"status"`
	RequestedAt time.Time          `bson:"requested_at" json:"requested_at"`
}

// SoftDelete marks a club as deleted without removing the document.
// Deleted clubs are excluded from name uniqueness and from every read path.
type SoftDelete struct {
	IsDeleted bool       `bson:"is_deleted" json:"is_deleted"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Club is a student club. New clubs start disabled and become visible once
// a platform admin enables them.
type Club struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"name_ci"`
	Description string             `bson:"description" json:"description"`
	Logo        string             `bson:"logo,omitempty" json:"logo,omitempty"`
	Theme       string             `bson:"theme,omitempty" json:"theme,omitempty"`
	Tags        []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Pictures    []string           `bson:"pictures,omitempty" json:"pictures,omitempty"`

	IsEnabled bool       `bson:"is_enabled" json:"is_enabled"`
	Deleted   SoftDelete `bson:"deleted" json:"deleted"`

	Members      []ClubMember         `bson:"members" json:"members"`
	JoinRequests []ClubJoinRequest    `bson:"join_requests" json:"join_requests"`
	RoleIDs      []primitive.ObjectID `bson:"role_ids,omitempty" json:"role_ids,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// MemberEntry returns the club-side member entry for userID, if any.
func (c *Club) MemberEntry(userID primitive.ObjectID) *ClubMember {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i]
		}
	}
	return nil
}

// HasPendingRequest reports whether userID has a PENDING request on the
// club side.
func (c *Club) HasPendingRequest(userID primitive.ObjectID) bool {
	for _, jr := range c.JoinRequests {
		if jr.UserID == userID && jr.Status == JoinStatusPending {
			return true
		}
	}
	return false
}
