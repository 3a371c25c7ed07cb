// Package clubpolicy answers per-club authorization questions by resolving
// a member's role document and checking its permission set.
//
// Authorization rules:
//   - A member acts through the permissions of their club role
//   - A role carrying the full permission vocabulary is owner-equivalent
//   - Owner-equivalent members cannot be kicked and cannot leave while
//     they are the club's only owner-equivalent member
//   - Platform admins bypass club permissions entirely (checked at the
//     middleware layer, not here)
package clubpolicy

import (
	"context"
	"errors"

	rolestore "github.com/dalemusser/clubhub/internal/app/store/roles"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotMember = errors.New("user is not a member of this club")

type Policy struct {
	Roles *rolestore.Store
}

func New(roles *rolestore.Store) *Policy {
	return &Policy{Roles: roles}
}

// MemberRole resolves the role document behind a member's club entry.
func (p *Policy) MemberRole(ctx context.Context, club *models.Club, userID primitive.ObjectID) (*models.Role, error) {
	entry := club.MemberEntry(userID)
	if entry == nil {
		return nil, ErrNotMember
	}
	return p.Roles.FindByID(ctx, entry.RoleID)
}

// HasPermission reports whether the member's role grants perm.
func (p *Policy) HasPermission(ctx context.Context, club *models.Club, userID primitive.ObjectID, perm string) (bool, error) {
	role, err := p.MemberRole(ctx, club, userID)
	if err != nil {
		if errors.Is(err, ErrNotMember) {
			return false, nil
		}
		return false, err
	}
	return role.Has(perm), nil
}

// IsOwner reports whether the member holds an owner-equivalent role.
func (p *Policy) IsOwner(ctx context.Context, club *models.Club, userID primitive.ObjectID) (bool, error) {
	role, err := p.MemberRole(ctx, club, userID)
	if err != nil {
		if errors.Is(err, ErrNotMember) {
			return false, nil
		}
		return false, err
	}
	return role.IsOwnerEquivalent(), nil
}

// CanRemove reports whether actor may kick target from the club. The
// actor needs the kick permission and the target must not hold an
// owner-equivalent role.
func (p *Policy) CanRemove(ctx context.Context, club *models.Club, actorID, targetID primitive.ObjectID) (bool, error) {
	ok, err := p.HasPermission(ctx, club, actorID, models.PermKickMembers)
	if err != nil || !ok {
		return false, err
	}
	targetOwner, err := p.IsOwner(ctx, club, targetID)
	if err != nil {
		return false, err
	}
	return !targetOwner, nil
}

// OwnerCount counts members holding owner-equivalent roles. Used to stop
// the last owner from leaving.
func (p *Policy) OwnerCount(ctx context.Context, club *models.Club) (int, error) {
	ids := make([]primitive.ObjectID, 0, len(club.Members))
	for _, m := range club.Members {
		ids = append(ids, m.RoleID)
	}
	roles, err := p.Roles.FindByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range club.Members {
		if role, ok := roles[m.RoleID]; ok && role.IsOwnerEquivalent() {
			count++
		}
	}
	return count, nil
}
