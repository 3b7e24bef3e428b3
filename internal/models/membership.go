package models

import "time"

// Membership roles. Owners hold team-delete authority, owners and admins
// may manage team settings and any task, members act on assigned tasks.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Membership records the role of a user within a team. A user belongs to a
// team at most once, enforced by the composite unique index.
type Membership struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_team" json:"user_id"`
	TeamID string `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_team" json:"team_id"`
	Role   string `gorm:"not null;default:member" json:"role"`

	JoinedAt time.Time `json:"joined_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Team *Team `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
}

// ValidRole reports whether the supplied role is part of the taxonomy.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}
