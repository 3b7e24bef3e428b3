package models

import "time"

// TeamInvite represents an invitation sent to an email address that has no
// account yet. Registration with a matching team consumes the invite.
type TeamInvite struct {
	BaseModel

	Email      string     `gorm:"not null;index" json:"email"`
	TokenHash  string     `gorm:"not null" json:"-"`
	TeamID     string     `gorm:"type:uuid;not null;index" json:"team_id"`
	InvitedBy  string     `gorm:"type:uuid" json:"invited_by"`
	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`

	Team *Team `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"team,omitempty"`
}
