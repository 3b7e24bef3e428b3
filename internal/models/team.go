package models

// Team is a named group that owns tasks. Exactly one user owns each team.
type Team struct {
	BaseModel

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	OwnerID     string `gorm:"type:uuid;not null;index" json:"owner_id"`

	Owner       *User        `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	Memberships []Membership `gorm:"foreignKey:TeamID" json:"-"`
	Tasks       []Task       `gorm:"foreignKey:TeamID" json:"tasks,omitempty"`
}
