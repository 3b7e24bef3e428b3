package models

// User is a registered account identified by a unique email address.
type User struct {
	BaseModel

	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	Memberships []Membership `gorm:"foreignKey:UserID" json:"-"`
	Sessions    []Session    `gorm:"foreignKey:UserID" json:"-"`
}

// PublicProfile is the subset of user fields safe to return to clients.
type PublicProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public projects the user onto its client-visible fields.
func (u *User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, Name: u.Name, Email: u.Email}
}
