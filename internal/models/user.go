package models

import (
	"strings"
	"time"
)

// User is an account that can own boards, be a board member, and work on tasks.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Email       string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Username    string     `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Password    string     `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Fullname    string     `gorm:"size:255" json:"fullname"`
	FirstName   string     `gorm:"size:150" json:"first_name"`
	LastName    string     `gorm:"size:150" json:"last_name"`
	IsStaff     bool       `gorm:"default:false" json:"is_staff"`
	IsSuperuser bool       `gorm:"default:false" json:"is_superuser"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLogin   *time.Time `json:"last_login"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// DisplayName returns the name shown wherever a user appears as a member or author.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	return DisplayName(u.Fullname, u.FirstName, u.LastName)
}

// DisplayName prefers a non-blank full name and otherwise joins first and last name.
func DisplayName(fullname, firstName, lastName string) string {
	if name := strings.TrimSpace(fullname); name != "" {
		return name
	}
	return strings.TrimSpace(firstName + " " + lastName)
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
