package models

import "time"

// Invitation is a pending offer of board membership addressed to an email.
type Invitation struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	BoardID     uint       `gorm:"index;not null" json:"board"`
	Board       *Board     `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE" json:"-"`
	Email       string     `gorm:"size:255;index;not null" json:"email"`
	Token       string     `gorm:"uniqueIndex;size:64;not null" json:"token"`
	InvitedByID uint       `gorm:"not null" json:"invited_by"`
	ExpiresAt   time.Time  `gorm:"index;not null" json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (Invitation) TableName() string { return "board_invitations" }

// Expired reports whether the invitation can no longer be accepted at now.
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
