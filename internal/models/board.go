package models

import "time"

// Board is a shared workspace. The owner always has access whether or not
// they appear in Members.
type Board struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	OwnerID   uint      `gorm:"index;not null" json:"owner_id"`
	Owner     *User     `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	Members   []User    `gorm:"many2many:board_members;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Tasks     []Task    `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Board) TableName() string { return "boards" }

// HasMember reports whether userID is in the loaded member set.
func (b *Board) HasMember(userID uint) bool {
	for _, m := range b.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// MemberIDs returns the ids of the loaded member set.
func (b *Board) MemberIDs() []uint {
	ids := make([]uint, 0, len(b.Members))
	for _, m := range b.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

// BoardMember is the join row between a board and one of its members.
type BoardMember struct {
	BoardID   uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"primaryKey;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (BoardMember) TableName() string { return "board_members" }
