package models

import "time"

// Task workflow states.
const (
	StatusToDo       = "to-do"
	StatusInProgress = "in-progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Task priorities. An empty priority is allowed.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var (
	TaskStatuses   = []string{StatusToDo, StatusInProgress, StatusReview, StatusDone}
	TaskPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh}
)

// ValidStatus reports whether s is a known workflow state.
func ValidStatus(s string) bool {
	for _, v := range TaskStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ValidPriority reports whether p is a known priority or empty.
func ValidPriority(p string) bool {
	if p == "" {
		return true
	}
	for _, v := range TaskPriorities {
		if v == p {
			return true
		}
	}
	return false
}

// Task is a unit of work on exactly one board. BoardID never changes after creation.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	BoardID     uint       `gorm:"index;not null" json:"board"`
	Board       *Board     `gorm:"foreignKey:BoardID" json:"-"`
	AssigneeID  *uint      `gorm:"index" json:"assignee_id"`
	Assignee    *User      `gorm:"foreignKey:AssigneeID;constraint:OnDelete:SET NULL" json:"assignee,omitempty"`
	ReviewerID  *uint      `gorm:"index" json:"reviewer_id"`
	Reviewer    *User      `gorm:"foreignKey:ReviewerID;constraint:OnDelete:SET NULL" json:"reviewer,omitempty"`
	Status      string     `gorm:"size:50;not null;default:to-do;index" json:"status"`
	Priority    string     `gorm:"size:50;index" json:"priority"`
	DueDate     *time.Time `gorm:"type:date" json:"due_date"`
	Done        bool       `gorm:"default:false" json:"done"` // legacy mirror of Status == done
	CreatedByID *uint      `gorm:"index" json:"created_by"`
	CreatedBy   *User      `gorm:"foreignKey:CreatedByID;constraint:OnDelete:CASCADE" json:"-"`
	Comments    []Comment  `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }

// Comment is an annotation on a task. CreatedAt is set once on insert.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"index;not null" json:"task_id"`
	Task      *Task     `gorm:"foreignKey:TaskID" json:"-"`
	AuthorID  uint      `gorm:"index;not null" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"index;<-:create" json:"created_at"`
}

func (Comment) TableName() string { return "comments" }
