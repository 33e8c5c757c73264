package services

import (
	"time"

	"github.com/huangang/taskboard/internal/models"
)

const dateLayout = "2006-01-02"

// MemberView is how a user appears inside boards and tasks.
type MemberView struct {
	ID       uint   `json:"id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

func NewMemberView(u *models.User) *MemberView {
	if u == nil {
		return nil
	}
	return &MemberView{ID: u.ID, Fullname: u.DisplayName(), Email: u.Email}
}

type CommentView struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
}

func NewCommentView(c *models.Comment) CommentView {
	return CommentView{
		ID:        c.ID,
		CreatedAt: c.CreatedAt,
		Author:    c.Author.DisplayName(),
		Content:   c.Text,
	}
}

// TaskView is the single wire shape for a task. Assignee, Reviewer and
// Comments.Author must be preloaded.
type TaskView struct {
	ID            uint          `json:"id"`
	Board         uint          `json:"board"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Status        string        `json:"status"`
	Priority      string        `json:"priority"`
	Assignee      *MemberView   `json:"assignee"`
	Reviewer      *MemberView   `json:"reviewer"`
	DueDate       *string       `json:"due_date"`
	CreatedBy     *uint         `json:"created_by"`
	Comments      []CommentView `json:"comments"`
	CommentsCount int           `json:"comments_count"`
	LastComment   *string       `json:"last_comment"`
}

func NewTaskView(t *models.Task) TaskView {
	view := TaskView{
		ID:          t.ID,
		Board:       t.BoardID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Assignee:    NewMemberView(t.Assignee),
		Reviewer:    NewMemberView(t.Reviewer),
		CreatedBy:   t.CreatedByID,
		Comments:    make([]CommentView, 0, len(t.Comments)),
	}
	if t.DueDate != nil {
		d := t.DueDate.Format(dateLayout)
		view.DueDate = &d
	}

	var latest *models.Comment
	for i := range t.Comments {
		c := &t.Comments[i]
		view.Comments = append(view.Comments, NewCommentView(c))
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) ||
			(c.CreatedAt.Equal(latest.CreatedAt) && c.ID > latest.ID) {
			latest = c
		}
	}
	view.CommentsCount = len(t.Comments)
	if latest != nil {
		text := latest.Text
		view.LastComment = &text
	}
	return view
}

func newTaskViews(tasks []models.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, NewTaskView(&tasks[i]))
	}
	return views
}

// BoardSummary is the list representation. Counts are computed at read time.
type BoardSummary struct {
	ID                 uint   `json:"id"`
	Title              string `json:"title"`
	OwnerID            uint   `json:"owner_id"`
	MemberCount        int    `json:"member_count"`
	TicketCount        int    `json:"ticket_count"`
	TasksToDoCount     int    `json:"tasks_to_do_count"`
	TasksHighPrioCount int    `json:"tasks_high_prio_count"`
}

// BoardDetail nests members and full task views.
type BoardDetail struct {
	ID      uint         `json:"id"`
	Title   string       `json:"title"`
	OwnerID uint         `json:"owner_id"`
	Members []MemberView `json:"members"`
	Tasks   []TaskView   `json:"tasks"`
}

func NewBoardDetail(b *models.Board) *BoardDetail {
	detail := &BoardDetail{
		ID:      b.ID,
		Title:   b.Title,
		OwnerID: b.OwnerID,
		Members: make([]MemberView, 0, len(b.Members)),
		Tasks:   newTaskViews(b.Tasks),
	}
	for i := range b.Members {
		detail.Members = append(detail.Members, *NewMemberView(&b.Members[i]))
	}
	return detail
}

// InvitationView is returned to the board owner who created the invitation.
type InvitationView struct {
	ID        uint      `json:"id"`
	Board     uint      `json:"board"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewInvitationView(inv *models.Invitation) *InvitationView {
	return &InvitationView{
		ID:        inv.ID,
		Board:     inv.BoardID,
		Email:     inv.Email,
		Token:     inv.Token,
		ExpiresAt: inv.ExpiresAt,
	}
}
