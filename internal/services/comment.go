package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

type CommentService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db, now: time.Now}
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

// List returns the task's comments oldest first.
func (s *CommentService) List(ctx context.Context, actorID, taskID uint) ([]CommentView, error) {
	db := s.db.WithContext(ctx)
	task, err := findTask(db, taskID)
	if err != nil {
		return nil, err
	}
	if !CanAccessTask(actorID, task) {
		return nil, response.NewForbidden("You do not have access to this task.")
	}

	var comments []models.Comment
	if err := orderComments(db.Preload("Author").Where("task_id = ?", taskID)).Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	views := make([]CommentView, 0, len(comments))
	for i := range comments {
		views = append(views, NewCommentView(&comments[i]))
	}
	return views, nil
}

// Create adds a comment authored by the actor.
func (s *CommentService) Create(ctx context.Context, actorID, taskID uint, req *CreateCommentRequest) (*CommentView, error) {
	db := s.db.WithContext(ctx)
	task, err := findTask(db, taskID)
	if err != nil {
		return nil, err
	}
	if !CanAccessTask(actorID, task) {
		return nil, response.NewForbidden("You do not have access to this task.")
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, response.NewValidation("content", msgBlank)
	}

	comment := models.Comment{
		TaskID:    taskID,
		AuthorID:  actorID,
		Text:      content,
		CreatedAt: s.now(),
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&comment).Error
	}); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	var author models.User
	if err := db.First(&author, actorID).Error; err != nil {
		return nil, fmt.Errorf("load comment author: %w", err)
	}
	comment.Author = &author
	v := NewCommentView(&comment)
	return &v, nil
}

// Delete removes a comment. Only its author may do so.
func (s *CommentService) Delete(ctx context.Context, actorID, taskID, commentID uint) error {
	db := s.db.WithContext(ctx)
	if _, err := findTask(db, taskID); err != nil {
		return err
	}

	var comment models.Comment
	if err := db.Where("id = ? AND task_id = ?", commentID, taskID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("comment")
		}
		return fmt.Errorf("find comment %d: %w", commentID, err)
	}
	if !CanDeleteComment(actorID, &comment) {
		return response.NewForbidden("Only the author can delete this comment.")
	}

	if err := db.Delete(&models.Comment{}, commentID).Error; err != nil {
		return fmt.Errorf("delete comment %d: %w", commentID, err)
	}
	return nil
}
