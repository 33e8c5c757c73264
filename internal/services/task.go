package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

type TaskService struct {
	db *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{db: db}
}

type CreateTaskRequest struct {
	Board       *uint        `json:"board"`
	Title       string       `json:"title" binding:"max=255"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	AssigneeID  *uint        `json:"assignee_id"`
	ReviewerID  *uint        `json:"reviewer_id"`
	DueDate     NullableDate `json:"due_date"`
}

// UpdateTaskRequest is a partial update. For assignee_id, reviewer_id and
// due_date an explicit null clears the value while an absent key keeps it.
type UpdateTaskRequest struct {
	Board       *uint        `json:"board"`
	Title       *string      `json:"title" binding:"omitempty,max=255"`
	Description *string      `json:"description"`
	Status      *string      `json:"status"`
	Priority    *string      `json:"priority"`
	AssigneeID  NullableID   `json:"assignee_id"`
	ReviewerID  NullableID   `json:"reviewer_id"`
	DueDate     NullableDate `json:"due_date"`
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	switch len(f) {
	case 0:
		return nil
	case 1:
		for field, msg := range f {
			return response.NewValidation(field, msg)
		}
	}
	return response.NewValidationFields(f)
}

// List returns every task on boards the actor can access, newest first.
func (s *TaskService) List(ctx context.Context, actorID uint) ([]TaskView, error) {
	return s.listWhere(ctx, actorID, "", nil)
}

// ListAssignedToMe returns tasks assigned to the actor on boards the actor can access.
func (s *TaskService) ListAssignedToMe(ctx context.Context, actorID uint) ([]TaskView, error) {
	return s.listWhere(ctx, actorID, "assignee_id = ?", actorID)
}

// ListReviewing returns tasks the actor reviews on boards the actor can access.
func (s *TaskService) ListReviewing(ctx context.Context, actorID uint) ([]TaskView, error) {
	return s.listWhere(ctx, actorID, "reviewer_id = ?", actorID)
}

func (s *TaskService) listWhere(ctx context.Context, actorID uint, cond string, arg interface{}) ([]TaskView, error) {
	db := s.db.WithContext(ctx)

	query := withTaskRelations(db).Where("board_id IN (?)", accessibleBoardIDs(db, actorID))
	if cond != "" {
		query = query.Where(cond, arg)
	}

	var tasks []models.Task
	if err := query.Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return newTaskViews(tasks), nil
}

// Get returns one task the actor can access.
func (s *TaskService) Get(ctx context.Context, actorID, taskID uint) (*TaskView, error) {
	task, err := findTask(s.db.WithContext(ctx), taskID)
	if err != nil {
		return nil, err
	}
	if !CanAccessTask(actorID, task) {
		return nil, response.NewForbidden("You do not have access to this task.")
	}
	return s.view(ctx, taskID)
}

// Create adds a task to a board the actor can access and records the actor as its creator.
func (s *TaskService) Create(ctx context.Context, actorID uint, req *CreateTaskRequest) (*TaskView, error) {
	if req.Board == nil {
		return nil, response.NewValidation("board", msgRequired)
	}
	db := s.db.WithContext(ctx)
	board, err := findBoard(db, *req.Board)
	if err != nil {
		return nil, err
	}
	if !CanAccessBoard(actorID, board) {
		return nil, response.NewForbidden("You do not have access to this board.")
	}

	title := strings.TrimSpace(req.Title)
	status := req.Status
	if status == "" {
		status = models.StatusToDo
	}
	creator := actorID
	task := models.Task{
		Title:       title,
		Description: req.Description,
		BoardID:     board.ID,
		AssigneeID:  req.AssigneeID,
		ReviewerID:  req.ReviewerID,
		Status:      status,
		Priority:    req.Priority,
		DueDate:     req.DueDate.Value,
		Done:        status == models.StatusDone,
		CreatedByID: &creator,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		locked, err := lockBoard(tx, board.ID)
		if err != nil {
			return err
		}
		if !CanAccessBoard(actorID, locked) {
			return response.NewForbidden("You do not have access to this board.")
		}

		errs := fieldErrors{}
		if title == "" {
			errs.add("title", msgBlank)
		}
		validateStatus(errs, status)
		validatePriority(errs, req.Priority)
		validateAssignable(errs, "assignee_id", req.AssigneeID, locked)
		validateAssignable(errs, "reviewer_id", req.ReviewerID, locked)
		if err := errs.err(); err != nil {
			return err
		}

		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.view(ctx, task.ID)
}

// Update applies a partial change. The task's board can never change.
func (s *TaskService) Update(ctx context.Context, actorID, taskID uint, req *UpdateTaskRequest) (*TaskView, error) {
	db := s.db.WithContext(ctx)
	task, err := findTask(db, taskID)
	if err != nil {
		return nil, err
	}
	if !CanAccessTask(actorID, task) {
		return nil, response.NewForbidden("You do not have access to this task.")
	}
	if req.Board != nil && *req.Board != task.BoardID {
		return nil, response.NewValidation("board", "The board of a task cannot be changed.")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		board, err := lockBoard(tx, task.BoardID)
		if err != nil {
			return err
		}
		if !CanAccessBoard(actorID, board) {
			return response.NewForbidden("You do not have access to this task.")
		}

		errs := fieldErrors{}
		updates := map[string]interface{}{}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				errs.add("title", msgBlank)
			}
			updates["title"] = title
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Status != nil {
			validateStatus(errs, *req.Status)
			updates["status"] = *req.Status
			updates["done"] = *req.Status == models.StatusDone
		}
		if req.Priority != nil {
			validatePriority(errs, *req.Priority)
			updates["priority"] = *req.Priority
		}
		if req.AssigneeID.Set {
			validateAssignable(errs, "assignee_id", req.AssigneeID.Value, board)
			updates["assignee_id"] = req.AssigneeID.Value
		}
		if req.ReviewerID.Set {
			validateAssignable(errs, "reviewer_id", req.ReviewerID.Value, board)
			updates["reviewer_id"] = req.ReviewerID.Value
		}
		if req.DueDate.Set {
			updates["due_date"] = req.DueDate.Value
		}
		if err := errs.err(); err != nil {
			return err
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Task{ID: task.ID}).Updates(updates).Error; err != nil {
			return fmt.Errorf("update task %d: %w", taskID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.view(ctx, taskID)
}

// Delete removes the task and its comments. Allowed for the creator and the board owner.
func (s *TaskService) Delete(ctx context.Context, actorID, taskID uint) error {
	db := s.db.WithContext(ctx)
	task, err := findTask(db, taskID)
	if err != nil {
		return err
	}
	if !CanDeleteTask(actorID, task) {
		return response.NewForbidden("Only the task creator or the board owner can delete this task.")
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete task comments: %w", err)
		}
		if err := tx.Delete(&models.Task{}, taskID).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}

func (s *TaskService) view(ctx context.Context, taskID uint) (*TaskView, error) {
	var task models.Task
	if err := withTaskRelations(s.db.WithContext(ctx)).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("task")
		}
		return nil, fmt.Errorf("load task %d: %w", taskID, err)
	}
	v := NewTaskView(&task)
	return &v, nil
}

func withTaskRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Assignee").
		Preload("Reviewer").
		Preload("Comments", orderComments).
		Preload("Comments.Author")
}

// accessibleBoardIDs is a subquery selecting the ids of boards actorID owns or belongs to.
func accessibleBoardIDs(db *gorm.DB, actorID uint) *gorm.DB {
	memberOf := db.Model(&models.BoardMember{}).Select("board_id").Where("user_id = ?", actorID)
	return db.Model(&models.Board{}).Select("id").Where("owner_id = ? OR id IN (?)", actorID, memberOf)
}

// findTask loads a task with its board and the board's members, or a NotFound error.
func findTask(db *gorm.DB, taskID uint) (*models.Task, error) {
	var task models.Task
	if err := db.Preload("Board.Members").First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("task")
		}
		return nil, fmt.Errorf("find task %d: %w", taskID, err)
	}
	return &task, nil
}

func validateStatus(errs fieldErrors, status string) {
	if !models.ValidStatus(status) {
		errs.add("status", fmt.Sprintf("%q is not a valid choice.", status))
	}
}

func validatePriority(errs fieldErrors, priority string) {
	if !models.ValidPriority(priority) {
		errs.add("priority", fmt.Sprintf("%q is not a valid choice.", priority))
	}
}

func validateAssignable(errs fieldErrors, field string, userID *uint, board *models.Board) {
	if userID == nil {
		return
	}
	if !canBeAssigned(*userID, board) {
		errs.add(field, "User must be the owner or a member of the board.")
	}
}
