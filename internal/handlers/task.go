package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/response"
)

type TaskHandler struct {
	taskService    *services.TaskService
	commentService *services.CommentService
}

func NewTaskHandler(taskService *services.TaskService, commentService *services.CommentService) *TaskHandler {
	return &TaskHandler{
		taskService:    taskService,
		commentService: commentService,
	}
}

// List returns every task on the caller's boards
// GET /api/tasks
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.taskService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tasks)
}

// AssignedToMe returns tasks assigned to the caller
// GET /api/tasks/assigned-to-me
func (h *TaskHandler) AssignedToMe(c *gin.Context) {
	tasks, err := h.taskService.ListAssignedToMe(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tasks)
}

// Reviewing returns tasks the caller reviews
// GET /api/tasks/reviewing
func (h *TaskHandler) Reviewing(c *gin.Context) {
	tasks, err := h.taskService.ListReviewing(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tasks)
}

// Get returns one task
// GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// Create creates a task on a board
// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.CreateTaskRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// Update partially updates a task
// PATCH /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	var req services.UpdateTaskRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// Delete removes a task
// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListComments returns a task's comments, oldest first
// GET /api/tasks/:id/comments
func (h *TaskHandler) ListComments(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	comments, err := h.commentService.List(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, comments)
}

// CreateComment adds a comment to a task
// POST /api/tasks/:id/comments
func (h *TaskHandler) CreateComment(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	var req services.CreateCommentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	comment, err := h.commentService.Create(c.Request.Context(), middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// DeleteComment removes the caller's own comment
// DELETE /api/tasks/:id/comments/:comment_id
func (h *TaskHandler) DeleteComment(c *gin.Context) {
	taskID, ok := parseID(c, "id", "task")
	if !ok {
		return
	}
	commentID, ok := parseID(c, "comment_id", "comment")
	if !ok {
		return
	}

	if err := h.commentService.Delete(c.Request.Context(), middleware.GetUserID(c), taskID, commentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
