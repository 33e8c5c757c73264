package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/response"
)

type BoardHandler struct {
	boardService      *services.BoardService
	invitationService *services.InvitationService
}

func NewBoardHandler(boardService *services.BoardService, invitationService *services.InvitationService) *BoardHandler {
	return &BoardHandler{
		boardService:      boardService,
		invitationService: invitationService,
	}
}

// List returns the boards the caller owns or belongs to
// GET /api/boards
func (h *BoardHandler) List(c *gin.Context) {
	boards, err := h.boardService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, boards)
}

// Create creates a board owned by the caller
// POST /api/boards
func (h *BoardHandler) Create(c *gin.Context) {
	var req services.CreateBoardRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	board, err := h.boardService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, board)
}

// Get returns a board with members and tasks
// GET /api/boards/:id
func (h *BoardHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "board")
	if !ok {
		return
	}

	board, err := h.boardService.Get(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, board)
}

// Update patches the title and/or replaces the member set
// PATCH /api/boards/:id
func (h *BoardHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "board")
	if !ok {
		return
	}

	var req services.UpdateBoardRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	board, err := h.boardService.Update(c.Request.Context(), middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, board)
}

// Delete removes a board and everything on it
// DELETE /api/boards/:id
func (h *BoardHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "board")
	if !ok {
		return
	}

	if err := h.boardService.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddMember adds a user by email
// POST /api/boards/:id/add-member
func (h *BoardHandler) AddMember(c *gin.Context) {
	h.changeMember(c, h.boardService.AddMember)
}

// RemoveMember removes a user by email
// POST /api/boards/:id/remove-member
func (h *BoardHandler) RemoveMember(c *gin.Context) {
	h.changeMember(c, h.boardService.RemoveMember)
}

type memberChange func(ctx context.Context, actorID, boardID uint, email string) (*services.BoardDetail, error)

func (h *BoardHandler) changeMember(c *gin.Context, change memberChange) {
	id, ok := parseID(c, "id", "board")
	if !ok {
		return
	}

	var req services.MemberEmailRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	board, err := change(c.Request.Context(), middleware.GetUserID(c), id, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, board)
}

// Invite issues an expiring invitation for an email address
// POST /api/boards/:id/invitations
func (h *BoardHandler) Invite(c *gin.Context) {
	id, ok := parseID(c, "id", "board")
	if !ok {
		return
	}

	var req services.MemberEmailRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	inv, err := h.invitationService.Invite(c.Request.Context(), middleware.GetUserID(c), id, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inv)
}

// AcceptInvitation joins the caller to the invitation's board
// POST /api/invitations/:token/accept
func (h *BoardHandler) AcceptInvitation(c *gin.Context) {
	board, err := h.invitationService.Accept(c.Request.Context(), middleware.GetUserID(c), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, board)
}
